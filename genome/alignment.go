// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package genome

// IterKind selects which segment array a Cursor addresses. Defined here
// (rather than in segiter) so genome.Alignment can hand out cursors
// without importing segiter, which itself depends on genome.
type IterKind uint8

const (
	// TopKind addresses a genome's top-segment array.
	TopKind IterKind = iota
	// BottomKind addresses a genome's bottom-segment array.
	BottomKind
)

// Cursor is the minimal positioned-iterator handle an Alignment hands
// out; segiter.Iterator wraps one of these with slicing/strand state.
type Cursor struct {
	Genome *Genome
	Kind   IterKind
	Index  int
}

// Alignment is the external alignment-access contract (spec §6, C1).
// Implementations back it with whatever storage they like; diskalign
// provides one concrete, disk-backed realization. The core (segiter,
// mapped, mapper, lod, lodextract) depends only on this interface.
type Alignment interface {
	// OpenGenome returns a handle for name, or ErrMissingGenome if absent.
	OpenGenome(name string) (*Genome, error)
	// CloseGenome releases resources associated with g. Callers must not
	// retain iterators/cursors into g after this call.
	CloseGenome(g *Genome) error

	// RootName returns the name of the tree's root genome.
	RootName() string
	// ChildNames returns the child genome names of the named genome.
	ChildNames(name string) []string

	// NumGenomes returns the total number of genomes in the alignment.
	NumGenomes() int

	// NewickTree returns a Newick-format serialization of the genome
	// tree (topology + branch lengths), in natural child order.
	NewickTree() string

	// AddRootGenome creates the tree's root genome. Fails with
	// ErrStructural if the alignment is not empty.
	AddRootGenome(name string) (*Genome, error)
	// AddLeafGenome adds a new genome as a child of parentName. Fails
	// with ErrMissingGenome if parentName is absent.
	AddLeafGenome(name, parentName string, branchLength float64) (*Genome, error)

	// SetDimensions (re)initializes a genome's sequences and segment
	// counts. Fails with ErrStructural if the alignment already has
	// segment data for g.
	SetDimensions(g *Genome, dims []SequenceInfo) error
	// UpdateBottomDimensions updates only the bottom-segment counts of
	// an existing internal genome, leaving top dimensions untouched.
	UpdateBottomDimensions(g *Genome, updates []SequenceUpdate) error
}
