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

// Package genome defines the data model of a hierarchical multi-genome
// alignment: a rooted tree of genomes, each carrying sequences and
// top/bottom segment arrays, plus the Alignment interface (the external
// read/write contract an alignment store must satisfy).
package genome

import "github.com/pkg/errors"

// NullIndex marks an absent link (no parent, no child, no next paralogy).
const NullIndex = -1

// Error kinds from spec §7. Callers match with errors.Is; package-level
// functions wrap these with errors.Wrapf for context.
var (
	// ErrInvalidInput: zero-length iterator, inconsistent mapped-segment
	// lengths at construction.
	ErrInvalidInput = errors.New("genome: invalid input")

	// ErrMissingGenome: a requested genome name is absent.
	ErrMissingGenome = errors.New("genome: missing genome")

	// ErrStructural: a write operation was issued against a non-empty
	// output alignment, or another structural precondition was violated.
	ErrStructural = errors.New("genome: structural error")

	// ErrParse: malformed or unlabeled Newick.
	ErrParse = errors.New("genome: parse error")

	// ErrNotSupported: slice/setCoordinates called on a mapped segment.
	ErrNotSupported = errors.New("genome: not supported")

	// ErrConsistency: an invariant was violated mid-extraction.
	ErrConsistency = errors.New("genome: consistency error")
)

// Genome is a node of the rooted phylogenetic tree. A genome has bottom
// segments iff it has at least one child, and top segments iff it has a
// parent (spec §3).
type Genome struct {
	Name   string
	Parent *Genome

	children []*Genome
	seqs     []*Sequence

	Top []TopSegment
	Bot []BottomSegment

	// BranchLength is the length of the branch connecting this genome to
	// its parent; meaningless for the root.
	BranchLength float64

	fingerprint uint64
}

// New creates a detached genome handle with no parent, children or
// sequences. Alignment implementations use this to build the tree they
// hand back from OpenGenome.
func New(name string) *Genome {
	return &Genome{Name: name, fingerprint: newFingerprint(name)}
}

// AddChild appends child to g's ordered children and sets child.Parent.
func (g *Genome) AddChild(child *Genome) {
	child.Parent = g
	g.children = append(g.children, child)
}

// SetSequences (re)initializes g's ordered sequence list, computing each
// sequence's StartInGenome from cumulative lengths.
func (g *Genome) SetSequences(seqs []*Sequence) {
	var base int64
	for _, s := range seqs {
		s.Genome = g
		s.StartInGenome = base
		base += s.Length
	}
	g.seqs = seqs
}

// Children returns the ordered list of child genomes.
func (g *Genome) Children() []*Genome { return g.children }

// NumChildren returns the number of children.
func (g *Genome) NumChildren() int { return len(g.children) }

// Child returns the i'th child, or nil if out of range.
func (g *Genome) Child(i int) *Genome {
	if i < 0 || i >= len(g.children) {
		return nil
	}
	return g.children[i]
}

// ChildIndex returns the slot index of child within g's children, or -1.
func (g *Genome) ChildIndex(child *Genome) int {
	for i, c := range g.children {
		if c == child {
			return i
		}
	}
	return NullIndex
}

// HasParent reports whether g has a parent genome.
func (g *Genome) HasParent() bool { return g.Parent != nil }

// Sequences returns the ordered list of sequences in this genome.
func (g *Genome) Sequences() []*Sequence { return g.seqs }

// Sequence looks up a sequence by name, returning nil if absent.
func (g *Genome) Sequence(name string) *Sequence {
	for _, s := range g.seqs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SequenceAt returns the sequence containing genome-coordinate pos, along
// with the sequence-relative position, or nil if pos is out of range.
func (g *Genome) SequenceAt(pos int64) (*Sequence, int64) {
	var base int64
	for _, s := range g.seqs {
		if pos < base+s.Length {
			return s, pos - base
		}
		base += s.Length
	}
	return nil, 0
}

// NumTopSegments returns the number of top segments.
func (g *Genome) NumTopSegments() int { return len(g.Top) }

// NumBottomSegments returns the number of bottom segments.
func (g *Genome) NumBottomSegments() int { return len(g.Bot) }

// Fingerprint returns a cheap 64-bit identity tag for log correlation.
// It is derived from the genome name and is never used for correctness.
func (g *Genome) Fingerprint() uint64 { return g.fingerprint }

// Sequence is a contiguous, named coordinate space within a genome.
// Sequences within a genome are disjoint and concatenated to form the
// genome's linear coordinate space (spec §3).
type Sequence struct {
	Genome *Genome
	Name   string
	Length int64

	// StartInGenome is this sequence's offset in the genome's linear
	// coordinate space.
	StartInGenome int64

	// NumTop/NumBot are the counts of top/bottom segments whose start
	// position falls within this sequence.
	NumTop int
	NumBot int
}

// SequenceInfo is the dimension record used by Alignment.SetDimensions,
// mirroring HAL's Sequence::Info (original_source/lod/impl/halLodExtract.cpp).
type SequenceInfo struct {
	Name          string
	Length        int64
	NumTopSegs    int
	NumBottomSegs int
}

// SequenceUpdate is the partial dimension record used by
// Alignment.UpdateBottomDimensions, mirroring HAL's Sequence::UpdateInfo.
type SequenceUpdate struct {
	Name          string
	NumBottomSegs int
}

// TopSegment links a genome's coordinate interval to its parent. See
// spec §3.
type TopSegment struct {
	StartPos int64
	Length   int64

	// ParentIndex is the index of the parent bottom segment, or
	// NullIndex.
	ParentIndex int
	// ParentReversed records whether the parent link is strand-flipped.
	ParentReversed bool

	// NextParalogyIndex is the next top segment in this genome's cyclic
	// paralogy list sharing the same parent, or NullIndex for a
	// singleton.
	NextParalogyIndex int

	// BottomParseIndex is the index of the bottom segment in the same
	// genome whose interval contains this segment's start.
	BottomParseIndex int
}

// EndPos returns StartPos+Length.
func (t TopSegment) EndPos() int64 { return t.StartPos + t.Length }

// HasParent reports whether this segment links to a parent bottom
// segment.
func (t TopSegment) HasParent() bool { return t.ParentIndex != NullIndex }

// HasNextParalogy reports whether this segment participates in a
// paralogy cycle of more than one member.
func (t TopSegment) HasNextParalogy() bool { return t.NextParalogyIndex != NullIndex }

// BottomSegment links a genome's coordinate interval to each child's top
// segment. See spec §3.
type BottomSegment struct {
	StartPos int64
	Length   int64

	// ChildIndices[i] is the top-segment index in child slot i, or
	// NullIndex. ChildReversed[i] is the corresponding strand flip.
	ChildIndices  []int
	ChildReversed []bool

	// TopParseIndex is the index of the top segment in the same genome
	// whose interval contains this segment's start.
	TopParseIndex int
}

// EndPos returns StartPos+Length.
func (b BottomSegment) EndPos() int64 { return b.StartPos + b.Length }

// HasChild reports whether child slot i has a link.
func (b BottomSegment) HasChild(i int) bool {
	return i >= 0 && i < len(b.ChildIndices) && b.ChildIndices[i] != NullIndex
}
