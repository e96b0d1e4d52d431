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

package lodextract

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
)

// memAlignment is a minimal in-memory genome.Alignment used only to
// exercise lodextract without a real disk-backed store.
type memAlignment struct {
	genomes map[string]*genome.Genome
	root    string
}

func newMemAlignment() *memAlignment {
	return &memAlignment{genomes: map[string]*genome.Genome{}}
}

func (m *memAlignment) OpenGenome(name string) (*genome.Genome, error) {
	g, ok := m.genomes[name]
	if !ok {
		return nil, errors.Wrapf(genome.ErrMissingGenome, "no such genome %s", name)
	}
	return g, nil
}

func (m *memAlignment) CloseGenome(g *genome.Genome) error { return nil }
func (m *memAlignment) RootName() string                  { return m.root }

func (m *memAlignment) ChildNames(name string) []string {
	g := m.genomes[name]
	if g == nil {
		return nil
	}
	names := make([]string, g.NumChildren())
	for i := 0; i < g.NumChildren(); i++ {
		names[i] = g.Child(i).Name
	}
	return names
}

func (m *memAlignment) NumGenomes() int    { return len(m.genomes) }
func (m *memAlignment) NewickTree() string { return "" }

func (m *memAlignment) AddRootGenome(name string) (*genome.Genome, error) {
	g := genome.New(name)
	m.genomes[name] = g
	m.root = name
	return g, nil
}

func (m *memAlignment) AddLeafGenome(name, parentName string, branchLength float64) (*genome.Genome, error) {
	p, ok := m.genomes[parentName]
	if !ok {
		return nil, errors.Wrapf(genome.ErrMissingGenome, "no such parent %s", parentName)
	}
	g := genome.New(name)
	g.BranchLength = branchLength
	p.AddChild(g)
	m.genomes[name] = g
	return g, nil
}

func nullSlice(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = genome.NullIndex
	}
	return s
}

func (m *memAlignment) SetDimensions(g *genome.Genome, dims []genome.SequenceInfo) error {
	seqs := make([]*genome.Sequence, len(dims))
	for i, d := range dims {
		seqs[i] = &genome.Sequence{Name: d.Name, Length: d.Length}
	}
	g.SetSequences(seqs)

	var top []genome.TopSegment
	var bot []genome.BottomSegment
	for _, d := range dims {
		for j := 0; j < d.NumTopSegs; j++ {
			top = append(top, genome.TopSegment{
				ParentIndex: genome.NullIndex, NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex,
			})
		}
		for j := 0; j < d.NumBottomSegs; j++ {
			bot = append(bot, genome.BottomSegment{
				ChildIndices: nullSlice(g.NumChildren()), ChildReversed: make([]bool, g.NumChildren()),
				TopParseIndex: genome.NullIndex,
			})
		}
	}
	g.Top = top
	g.Bot = bot
	return nil
}

func (m *memAlignment) UpdateBottomDimensions(g *genome.Genome, updates []genome.SequenceUpdate) error {
	var bot []genome.BottomSegment
	for _, u := range updates {
		for j := 0; j < u.NumBottomSegs; j++ {
			bot = append(bot, genome.BottomSegment{
				ChildIndices: nullSlice(g.NumChildren()), ChildReversed: make([]bool, g.NumChildren()),
				TopParseIndex: genome.NullIndex,
			})
		}
	}
	g.Bot = bot
	return nil
}

// buildInputAlignment builds R(A,B), each with one 1000-base sequence,
// with R's bottom array and A/B's top arrays in 1:1, 100-base,
// non-reversed correspondence, per spec.md §8 scenario S4.
func buildInputAlignment(numSegs int, segLen int64) *memAlignment {
	in := newMemAlignment()
	root, _ := in.AddRootGenome("R")
	a, _ := in.AddLeafGenome("A", "R", 1)
	b, _ := in.AddLeafGenome("B", "R", 1)

	total := int64(numSegs) * segLen
	root.SetSequences([]*genome.Sequence{{Name: "rchr", Length: total}})
	a.SetSequences([]*genome.Sequence{{Name: "achr", Length: total}})
	b.SetSequences([]*genome.Sequence{{Name: "bchr", Length: total}})

	for i := 0; i < numSegs; i++ {
		pos := int64(i) * segLen
		root.Bot = append(root.Bot, genome.BottomSegment{
			StartPos: pos, Length: segLen,
			ChildIndices: []int{i, i}, ChildReversed: []bool{false, false},
			TopParseIndex: genome.NullIndex,
		})
		a.Top = append(a.Top, genome.TopSegment{
			StartPos: pos, Length: segLen,
			ParentIndex: i, ParentReversed: false,
			NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex,
		})
		b.Top = append(b.Top, genome.TopSegment{
			StartPos: pos, Length: segLen,
			ParentIndex: i, ParentReversed: false,
			NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex,
		})
	}
	return in
}

func TestCreateInterpolatedAlignmentS4Basics(t *testing.T) {
	in := buildInputAlignment(10, 100)
	out := newMemAlignment()

	if err := CreateInterpolatedAlignment(in, out, 100, "(A:1,B:1)R;"); err != nil {
		t.Fatalf("CreateInterpolatedAlignment: %v", err)
	}

	outR, err := out.OpenGenome("R")
	if err != nil {
		t.Fatalf("open R: %v", err)
	}
	outA, err := out.OpenGenome("A")
	if err != nil {
		t.Fatalf("open A: %v", err)
	}
	outB, err := out.OpenGenome("B")
	if err != nil {
		t.Fatalf("open B: %v", err)
	}

	if len(outR.Bot) != 10 {
		t.Fatalf("expected R to have 10 bottom segments, got %d", len(outR.Bot))
	}
	if len(outA.Top) != 10 || len(outB.Top) != 10 {
		t.Fatalf("expected A and B to each have 10 top segments, got %d/%d", len(outA.Top), len(outB.Top))
	}

	aSlot := outR.ChildIndex(outA)
	bSlot := outR.ChildIndex(outB)

	for i := 0; i < 10; i++ {
		bot := outR.Bot[i]
		if bot.StartPos != int64(i)*100 || bot.Length != 100 {
			t.Fatalf("R.Bot[%d]: unexpected coordinates %+v", i, bot)
		}
		if bot.ChildIndices[aSlot] != i || bot.ChildIndices[bSlot] != i {
			t.Fatalf("R.Bot[%d]: expected canonical child indices %d, got %+v", i, i, bot.ChildIndices)
		}
		// Both children are non-reversed relative to the input (Flipped
		// == false on both sides), and updateBlockEdges sets
		// parentReversed = (childFlipped == rootFlipped), matching
		// halLodExtract.cpp's updateBlockEdges literally — so equal,
		// non-reversed flips yield parentReversed == true here.
		if !bot.ChildReversed[aSlot] || !bot.ChildReversed[bSlot] {
			t.Fatalf("R.Bot[%d]: expected childReversed true (equal flipped flags), got %+v", i, bot.ChildReversed)
		}

		topA := outA.Top[i]
		if topA.ParentIndex != i {
			t.Fatalf("A.Top[%d]: expected parentIndex %d, got %d", i, i, topA.ParentIndex)
		}
		if !topA.ParentReversed {
			t.Fatalf("A.Top[%d]: expected parentReversed true", i)
		}
		if topA.NextParalogyIndex != genome.NullIndex {
			t.Fatalf("A.Top[%d]: expected solitary paralogy (NullIndex), got %d", i, topA.NextParalogyIndex)
		}
	}
}

func TestCreateTreeRejectsMissingGenome(t *testing.T) {
	in := newMemAlignment()
	in.AddRootGenome("R")
	out := newMemAlignment()

	err := createTree(in, out, "(A:1,B:1)R;")
	if !errors.Is(err, genome.ErrMissingGenome) {
		t.Fatalf("expected ErrMissingGenome, got %v", err)
	}
}

func TestCreateTreeClampsHugeBranchLength(t *testing.T) {
	in := newMemAlignment()
	in.AddRootGenome("R")
	in.AddLeafGenome("A", "R", 1)
	in.AddLeafGenome("B", "R", 1)
	out := newMemAlignment()

	if err := createTree(in, out, "(A:1e30,B:2)R;"); err != nil {
		t.Fatalf("createTree: %v", err)
	}
	a, _ := out.OpenGenome("A")
	b, _ := out.OpenGenome("B")
	if a.BranchLength != 1.0 {
		t.Fatalf("expected A's branch length clamped to 1.0, got %v", a.BranchLength)
	}
	if b.BranchLength != 2.0 {
		t.Fatalf("expected B's branch length preserved at 2.0, got %v", b.BranchLength)
	}
}

// writeParseInfoFixture builds the standalone genome from spec.md §8
// scenario S6: top segments at [0..10),[10..25),[25..40) and bottom
// segments at [0..15),[15..40).
func writeParseInfoFixture() *genome.Genome {
	parent := genome.New("P")
	g := genome.New("X")
	parent.AddChild(g)
	child := genome.New("C")
	g.AddChild(child)

	g.Top = []genome.TopSegment{
		{StartPos: 0, Length: 10, ParentIndex: genome.NullIndex, NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex},
		{StartPos: 10, Length: 15, ParentIndex: genome.NullIndex, NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex},
		{StartPos: 25, Length: 15, ParentIndex: genome.NullIndex, NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex},
	}
	g.Bot = []genome.BottomSegment{
		{StartPos: 0, Length: 15, ChildIndices: []int{genome.NullIndex}, ChildReversed: []bool{false}, TopParseIndex: genome.NullIndex},
		{StartPos: 15, Length: 25, ChildIndices: []int{genome.NullIndex}, ChildReversed: []bool{false}, TopParseIndex: genome.NullIndex},
	}
	return g
}

func TestWriteParseInfoS6CoWalk(t *testing.T) {
	g := writeParseInfoFixture()
	if err := writeParseInfo(g); err != nil {
		t.Fatalf("writeParseInfo: %v", err)
	}
	if g.Top[0].BottomParseIndex != 0 {
		t.Fatalf("top[0].bottomParseIndex: want 0, got %d", g.Top[0].BottomParseIndex)
	}
	if g.Top[1].BottomParseIndex != 0 {
		t.Fatalf("top[1].bottomParseIndex: want 0, got %d", g.Top[1].BottomParseIndex)
	}
	if g.Top[2].BottomParseIndex != 1 {
		t.Fatalf("top[2].bottomParseIndex: want 1, got %d", g.Top[2].BottomParseIndex)
	}
	if g.Bot[0].TopParseIndex != 0 {
		t.Fatalf("bot[0].topParseIndex: want 0, got %d", g.Bot[0].TopParseIndex)
	}
	if g.Bot[1].TopParseIndex != 1 {
		t.Fatalf("bot[1].topParseIndex: want 1, got %d", g.Bot[1].TopParseIndex)
	}
}

func TestWriteParseInfoSkipsRootAndLeaf(t *testing.T) {
	root := genome.New("R")
	if err := writeParseInfo(root); err != nil {
		t.Fatalf("writeParseInfo on root: %v", err)
	}
	leaf := genome.New("L")
	root.AddChild(leaf)
	if err := writeParseInfo(leaf); err != nil {
		t.Fatalf("writeParseInfo on childless leaf: %v", err)
	}
}

func TestCreateInterpolatedAlignmentRejectsNonPositiveStep(t *testing.T) {
	in := buildInputAlignment(1, 100)
	out := newMemAlignment()
	if err := CreateInterpolatedAlignment(in, out, 0, "(A:1,B:1)R;"); err == nil {
		t.Fatalf("expected error for step=0")
	}
}
