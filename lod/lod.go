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

// Package lod builds the block graph (spec §4.5, C5) consumed by
// lodextract: given a parent genome, its children, and a sampling step,
// it groups the parent's existing bottom segments into step-sized runs
// and pairs each run with the corresponding run of each child's top
// segments, producing one LodBlock per group.
package lod

import (
	"github.com/pkg/errors"
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/halcore/genome"
	"github.com/twotwotwo/sorts"
	"gonum.org/v1/gonum/stat"
)

// LodSegment is a sampled sub-interval within a sequence (spec §3). The
// two synthetic telomere sentinels bracketing each SegmentSet carry
// Telomere=true and are never part of a block.
type LodSegment struct {
	Sequence   *genome.Sequence
	LeftPos    int64
	Length     int64
	Flipped    bool
	ArrayIndex int
	Telomere   bool
}

// EndPos returns LeftPos+Length.
func (s *LodSegment) EndPos() int64 { return s.LeftPos + s.Length }

// LodBlock is an unordered collection of ≥1 homologous LOD segments.
type LodBlock struct {
	segments []*LodSegment
}

// NumSegments returns the number of segments in the block.
func (b *LodBlock) NumSegments() int { return len(b.segments) }

// Segment returns the i'th segment.
func (b *LodBlock) Segment(i int) *LodSegment { return b.segments[i] }

// Segments returns all segments in the block, in the order they were
// added (parent first, then children in child order).
func (b *LodBlock) Segments() []*LodSegment { return b.segments }

func int64Cmp(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

type sortableSegments []*LodSegment

func (s sortableSegments) Len() int           { return len(s) }
func (s sortableSegments) Less(i, j int) bool { return s[i].LeftPos < s[j].LeftPos }
func (s sortableSegments) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// SegmentSet is a sequence's ordered collection of sampled segments,
// bracketed by left/right telomere sentinels (spec §3, §4.5).
type SegmentSet struct {
	Sequence *genome.Sequence
	items    sortableSegments
	tree     *interval.SearchTree[*LodSegment, int64]
}

func newSegmentSet(seq *genome.Sequence) *SegmentSet {
	left := &LodSegment{Sequence: seq, LeftPos: -1, Length: 0, Telomere: true, ArrayIndex: genome.NullIndex}
	right := &LodSegment{Sequence: seq, LeftPos: seq.Length, Length: 0, Telomere: true, ArrayIndex: genome.NullIndex}
	return &SegmentSet{
		Sequence: seq,
		items:    sortableSegments{left, right},
		tree:     interval.NewSearchTree[*LodSegment, int64](int64Cmp),
	}
}

func (ss *SegmentSet) insert(seg *LodSegment) {
	ss.items = append(ss.items, seg)
	ss.tree.Insert(seg.LeftPos, seg.EndPos(), seg)
}

func (ss *SegmentSet) sortItems() { sorts.Quicksort(ss.items) }

// Segments returns every segment in ascending leftPos order, including
// the two telomere sentinels at the extremes.
func (ss *SegmentSet) Segments() []*LodSegment { return ss.items }

// NonTelomereSegments returns Segments with the two sentinels removed,
// the form lodextract.writeSegments iterates (spec §4.6e).
func (ss *SegmentSet) NonTelomereSegments() []*LodSegment {
	if len(ss.items) <= 2 {
		return nil
	}
	return ss.items[1 : len(ss.items)-1]
}

// AnyIntersection reports whether any segment in the set overlaps
// [start, end).
func (ss *SegmentSet) AnyIntersection(start, end int64) (*LodSegment, bool) {
	return ss.tree.AnyIntersection(start, end)
}

// LodGraph is the block graph built for one (parent, children, step)
// triple (spec §4.5).
type LodGraph struct {
	Step     int64
	Parent   *genome.Genome
	Children []*genome.Genome

	blocks []*LodBlock
	sets   map[*genome.Sequence]*SegmentSet
}

// NumBlocks returns the number of blocks in the graph.
func (g *LodGraph) NumBlocks() int { return len(g.blocks) }

// Block returns the i'th block.
func (g *LodGraph) Block(i int) *LodBlock { return g.blocks[i] }

// SegmentSet returns the ordered segment set for seq, or nil if seq
// does not belong to the parent or any child genome in this graph.
func (g *LodGraph) SegmentSet(seq *genome.Sequence) *SegmentSet { return g.sets[seq] }

// Erase releases the graph's structures (spec §4.5 "erase()"; spec §5
// has C6 call this after extracting each internal node).
func (g *LodGraph) Erase() {
	g.blocks = nil
	g.sets = nil
}

// Stats reports the mean and standard deviation of segment length
// across every segment in every block — a cheap diagnostic for callers
// tuning step (SPEC_FULL.md §11).
func (g *LodGraph) Stats() (mean, stddev float64) {
	var lengths []float64
	for _, b := range g.blocks {
		for _, s := range b.segments {
			lengths = append(lengths, float64(s.Length))
		}
	}
	if len(lengths) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(lengths, nil)
}

// Build constructs the LOD graph for parent and children at the given
// step. It groups the parent's existing bottom segments (sequence by
// sequence, in array order) into runs whose cumulative length reaches
// step, then pairs each run with the corresponding run of each child's
// top segments — dropping a candidate pairing whose child link is
// missing or whose flip flag is inconsistent across the run, per spec
// §4.5's "within a block every segment has the same length" invariant,
// checked explicitly before the block is kept.
func Build(parent *genome.Genome, children []*genome.Genome, step int64) (*LodGraph, error) {
	if step <= 0 {
		return nil, errors.Wrapf(genome.ErrInvalidInput, "lod: step must be positive, got %d", step)
	}

	g := &LodGraph{Step: step, Parent: parent, Children: children, sets: map[*genome.Sequence]*SegmentSet{}}
	for _, seq := range parent.Sequences() {
		g.sets[seq] = newSegmentSet(seq)
	}
	for _, c := range children {
		for _, seq := range c.Sequences() {
			g.sets[seq] = newSegmentSet(seq)
		}
	}

	for _, seq := range parent.Sequences() {
		bots := botSegmentsInSequence(parent, seq)
		i := 0
		for i < len(bots) {
			start := i
			var length int64
			for i < len(bots) && length < step {
				length += bots[i].seg.Length
				i++
			}
			block, err := buildBlock(parent, seq, bots[start:i], children)
			if err != nil {
				return nil, err
			}
			if block == nil {
				continue
			}
			g.blocks = append(g.blocks, block)
			for _, seg := range block.segments {
				g.sets[seg.Sequence].insert(seg)
			}
		}
	}

	for _, ss := range g.sets {
		ss.sortItems()
	}
	return g, nil
}

type indexedBottom struct {
	index int
	seg   genome.BottomSegment
}

// botSegmentsInSequence returns parent's bottom segments whose start
// position falls within seq, in array order.
func botSegmentsInSequence(parent *genome.Genome, seq *genome.Sequence) []indexedBottom {
	var out []indexedBottom
	end := seq.StartInGenome + seq.Length
	for i, b := range parent.Bot {
		if b.StartPos >= seq.StartInGenome && b.StartPos < end {
			out = append(out, indexedBottom{index: i, seg: b})
		}
	}
	return out
}

// buildBlock pairs one run of the parent's bottom segments with the
// matching run of each child's top segments, returning nil if fewer
// than one child correspondence is found (a block needs a parent
// segment plus at least one homologous child segment to be useful).
func buildBlock(parent *genome.Genome, seq *genome.Sequence, run []indexedBottom, children []*genome.Genome) (*LodBlock, error) {
	var total int64
	for _, b := range run {
		total += b.seg.Length
	}
	leftPos := run[0].seg.StartPos - seq.StartInGenome
	block := &LodBlock{segments: []*LodSegment{{
		Sequence: seq, LeftPos: leftPos, Length: total, ArrayIndex: genome.NullIndex,
	}}}

	for _, child := range children {
		slot := parent.ChildIndex(child)
		if slot == genome.NullIndex {
			continue
		}
		seg, ok := childRun(child, run, slot)
		if !ok {
			continue
		}
		block.segments = append(block.segments, seg)
	}

	if len(block.segments) < 2 {
		return nil, nil
	}
	want := block.segments[0].Length
	for _, s := range block.segments[1:] {
		if s.Length != want {
			return nil, errors.Wrapf(genome.ErrConsistency,
				"lod: block segments have mismatched lengths (%d != %d)", s.Length, want)
		}
	}
	return block, nil
}

// childRun resolves the child-side LodSegment for one run of the
// parent's bottom segments at the given child slot, requiring every
// member of the run to link to that slot with the same flip flag.
func childRun(child *genome.Genome, run []indexedBottom, slot int) (*LodSegment, bool) {
	if !run[0].seg.HasChild(slot) {
		return nil, false
	}
	flipped := run[0].seg.ChildReversed[slot]
	var total int64
	firstTop := child.Top[run[0].seg.ChildIndices[slot]]
	lastTop := firstTop
	for _, b := range run {
		if !b.seg.HasChild(slot) || b.seg.ChildReversed[slot] != flipped {
			return nil, false
		}
		lastTop = child.Top[b.seg.ChildIndices[slot]]
		total += lastTop.Length
	}

	anchor := firstTop
	if flipped {
		anchor = lastTop
	}
	childSeq, leftPos := child.SequenceAt(anchor.StartPos)
	if childSeq == nil {
		return nil, false
	}
	return &LodSegment{
		Sequence: childSeq, LeftPos: leftPos, Length: total, Flipped: flipped, ArrayIndex: genome.NullIndex,
	}, true
}
