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

// Package segiter implements the segment iterator (spec §4.2, C2): a
// cursor into either the top or bottom segment array of a genome,
// carrying an array index, start/end offset clipping and a strand flag.
package segiter

import (
	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
)

// Iterator is a cursor into one genome's top or bottom segment array.
// The zero value is not valid; use New.
type Iterator struct {
	Genome *genome.Genome
	Kind   genome.IterKind
	Index  int

	// StartOffset, EndOffset clip the segment; both are in
	// [0, segmentLength]. They are stored exactly as given regardless
	// of Reversed (spec §3): comparisons and slicing account for the
	// flip explicitly rather than normalizing storage.
	StartOffset int64
	EndOffset   int64

	Reversed bool
}

// New creates an iterator at index idx of genome g's top or bottom
// array, covering the full segment (no clipping).
func New(g *genome.Genome, kind genome.IterKind, idx int) *Iterator {
	return &Iterator{Genome: g, Kind: kind, Index: idx}
}

// Copy returns an independent copy of it.
func (it *Iterator) Copy() *Iterator {
	cp := *it
	return &cp
}

// IsTop reports whether this iterator addresses the top-segment array.
func (it *Iterator) IsTop() bool { return it.Kind == genome.TopKind }

func (it *Iterator) numSegments() int {
	if it.IsTop() {
		return len(it.Genome.Top)
	}
	return len(it.Genome.Bot)
}

func (it *Iterator) segStart() int64 {
	if it.IsTop() {
		return it.Genome.Top[it.Index].StartPos
	}
	return it.Genome.Bot[it.Index].StartPos
}

func (it *Iterator) segLength() int64 {
	if it.IsTop() {
		return it.Genome.Top[it.Index].Length
	}
	return it.Genome.Bot[it.Index].Length
}

func (it *Iterator) segEnd() int64 { return it.segStart() + it.segLength() }

// SegmentLength returns the full length of the underlying segment,
// ignoring clipping.
func (it *Iterator) SegmentLength() int64 { return it.segLength() }

// Length returns the effective, offset-clipped length of the iterator.
func (it *Iterator) Length() int64 {
	return it.segLength() - it.StartOffset - it.EndOffset
}

// StartPos returns the effective absolute start position (segment start
// + StartOffset), independent of Reversed: the absolute numeric interval
// does not depend on strand, only its logical start/end interpretation
// does (spec §3).
func (it *Iterator) StartPos() int64 { return it.segStart() + it.StartOffset }

// EndPos returns the effective absolute end position (exclusive).
func (it *Iterator) EndPos() int64 { return it.segEnd() - it.EndOffset }

// ArrayIndex returns the iterator's position in its segment array.
func (it *Iterator) ArrayIndex() int { return it.Index }

// Compare implements the fast comparator of spec §4.2: ordering by
// array index, then by effective start offset, then by negated
// effective end offset, where the offsets are swapped first if
// Reversed. It never touches sequence content and assumes both
// iterators address the same genome and array kind.
func Compare(a, b *Iterator) int {
	if a.Index != b.Index {
		if a.Index < b.Index {
			return -1
		}
		return 1
	}
	so1, eo1 := a.StartOffset, a.EndOffset
	if a.Reversed {
		so1, eo1 = eo1, so1
	}
	so2, eo2 := b.StartOffset, b.EndOffset
	if b.Reversed {
		so2, eo2 = eo2, so2
	}
	if so1 != so2 {
		if so1 < so2 {
			return -1
		}
		return 1
	}
	if eo1 != eo2 {
		if eo1 > eo2 {
			return -1
		}
		return 1
	}
	return 0
}

// Slice narrows the iterator's offsets. Both new offsets must keep
// 0 <= startOffset+endOffset <= segment length (spec invariant 2);
// violating this returns ErrConsistency rather than panicking (spec §9
// on replacing asserts with reported errors).
func (it *Iterator) Slice(startOffset, endOffset int64) error {
	if startOffset < 0 || endOffset < 0 || startOffset+endOffset > it.segLength() {
		return errors.Wrapf(genome.ErrConsistency,
			"slice(%d,%d) out of range for segment of length %d",
			startOffset, endOffset, it.segLength())
	}
	it.StartOffset = startOffset
	it.EndOffset = endOffset
	return nil
}

// ToRight advances to the next segment in the array, resetting offsets,
// then clips EndOffset so the iterator's effective end position does
// not exceed cutoff (spec §4.2). Used to walk a bounded range one
// segment at a time.
func (it *Iterator) ToRight(cutoff int64) error {
	if it.Index+1 >= it.numSegments() {
		return errors.Wrapf(genome.ErrConsistency, "toRight: no further segment")
	}
	it.Index++
	it.StartOffset = 0
	it.EndOffset = 0
	if end := it.segEnd(); end > cutoff {
		it.EndOffset = end - cutoff
	}
	return nil
}

// Advance moves the iterator to the next segment in the array with no
// clipping, used by writers appending one fresh output segment at a
// time (spec §4.6 writeSegments: "advance the output segment cursor").
func (it *Iterator) Advance() error {
	if it.Index+1 >= it.numSegments() {
		return errors.Wrapf(genome.ErrConsistency, "advance: no further segment")
	}
	it.Index++
	it.StartOffset = 0
	it.EndOffset = 0
	return nil
}

// HasParent reports whether a top iterator's segment links to a parent.
func (it *Iterator) HasParent() bool {
	return it.IsTop() && it.Genome.Top[it.Index].HasParent()
}

// HasChild reports whether a bottom iterator's segment links to child
// slot i.
func (it *Iterator) HasChild(i int) bool {
	return !it.IsTop() && it.Genome.Bot[it.Index].HasChild(i)
}

// HasNextParalogy reports whether a top iterator participates in a
// paralogy cycle of more than one member.
func (it *Iterator) HasNextParalogy() bool {
	return it.IsTop() && it.Genome.Top[it.Index].HasNextParalogy()
}

// ToParent moves a top iterator to the bottom iterator of its parent
// genome, preserving the sliced sub-range: offsets are swapped if the
// parent link is strand-reversed, and Reversed composes by XOR (spec
// §4.2, §9 glossary "Flipped/reversed").
func (it *Iterator) ToParent() (*Iterator, error) {
	if !it.IsTop() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParent: not a top iterator")
	}
	seg := it.Genome.Top[it.Index]
	if !seg.HasParent() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParent: no parent link")
	}
	parent := it.Genome.Parent
	if parent == nil {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParent: genome has no parent")
	}
	so, eo := it.StartOffset, it.EndOffset
	if seg.ParentReversed {
		so, eo = eo, so
	}
	return &Iterator{
		Genome:      parent,
		Kind:        genome.BottomKind,
		Index:       seg.ParentIndex,
		StartOffset: so,
		EndOffset:   eo,
		Reversed:    it.Reversed != seg.ParentReversed,
	}, nil
}

// ToChild moves a bottom iterator to the top iterator of child slot
// childIdx, preserving the sliced sub-range symmetrically to ToParent.
func (it *Iterator) ToChild(childIdx int) (*Iterator, error) {
	if it.IsTop() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toChild: not a bottom iterator")
	}
	seg := it.Genome.Bot[it.Index]
	if !seg.HasChild(childIdx) {
		return nil, errors.Wrapf(genome.ErrConsistency, "toChild: no child link")
	}
	child := it.Genome.Child(childIdx)
	if child == nil {
		return nil, errors.Wrapf(genome.ErrConsistency, "toChild: no such child genome")
	}
	reversed := seg.ChildReversed[childIdx]
	so, eo := it.StartOffset, it.EndOffset
	if reversed {
		so, eo = eo, so
	}
	return &Iterator{
		Genome:      child,
		Kind:        genome.TopKind,
		Index:       seg.ChildIndices[childIdx],
		StartOffset: so,
		EndOffset:   eo,
		Reversed:    it.Reversed != reversed,
	}, nil
}

// ToNextParalogy follows a top segment's cyclic paralogy list one step,
// keeping the iterator's offsets so the paralog covers the same sliced
// sub-range.
func (it *Iterator) ToNextParalogy() (*Iterator, error) {
	if !it.IsTop() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toNextParalogy: not a top iterator")
	}
	seg := it.Genome.Top[it.Index]
	if !seg.HasNextParalogy() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toNextParalogy: singleton, no cycle")
	}
	cp := it.Copy()
	cp.Index = seg.NextParalogyIndex
	return cp, nil
}

// ToParseUp moves a bottom iterator to the top iterator of the same
// genome whose interval overlaps it, clipped to the intersection of the
// target top segment and this iterator's own effective range (spec
// §4.2's "cover overlapping positions", refined per the walking
// discipline of §4.4: each parse hop is bounded by the caller's current
// window, not the full segment).
func (it *Iterator) ToParseUp() (*Iterator, error) {
	if it.IsTop() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParseUp: not a bottom iterator")
	}
	seg := it.Genome.Bot[it.Index]
	topIdx := seg.TopParseIndex
	if topIdx == genome.NullIndex {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParseUp: no parse link")
	}
	absStart, absEnd := it.StartPos(), it.EndPos()
	topSeg := it.Genome.Top[topIdx]
	t := &Iterator{Genome: it.Genome, Kind: genome.TopKind, Index: topIdx, Reversed: it.Reversed}
	if d := absStart - topSeg.StartPos; d > 0 {
		t.StartOffset = d
	}
	if d := topSeg.EndPos() - absEnd; d > 0 {
		t.EndOffset = d
	}
	return t, nil
}

// ToParseDown is the symmetric counterpart of ToParseUp: moves a top
// iterator to the overlapping bottom iterator of the same genome.
func (it *Iterator) ToParseDown() (*Iterator, error) {
	if !it.IsTop() {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParseDown: not a top iterator")
	}
	seg := it.Genome.Top[it.Index]
	botIdx := seg.BottomParseIndex
	if botIdx == genome.NullIndex {
		return nil, errors.Wrapf(genome.ErrConsistency, "toParseDown: no parse link")
	}
	absStart, absEnd := it.StartPos(), it.EndPos()
	botSeg := it.Genome.Bot[botIdx]
	b := &Iterator{Genome: it.Genome, Kind: genome.BottomKind, Index: botIdx, Reversed: it.Reversed}
	if d := absStart - botSeg.StartPos; d > 0 {
		b.StartOffset = d
	}
	if d := botSeg.EndPos() - absEnd; d > 0 {
		b.EndOffset = d
	}
	return b, nil
}

// SetCoordinates overwrites the underlying segment's stored start
// position and length. Used by writers (lodextract.writeSegments)
// populating a freshly dimensioned output genome; it is not part of the
// read-only traversal API and is never called on a MappedSegment (which
// rejects it with ErrNotSupported, spec §4.3).
func (it *Iterator) SetCoordinates(startPos, length int64) {
	if it.IsTop() {
		it.Genome.Top[it.Index].StartPos = startPos
		it.Genome.Top[it.Index].Length = length
	} else {
		it.Genome.Bot[it.Index].StartPos = startPos
		it.Genome.Bot[it.Index].Length = length
	}
}
