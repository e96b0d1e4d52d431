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

// Package mapped implements the mapped segment (spec §4.3, C3): a pair
// of iterators, source and target, of equal length. Source records
// where a projection started; target is its current position along the
// cross-genome traversal carried out by package mapper.
package mapped

import (
	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/halcore/segiter"
)

// MappedSegment owns Source and Target exclusively (spec §5): callers
// must not retain either iterator past the mapped segment's lifetime.
type MappedSegment struct {
	Source *segiter.Iterator
	Target *segiter.Iterator
}

// New constructs a mapped segment, requiring source.Length() ==
// target.Length(); a mismatch or zero length fails with
// ErrInvalidInput (spec §4.3, §7).
func New(source, target *segiter.Iterator) (*MappedSegment, error) {
	if source.Length() <= 0 {
		return nil, errors.Wrapf(genome.ErrInvalidInput, "mapped segment: zero-length source")
	}
	if source.Length() != target.Length() {
		return nil, errors.Wrapf(genome.ErrInvalidInput,
			"mapped segment: source length %d != target length %d", source.Length(), target.Length())
	}
	return &MappedSegment{Source: source, Target: target}, nil
}

// Copy returns an independent deep copy (new iterator values).
func (m *MappedSegment) Copy() *MappedSegment {
	return &MappedSegment{Source: m.Source.Copy(), Target: m.Target.Copy()}
}

// Length delegates to target, the segment's current position.
func (m *MappedSegment) Length() int64 { return m.Target.Length() }

// Genome returns the genome the target iterator currently addresses.
func (m *MappedSegment) Genome() *genome.Genome { return m.Target.Genome }

// Reversed reports the target iterator's strand flag.
func (m *MappedSegment) Reversed() bool { return m.Target.Reversed }

// StartPos/EndPos delegate to target, the segment's current position.
func (m *MappedSegment) StartPos() int64 { return m.Target.StartPos() }
func (m *MappedSegment) EndPos() int64   { return m.Target.EndPos() }

// Slice always fails: a mapped segment's coordinates are derived from
// its iterators, not independently adjustable (spec §4.3).
func (m *MappedSegment) Slice(int64, int64) error {
	return errors.Wrapf(genome.ErrNotSupported, "mapped segment: slice not supported")
}

// SetCoordinates always fails, for the same reason as Slice.
func (m *MappedSegment) SetCoordinates(int64, int64) error {
	return errors.Wrapf(genome.ErrNotSupported, "mapped segment: setCoordinates not supported")
}

// Less implements the §4.3 ordering used for result-set insertion:
// compare Source first, then Target, using the §4.2 fast comparator.
func Less(a, b *MappedSegment) bool {
	if c := segiter.Compare(a.Source, b.Source); c != 0 {
		return c < 0
	}
	return segiter.Compare(a.Target, b.Target) < 0
}

// Compare is Less expressed as a three-way comparator, the shape
// required by ordered-container libraries such as
// github.com/rdleal/intervalst/interval.
func Compare(a, b *MappedSegment) int {
	if c := segiter.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return segiter.Compare(a.Target, b.Target)
}
