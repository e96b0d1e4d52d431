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

package mapped

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/halcore/segiter"
)

func oneSegGenome(length int64) *genome.Genome {
	g := genome.New("X")
	g.Top = []genome.TopSegment{
		{StartPos: 0, Length: length, ParentIndex: genome.NullIndex, NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex},
	}
	return g
}

func TestNewRejectsLengthMismatch(t *testing.T) {
	g := oneSegGenome(100)
	source := segiter.New(g, genome.TopKind, 0)
	target := segiter.New(g, genome.TopKind, 0)
	if err := target.Slice(10, 10); err != nil {
		t.Fatalf("slice: %v", err)
	}
	if _, err := New(source, target); !errors.Is(err, genome.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewRejectsZeroLength(t *testing.T) {
	g := oneSegGenome(100)
	source := segiter.New(g, genome.TopKind, 0)
	if err := source.Slice(100, 0); err != nil {
		t.Fatalf("slice: %v", err)
	}
	target := source.Copy()
	if _, err := New(source, target); !errors.Is(err, genome.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero-length, got %v", err)
	}
}

func TestSliceAndSetCoordinatesNotSupported(t *testing.T) {
	g := oneSegGenome(100)
	source := segiter.New(g, genome.TopKind, 0)
	target := segiter.New(g, genome.TopKind, 0)
	m, err := New(source, target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Slice(0, 0); !errors.Is(err, genome.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported from Slice, got %v", err)
	}
	if err := m.SetCoordinates(0, 0); !errors.Is(err, genome.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported from SetCoordinates, got %v", err)
	}
}

func TestLessOrdersBySourceThenTarget(t *testing.T) {
	g := oneSegGenome(100)
	mk := func(srcOff, tgtOff int64) *MappedSegment {
		s := segiter.New(g, genome.TopKind, 0)
		_ = s.Slice(srcOff, tgtOff)
		tg := segiter.New(g, genome.TopKind, 0)
		_ = tg.Slice(tgtOff, srcOff)
		m, err := New(s, tg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return m
	}
	a := mk(0, 5)
	b := mk(1, 0)
	if !Less(a, b) {
		t.Fatalf("expected a < b by smaller source offset")
	}
	if Compare(a, b) >= 0 {
		t.Fatalf("expected Compare(a,b) < 0")
	}
}
