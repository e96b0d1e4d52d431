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

package mapper

import (
	"sort"

	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/halcore/mapped"
)

// ResultSet is the append-only, ordered collection of mapped segments
// produced by MapSegment (spec §4.4's "ordered set keyed by the §4.3
// comparator"). It is backed by an interval.SearchTree keyed by each
// segment's target position, giving CutAgainstSet a real intersection
// query to build on if it is ever strengthened beyond pass-through; the
// §4.3 total order itself is produced on demand by Sorted.
type ResultSet struct {
	tree  *interval.SearchTree[*mapped.MappedSegment, int64]
	items []*mapped.MappedSegment
}

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

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{tree: interval.NewSearchTree[*mapped.MappedSegment, int64](int64Cmp)}
}

// Insert adds m, keyed in the interval tree by its current target
// position. The set is deduplicated on the §4.3 (Source, Target)
// ordering (mapped.Compare): an m equal under that ordering to an
// already-inserted segment is dropped rather than appended again,
// matching the original's std::set<DefaultMappedSegmentConstPtr>.
func (r *ResultSet) Insert(m *mapped.MappedSegment) {
	for _, existing := range r.items {
		if mapped.Compare(existing, m) == 0 {
			return
		}
	}
	r.tree.Insert(m.StartPos(), m.EndPos(), m)
	r.items = append(r.items, m)
}

// AnyIntersection reports whether any inserted segment's target range
// overlaps [start, end).
func (r *ResultSet) AnyIntersection(start, end int64) (*mapped.MappedSegment, bool) {
	return r.tree.AnyIntersection(start, end)
}

// Len returns the number of inserted segments.
func (r *ResultSet) Len() int { return len(r.items) }

// Items returns the segments in insertion order.
func (r *ResultSet) Items() []*mapped.MappedSegment { return r.items }

// Sorted returns a copy of the segments in the §4.3 total order.
func (r *ResultSet) Sorted() []*mapped.MappedSegment {
	out := append([]*mapped.MappedSegment(nil), r.items...)
	sort.Slice(out, func(i, j int) bool { return mapped.Less(out[i], out[j]) })
	return out
}
