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

// Package mapper implements the cross-genome mapper (spec §4.4, C4):
// projecting an interval on one genome into homologous intervals on
// another, walking the ancestry tree via an explicit work-stack.
package mapper

import (
	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/halcore/halog"
	"github.com/shenwei356/halcore/mapped"
	"github.com/shenwei356/halcore/segiter"
)

// frame is one unit of mapRecursive's explicit work-stack: a genome
// currently being visited, the mapped segments positioned on it, and
// the genome the walk arrived from (so it is never revisited).
type frame struct {
	g       *genome.Genome
	working []*mapped.MappedSegment
	prev    *genome.Genome
}

// MapSegment is the §6 public entry point. It projects source into
// tgtGenome, visiting only genomes in path (plus tgtGenome itself),
// appending every resulting mapped segment to results, and returns how
// many were added.
func MapSegment(source *segiter.Iterator, results *ResultSet, tgtGenome *genome.Genome, path map[*genome.Genome]bool, includeDuplications bool) (int, error) {
	if source.Length() <= 0 {
		return 0, errors.Wrapf(genome.ErrInvalidInput, "mapSegment: zero-length source")
	}
	start, err := mapped.New(source.Copy(), source.Copy())
	if err != nil {
		return 0, err
	}

	p := make(map[*genome.Genome]bool, len(path)+1)
	for g := range path {
		p[g] = true
	}
	p[tgtGenome] = true

	before := results.Len()
	if err := mapRecursive(start.Genome(), []*mapped.MappedSegment{start}, p, includeDuplications, results); err != nil {
		return results.Len() - before, err
	}
	return results.Len() - before, nil
}

// mapRecursive walks the tree with an explicit stack of frames rather
// than unbounded recursion (spec §5, §9: recursion depth bounded by
// tree diameter, but an explicit stack is preferred for very tall
// trees). It reproduces the single-matching-child-per-frame walk of
// the source exactly (spec §9 open question: later matching children
// are never visited from the same frame).
func mapRecursive(start *genome.Genome, startSet []*mapped.MappedSegment, p map[*genome.Genome]bool, dupes bool, results *ResultSet) error {
	stack := []frame{{g: start, working: startSet, prev: nil}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		g, working, prev := fr.g, fr.working, fr.prev

		halog.Debugf("mapRecursive: genome=%s working=%d prev=%v", g.Name, len(working), prev)

		var next *genome.Genome
		goingUp := false
		if g.HasParent() && p[g.Parent] && g.Parent != prev {
			next = g.Parent
			goingUp = true
		} else {
			for i := 0; i < g.NumChildren(); i++ {
				c := g.Child(i)
				if c != prev && p[c] {
					next = c
					break
				}
			}
		}

		if next == nil {
			if dupes {
				expanded, err := expandSelf(working)
				if err != nil {
					return err
				}
				working = expanded
			}
			for _, m := range working {
				if CutAgainstSet(results, m) {
					results.Insert(m)
				}
			}
			continue
		}

		if dupes && !goingUp {
			expanded, err := expandSelf(working)
			if err != nil {
				return err
			}
			working = expanded
		}

		var hopped []*mapped.MappedSegment
		for _, m := range working {
			var out []*mapped.MappedSegment
			var err error
			if goingUp {
				out, err = mapUp(m)
			} else {
				out, err = mapDown(m, g.ChildIndex(next))
			}
			if err != nil {
				return err
			}
			hopped = append(hopped, out...)
		}

		stack = append(stack, frame{g: next, working: hopped, prev: g})
	}
	return nil
}

// CutAgainstSet is the spec §4.4/§9 hook reserved for suppressing
// emits already present in results. It is pass-through, faithfully
// reproducing the source's documented-but-unimplemented behavior
// ("avoid doing mappings that are already in results" was never wired
// up); a stronger implementation using results.AnyIntersection is a
// legitimate extension, not attempted here.
func CutAgainstSet(results *ResultSet, m *mapped.MappedSegment) bool {
	return true
}

// mapUp hops m one step toward the root. If currently top-positioned,
// it follows the parent link directly (dropping silently if there is
// none). If currently bottom-positioned, it first parses up to the
// overlapping top segment(s) of the same genome — there may be several
// covering the bottom segment's range — re-slicing source by the delta
// each parse causes, then recurses on each resulting top-positioned
// piece so every returned segment ends up positioned in the parent
// genome.
func mapUp(m *mapped.MappedSegment) ([]*mapped.MappedSegment, error) {
	if m.Target.IsTop() {
		if !m.Target.HasParent() {
			return nil, nil
		}
		newTarget, err := m.Target.ToParent()
		if err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapUp: %v", err)
		}
		nm, err := mapped.New(m.Source.Copy(), newTarget)
		if err != nil {
			return nil, err
		}
		return []*mapped.MappedSegment{nm}, nil
	}

	top, err := m.Target.ToParseUp()
	if err != nil {
		return nil, errors.Wrapf(genome.ErrConsistency, "mapUp: toParseUp: %v", err)
	}
	origStart, origEnd := m.Target.StartPos(), m.Target.EndPos()

	var out []*mapped.MappedSegment
	for {
		curStart, curEnd := top.StartPos(), top.EndPos()
		newSource := m.Source.Copy()
		if err := newSource.Slice(m.Source.StartOffset+(curStart-origStart), m.Source.EndOffset+(origEnd-curEnd)); err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapUp: re-slice: %v", err)
		}
		piece, err := mapped.New(newSource, top.Copy())
		if err != nil {
			return nil, err
		}
		up, err := mapUp(piece)
		if err != nil {
			return nil, err
		}
		out = append(out, up...)

		if curEnd >= origEnd {
			break
		}
		if err := top.ToRight(origEnd); err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapUp: toRight: %v", err)
		}
	}
	return out, nil
}

// mapDown is mapUp's symmetric counterpart: hops m one step toward
// childIdx. If currently bottom-positioned, it follows the child link
// directly. If currently top-positioned, it parses down within the
// same genome, walking however many bottom segments overlap its range,
// then recurses each resulting piece into the child genome.
func mapDown(m *mapped.MappedSegment, childIdx int) ([]*mapped.MappedSegment, error) {
	if !m.Target.IsTop() {
		if !m.Target.HasChild(childIdx) {
			return nil, nil
		}
		newTarget, err := m.Target.ToChild(childIdx)
		if err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapDown: %v", err)
		}
		nm, err := mapped.New(m.Source.Copy(), newTarget)
		if err != nil {
			return nil, err
		}
		return []*mapped.MappedSegment{nm}, nil
	}

	bottom, err := m.Target.ToParseDown()
	if err != nil {
		return nil, errors.Wrapf(genome.ErrConsistency, "mapDown: toParseDown: %v", err)
	}
	origStart, origEnd := m.Target.StartPos(), m.Target.EndPos()

	var out []*mapped.MappedSegment
	for {
		curStart, curEnd := bottom.StartPos(), bottom.EndPos()
		newSource := m.Source.Copy()
		if err := newSource.Slice(m.Source.StartOffset+(curStart-origStart), m.Source.EndOffset+(origEnd-curEnd)); err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapDown: re-slice: %v", err)
		}
		piece, err := mapped.New(newSource, bottom.Copy())
		if err != nil {
			return nil, err
		}
		down, err := mapDown(piece, childIdx)
		if err != nil {
			return nil, err
		}
		out = append(out, down...)

		if curEnd >= origEnd {
			break
		}
		if err := bottom.ToRight(origEnd); err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapDown: toRight: %v", err)
		}
	}
	return out, nil
}

// expandSelf runs mapSelf over every member of working, returning the
// original segments interleaved with whatever paralog duplicates each
// one has (spec §4.4 step 2).
func expandSelf(working []*mapped.MappedSegment) ([]*mapped.MappedSegment, error) {
	expanded := make([]*mapped.MappedSegment, 0, len(working))
	for _, m := range working {
		expanded = append(expanded, m)
		dups, err := mapSelf(m)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, dups...)
	}
	return expanded, nil
}

// mapSelf expands a mapped segment against its own genome's paralogy
// structure (spec §4.4 "paralog expansion"), returning the *additional*
// segments (never including m itself, which the caller already keeps).
// For a top-positioned segment it walks toNextParalogy until the cycle
// closes. For a bottom-positioned segment in a genome with a parent, it
// parses up to the overlapping top segment(s) first, then recurses
// mapSelf on each — only the deeper paralog partners found that way are
// duplications; the parse-up pieces themselves are just another view of
// the same, non-duplicated interval.
func mapSelf(m *mapped.MappedSegment) ([]*mapped.MappedSegment, error) {
	if m.Target.IsTop() {
		if !m.Target.HasNextParalogy() {
			return nil, nil
		}
		startIdx := m.Target.Index
		cur, err := m.Target.ToNextParalogy()
		if err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapSelf: %v", err)
		}
		var out []*mapped.MappedSegment
		for cur.Index != startIdx {
			nm, err := mapped.New(m.Source.Copy(), cur.Copy())
			if err != nil {
				return nil, err
			}
			out = append(out, nm)
			cur, err = cur.ToNextParalogy()
			if err != nil {
				return nil, errors.Wrapf(genome.ErrConsistency, "mapSelf: %v", err)
			}
		}
		return out, nil
	}

	if !m.Target.Genome.HasParent() {
		return nil, nil
	}
	top, err := m.Target.ToParseUp()
	if err != nil {
		return nil, errors.Wrapf(genome.ErrConsistency, "mapSelf: toParseUp: %v", err)
	}
	origStart, origEnd := m.Target.StartPos(), m.Target.EndPos()

	var out []*mapped.MappedSegment
	for {
		curStart, curEnd := top.StartPos(), top.EndPos()
		newSource := m.Source.Copy()
		if err := newSource.Slice(m.Source.StartOffset+(curStart-origStart), m.Source.EndOffset+(origEnd-curEnd)); err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapSelf: re-slice: %v", err)
		}
		piece, err := mapped.New(newSource, top.Copy())
		if err != nil {
			return nil, err
		}
		dups, err := mapSelf(piece)
		if err != nil {
			return nil, err
		}
		out = append(out, dups...)

		if curEnd >= origEnd {
			break
		}
		if err := top.ToRight(origEnd); err != nil {
			return nil, errors.Wrapf(genome.ErrConsistency, "mapSelf: toRight: %v", err)
		}
	}
	return out, nil
}

// Map is the §12 supplemented convenience (original:
// DefaultMappedSegment::getMappedSegments): re-enters MapSegment using
// m's own target as the new source iterator, for chained multi-hop
// queries without the caller re-extracting an iterator by hand. It
// lives here rather than on mapped.MappedSegment to avoid an import
// cycle (mapper already depends on mapped).
func Map(m *mapped.MappedSegment, results *ResultSet, tgtGenome *genome.Genome, path map[*genome.Genome]bool, includeDuplications bool) (int, error) {
	return MapSegment(m.Target, results, tgtGenome, path, includeDuplications)
}
