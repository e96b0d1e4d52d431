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

// Package lodextract implements the LOD extractor (spec §4.6, C6):
// builds a coarser output alignment from an input alignment by walking
// its genome tree and, at each internal node, sampling a LOD graph (C5)
// and writing it back as a fresh level of segments.
package lodextract

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/halcore/halog"
	"github.com/shenwei356/halcore/lod"
	"github.com/shenwei356/halcore/newick"
	"github.com/shenwei356/halcore/segiter"
)

// CreateInterpolatedAlignment is the §6 public entry point. It walks
// in's genome tree (or the explicitly given tree, if tree is non-empty)
// in BFS order and, for every internal node, samples a LOD graph at
// step and writes it into out.
func CreateInterpolatedAlignment(in, out genome.Alignment, step int64, tree string) error {
	if step <= 0 {
		return errors.Wrapf(genome.ErrInvalidInput, "lodextract: step must be positive, got %d", step)
	}

	newTree := tree
	if newTree == "" {
		newTree = in.NewickTree()
	}
	if err := createTree(in, out, newTree); err != nil {
		return err
	}
	halog.Infof("lodextract: tree = %s", out.NewickTree())

	queue := []string{out.RootName()}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		childNames := out.ChildNames(name)
		if len(childNames) == 0 {
			continue
		}
		if err := convertInternalNode(in, out, name, step); err != nil {
			return errors.Wrapf(err, "lodextract: converting %s", name)
		}
		queue = append(queue, childNames...)
	}
	return nil
}

// createTree parses tree and registers every node into out, in BFS
// order, verifying each label resolves in in first (spec §4.6 step 1).
func createTree(in, out genome.Alignment, tree string) error {
	if out.NumGenomes() != 0 {
		return errors.Wrapf(genome.ErrStructural, "lodextract: output alignment is not empty")
	}
	root, err := newick.ParseString(tree)
	if err != nil {
		return err
	}

	var walkErr error
	newick.Walk(root, func(n, parent *newick.Node) {
		if walkErr != nil {
			return
		}
		if n.Label == "" {
			walkErr = errors.Wrapf(genome.ErrParse, "lodextract: unlabeled node in tree")
			return
		}
		g, err := in.OpenGenome(n.Label)
		if err != nil {
			walkErr = errors.Wrapf(genome.ErrMissingGenome,
				"lodextract: genome %q in tree not found in source alignment", n.Label)
			return
		}
		if err := in.CloseGenome(g); err != nil {
			walkErr = err
			return
		}

		if parent == nil {
			_, walkErr = out.AddRootGenome(n.Label)
			return
		}
		branchLength := n.BranchLength
		if branchLength > 1e10 {
			branchLength = 1.0
		}
		_, walkErr = out.AddLeafGenome(n.Label, parent.Label, branchLength)
	})
	return walkErr
}

// convertInternalNode performs one BFS step of §4.6's pipeline: build
// the LOD graph for genomeName and its children, then write it back
// into out across the dimension, segment, homology and parse-info
// passes, releasing resources before returning.
func convertInternalNode(in, out genome.Alignment, genomeName string, step int64) error {
	parent, err := in.OpenGenome(genomeName)
	if err != nil {
		return err
	}
	childNames := out.ChildNames(genomeName)
	children := make([]*genome.Genome, len(childNames))
	for i, name := range childNames {
		c, err := in.OpenGenome(name)
		if err != nil {
			return err
		}
		children[i] = c
	}

	graph, err := lod.Build(parent, children, step)
	if err != nil {
		return err
	}

	counts := countSegmentsInGraph(graph)
	if err := writeDimensions(out, counts, genomeName, childNames); err != nil {
		return err
	}
	if err := writeSegments(out, graph, parent, children); err != nil {
		return err
	}
	if err := writeHomologies(out, graph, parent); err != nil {
		return err
	}

	outParent, err := out.OpenGenome(genomeName)
	if err != nil {
		return err
	}
	if err := writeParseInfo(outParent); err != nil {
		return err
	}

	halog.Debugf("lodextract: converted %s: %d blocks", genomeName, graph.NumBlocks())
	graph.Erase()

	if err := out.CloseGenome(outParent); err != nil {
		return err
	}
	if err := in.CloseGenome(parent); err != nil {
		return err
	}
	for i, name := range childNames {
		outChild, err := out.OpenGenome(name)
		if err != nil {
			return err
		}
		if err := out.CloseGenome(outChild); err != nil {
			return err
		}
		if err := in.CloseGenome(children[i]); err != nil {
			return err
		}
	}
	return nil
}

// countSegmentsInGraph tallies, per input sequence, how many LOD
// segments across all blocks belong to it (spec §4.6 step c).
func countSegmentsInGraph(graph *lod.LodGraph) map[*genome.Sequence]int {
	counts := map[*genome.Sequence]int{}
	for i := 0; i < graph.NumBlocks(); i++ {
		for _, seg := range graph.Block(i).Segments() {
			counts[seg.Sequence]++
		}
	}
	return counts
}

// writeDimensions dimensions every output genome touched by this BFS
// step (spec §4.6 step d): the parent gets bottom-only counts (via
// SetDimensions if it is the tree root, else UpdateBottomDimensions
// since it already received top dimensions as a child in an earlier
// step); every child gets top-only counts via SetDimensions.
func writeDimensions(out genome.Alignment, counts map[*genome.Sequence]int, parentName string, childNames []string) error {
	type entry struct {
		seq   *genome.Sequence
		count int
	}
	byGenome := map[string][]entry{}
	for seq, c := range counts {
		byGenome[seq.Genome.Name] = append(byGenome[seq.Genome.Name], entry{seq, c})
	}
	for name := range byGenome {
		es := byGenome[name]
		sort.Slice(es, func(i, j int) bool { return es[i].seq.StartInGenome < es[j].seq.StartInGenome })
	}

	names := make([]string, 0, len(childNames)+1)
	names = append(names, childNames...)
	names = append(names, parentName)

	for _, name := range names {
		entries := byGenome[name]
		g, err := out.OpenGenome(name)
		if err != nil {
			return err
		}

		if name == parentName {
			if name == out.RootName() {
				dims := make([]genome.SequenceInfo, len(entries))
				for i, e := range entries {
					dims[i] = genome.SequenceInfo{Name: e.seq.Name, Length: e.seq.Length, NumBottomSegs: e.count}
				}
				if err := out.SetDimensions(g, dims); err != nil {
					return err
				}
			} else {
				updates := make([]genome.SequenceUpdate, len(entries))
				for i, e := range entries {
					updates[i] = genome.SequenceUpdate{Name: e.seq.Name, NumBottomSegs: e.count}
				}
				if err := out.UpdateBottomDimensions(g, updates); err != nil {
					return err
				}
			}
			continue
		}

		dims := make([]genome.SequenceInfo, len(entries))
		for i, e := range entries {
			dims[i] = genome.SequenceInfo{Name: e.seq.Name, Length: e.seq.Length, NumTopSegs: e.count}
		}
		if err := out.SetDimensions(g, dims); err != nil {
			return err
		}
	}
	return nil
}

// writeSegments walks the graph's ordered segment sets, skipping the
// two telomere sentinels, writing each LOD segment's final coordinates
// into the freshly dimensioned output genome and recording its
// assigned array index back onto the LOD segment for the homology pass
// to cross-reference (spec §4.6 step e).
func writeSegments(out genome.Alignment, graph *lod.LodGraph, parent *genome.Genome, children []*genome.Genome) error {
	inGenomes := make([]*genome.Genome, 0, len(children)+1)
	inGenomes = append(inGenomes, children...)
	inGenomes = append(inGenomes, parent)

	for _, inGenome := range inGenomes {
		outGenome, err := out.OpenGenome(inGenome.Name)
		if err != nil {
			return err
		}
		kind := genome.TopKind
		if inGenome == parent {
			kind = genome.BottomKind
		}

		total := 0
		for _, seq := range inGenome.Sequences() {
			if ss := graph.SegmentSet(seq); ss != nil {
				total += len(ss.NonTelomereSegments())
			}
		}
		if total == 0 {
			continue
		}

		cursor := segiter.New(outGenome, kind, 0)
		written := 0
		for _, seq := range inGenome.Sequences() {
			ss := graph.SegmentSet(seq)
			if ss == nil {
				continue
			}
			for _, seg := range ss.NonTelomereSegments() {
				seg.ArrayIndex = cursor.ArrayIndex()
				cursor.SetCoordinates(seq.StartInGenome+seg.LeftPos, seg.Length)
				written++
				if written < total {
					if err := cursor.Advance(); err != nil {
						return errors.Wrapf(genome.ErrConsistency, "writeSegments: %v", err)
					}
				}
			}
		}
	}
	return nil
}

// writeHomologies buckets each block's segments by genome and rewrites
// the cross-genome and paralogy links of every covered segment (spec
// §4.6 step f).
func writeHomologies(out genome.Alignment, graph *lod.LodGraph, parent *genome.Genome) error {
	outParent, err := out.OpenGenome(parent.Name)
	if err != nil {
		return err
	}
	for i := 0; i < graph.NumBlocks(); i++ {
		block := graph.Block(i)
		segMap := map[*genome.Genome][]*lod.LodSegment{}
		for _, seg := range block.Segments() {
			g := seg.Sequence.Genome
			segMap[g] = append(segMap[g], seg)
		}
		if err := updateBlockEdges(out, outParent, parent, segMap); err != nil {
			return err
		}
	}
	return nil
}

// updateBlockEdges rewrites one block's links: the parent's covered
// segments have their child links cleared and the first (in insertion
// order) is designated canonical; every child segment gets
// parentIndex/parentReversed pointing at the canonical parent plus a
// cyclic nextParalogyIndex across its own genome's segments in the
// block (spec §4.6 step f, grounded line-by-line on
// halLodExtract.cpp's updateBlockEdges).
func updateBlockEdges(out genome.Alignment, outParent, inParent *genome.Genome, segMap map[*genome.Genome][]*lod.LodSegment) error {
	var rootSeg *lod.LodSegment
	if segs, ok := segMap[inParent]; ok && len(segs) > 0 {
		for _, s := range segs {
			bs := &outParent.Bot[s.ArrayIndex]
			for i := range bs.ChildIndices {
				bs.ChildIndices[i] = genome.NullIndex
				bs.ChildReversed[i] = false
			}
			bs.TopParseIndex = genome.NullIndex
		}
		rootSeg = segs[0]
	}

	for g, segs := range segMap {
		if g == inParent {
			continue
		}
		outChild, err := out.OpenGenome(g.Name)
		if err != nil {
			return err
		}
		childSlot := outParent.ChildIndex(outChild)
		if childSlot == genome.NullIndex {
			return errors.Wrapf(genome.ErrConsistency,
				"updateBlockEdges: %s is not a child of %s", g.Name, inParent.Name)
		}

		for i, s := range segs {
			ts := &outChild.Top[s.ArrayIndex]
			ts.BottomParseIndex = genome.NullIndex

			if rootSeg != nil {
				ts.ParentIndex = rootSeg.ArrayIndex
				reversed := s.Flipped == rootSeg.Flipped
				ts.ParentReversed = reversed
				if i == 0 {
					bs := &outParent.Bot[rootSeg.ArrayIndex]
					bs.ChildIndices[childSlot] = s.ArrayIndex
					bs.ChildReversed[childSlot] = reversed
				}
			} else {
				ts.ParentIndex = genome.NullIndex
			}

			next := (i + 1) % len(segs)
			if next == i {
				ts.NextParalogyIndex = genome.NullIndex
			} else {
				ts.NextParalogyIndex = segs[next].ArrayIndex
			}
		}
	}
	return nil
}

// writeParseInfo co-walks g's top and bottom segment arrays, recording
// in each segment the array index of the opposite-type segment whose
// span contains its start (spec §4.6 step g). At every iteration at
// least one cursor advances, so the walk is O(nTop+nBot).
func writeParseInfo(g *genome.Genome) error {
	if !g.HasParent() || g.NumChildren() == 0 {
		return nil
	}

	bi, ti := 0, 0
	nBot, nTop := len(g.Bot), len(g.Top)
	for bi < nBot && ti < nTop {
		bot := &g.Bot[bi]
		top := &g.Top[ti]
		bstart, bend := bot.StartPos, bot.EndPos()
		tstart, tend := top.StartPos, top.EndPos()

		bright, tright := false, false
		if bstart >= tstart && bstart < tend {
			bot.TopParseIndex = ti
		}
		if bend <= tend || bstart == bend {
			bright = true
		}
		if tstart >= bstart && tstart < bend {
			top.BottomParseIndex = bi
		}
		if tend <= bend || tstart == tend {
			tright = true
		}

		if !bright && !tright {
			return errors.Wrapf(genome.ErrConsistency, "writeParseInfo: neither cursor can advance")
		}
		if bright {
			bi++
		}
		if tright {
			ti++
		}
	}
	return nil
}
