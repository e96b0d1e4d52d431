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

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shenwei356/natsort"
)

// CanonicalNewick serializes the subtree rooted at g into Newick format,
// with each node's children sorted in natural order rather than
// insertion order. This gives Alignment.NewickTree a deterministic
// output independent of the order genomes happened to be added in,
// separate from the BFS insertion order lodextract relies on internally.
func CanonicalNewick(root *Genome) string {
	var sb strings.Builder
	writeNewick(&sb, root, true)
	sb.WriteByte(';')
	return sb.String()
}

func writeNewick(sb *strings.Builder, g *Genome, isRoot bool) {
	children := append([]*Genome(nil), g.children...)
	sort.Slice(children, func(i, j int) bool {
		return natsort.Compare(children[i].Name, children[j].Name, false)
	})
	if len(children) > 0 {
		sb.WriteByte('(')
		for i, c := range children {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeNewick(sb, c, false)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(g.Name)
	if !isRoot {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(g.BranchLength, 'g', -1, 64))
	}
}
