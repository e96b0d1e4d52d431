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

// Package newick implements the minimal Newick-tree parser contract
// (spec §6): a stream-to-tree function producing labeled nodes with
// optional branch lengths, failing on unlabeled internal nodes.
package newick

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/xopen"
)

// Node is one node of a parsed Newick tree.
type Node struct {
	Label        string
	BranchLength float64
	HasLength    bool
	Children     []*Node
}

// ParseString parses s as a single Newick tree (trailing ';' optional).
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads and parses a Newick tree from path, transparently
// decompressing gzip input via xopen.
func ParseFile(path string) (*Node, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrapf(genome.ErrParse, "newick: open %s: %v", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one Newick tree from r.
func Parse(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrapf(genome.ErrParse, "newick: read: %v", err)
	}
	s := strings.TrimSpace(string(data))
	s = strings.TrimSuffix(s, ";")
	if s == "" {
		return nil, errors.Wrapf(genome.ErrParse, "newick: empty input")
	}

	p := &parser{s: s}
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, errors.Wrapf(genome.ErrParse, "newick: trailing input at byte %d", p.pos)
	}
	if node.Label == "" {
		return nil, errors.Wrapf(genome.ErrParse, "newick: unlabeled node")
	}
	return node, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

// parseNode parses a subtree: an optional parenthesized child list,
// followed by a label and an optional ":branchLength".
func (p *parser) parseNode() (*Node, error) {
	n := &Node{}
	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		if p.peek() != ')' {
			return nil, errors.Wrapf(genome.ErrParse, "newick: expected ')' at byte %d", p.pos)
		}
		p.pos++
	}

	n.Label = p.parseLabel()
	if len(n.Children) > 0 && n.Label == "" {
		return nil, errors.Wrapf(genome.ErrParse, "newick: unlabeled internal node")
	}

	if p.peek() == ':' {
		p.pos++
		numStart := p.pos
		for p.pos < len(p.s) && strings.IndexByte("0123456789.eE+-", p.s[p.pos]) >= 0 {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.s[numStart:p.pos], 64)
		if err != nil {
			return nil, errors.Wrapf(genome.ErrParse, "newick: bad branch length at byte %d: %v", numStart, err)
		}
		n.BranchLength = v
		n.HasLength = true
	}
	return n, nil
}

func (p *parser) parseLabel() string {
	start := p.pos
	for p.pos < len(p.s) && strings.IndexByte("(),:;", p.s[p.pos]) < 0 {
		p.pos++
	}
	return strings.TrimSpace(p.s[start:p.pos])
}

// Walk visits n and every descendant in BFS order, root first.
func Walk(root *Node, visit func(n, parent *Node)) {
	type pair struct{ n, parent *Node }
	queue := []pair{{root, nil}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visit(cur.n, cur.parent)
		for _, c := range cur.n.Children {
			queue = append(queue, pair{c, cur.n})
		}
	}
}
