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

package newick

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
)

func TestParseStringTwoLeafTree(t *testing.T) {
	root, err := ParseString("(A:1,B:1)R;")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if root.Label != "R" {
		t.Fatalf("expected root label R, got %q", root.Label)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	if root.Children[0].Label != "A" || root.Children[0].BranchLength != 1 {
		t.Fatalf("unexpected child 0: %+v", root.Children[0])
	}
	if root.Children[1].Label != "B" || root.Children[1].BranchLength != 1 {
		t.Fatalf("unexpected child 1: %+v", root.Children[1])
	}
}

func TestParseStringKeepsHugeBranchLength(t *testing.T) {
	root, err := ParseString("(A:1e30,B:2)R;")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if root.Children[0].BranchLength != 1e30 {
		t.Fatalf("parser itself should not clamp; clamping is lodextract's job, got %v",
			root.Children[0].BranchLength)
	}
	if root.Children[1].BranchLength != 2 {
		t.Fatalf("expected B branch length 2, got %v", root.Children[1].BranchLength)
	}
}

func TestParseStringRejectsUnlabeledInternalNode(t *testing.T) {
	_, err := ParseString("(A:1,B:1);")
	if !errors.Is(err, genome.ErrParse) {
		t.Fatalf("expected ErrParse for unlabeled internal node, got %v", err)
	}
}

func TestParseStringRejectsEmptyInput(t *testing.T) {
	if _, err := ParseString(""); !errors.Is(err, genome.ErrParse) {
		t.Fatalf("expected ErrParse for empty input")
	}
}

func TestWalkVisitsBFSOrder(t *testing.T) {
	root, err := ParseString("((C:1,D:1)A:1,B:1)R;")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	var order []string
	Walk(root, func(n, parent *Node) {
		order = append(order, n.Label)
	})
	want := []string{"R", "A", "B", "C", "D"}
	if len(order) != len(want) {
		t.Fatalf("expected %d visits, got %d (%v)", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("BFS order mismatch at %d: want %s, got %s (%v)", i, want[i], order[i], order)
		}
	}
}
