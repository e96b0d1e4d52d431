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
	"strings"
	"testing"
)

func buildTwoLeafTree() *Genome {
	root := New("R")
	a := New("A")
	b := New("B")
	a.BranchLength = 1
	b.BranchLength = 1
	root.AddChild(a)
	root.AddChild(b)
	return root
}

func TestTreeNavigation(t *testing.T) {
	root := buildTwoLeafTree()
	if root.NumChildren() != 2 {
		t.Fatalf("expected 2 children, got %d", root.NumChildren())
	}
	a := root.Child(0)
	if a.Parent != root {
		t.Fatalf("expected A's parent to be root")
	}
	if root.ChildIndex(a) != 0 {
		t.Fatalf("expected A at child index 0")
	}
	if root.HasParent() {
		t.Fatalf("root must not have a parent")
	}
	if !a.HasParent() {
		t.Fatalf("A must have a parent")
	}
}

func TestSetSequences(t *testing.T) {
	g := New("A")
	g.SetSequences([]*Sequence{
		{Name: "chr1", Length: 100},
		{Name: "chr2", Length: 50},
	})
	if g.Sequence("chr2").StartInGenome != 100 {
		t.Fatalf("expected chr2 to start at 100, got %d", g.Sequence("chr2").StartInGenome)
	}
	seq, pos := g.SequenceAt(120)
	if seq == nil || seq.Name != "chr2" || pos != 20 {
		t.Fatalf("SequenceAt(120) = %v, %d; want chr2, 20", seq, pos)
	}
}

func TestCanonicalNewickSortsChildren(t *testing.T) {
	root := New("R")
	z := New("zebra")
	a := New("alpha10")
	a2 := New("alpha2")
	root.AddChild(z)
	root.AddChild(a)
	root.AddChild(a2)

	nw := CanonicalNewick(root)
	// natural order: alpha2 before alpha10 before zebra
	iAlpha2 := strings.Index(nw, "alpha2")
	iAlpha10 := strings.Index(nw, "alpha10")
	iZebra := strings.Index(nw, "zebra")
	if !(iAlpha2 < iAlpha10 && iAlpha10 < iZebra) {
		t.Fatalf("expected natural order alpha2 < alpha10 < zebra, got %q", nw)
	}
	if !strings.HasSuffix(nw, "R;") {
		t.Fatalf("expected tree to end in root label and semicolon, got %q", nw)
	}
}

func TestFingerprintStable(t *testing.T) {
	g1 := New("same-name")
	g2 := New("same-name")
	if g1.Fingerprint() != g2.Fingerprint() {
		t.Fatalf("fingerprints of equal names should match")
	}
	g3 := New("different-name")
	if g1.Fingerprint() == g3.Fingerprint() {
		t.Fatalf("fingerprints of different names should (almost certainly) differ")
	}
}
