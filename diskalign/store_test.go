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

package diskalign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Create(StoreOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestCreateRejectsNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Create(StoreOptions{Dir: dir}); !errors.Is(err, genome.ErrStructural) {
		t.Fatalf("expected ErrStructural for non-empty directory, got %v", err)
	}
}

func TestAddGenomesAndDimensions(t *testing.T) {
	s := newTestStore(t)

	root, err := s.AddRootGenome("R")
	if err != nil {
		t.Fatalf("AddRootGenome: %v", err)
	}
	a, err := s.AddLeafGenome("A", "R", 1.5)
	if err != nil {
		t.Fatalf("AddLeafGenome A: %v", err)
	}
	if _, err := s.AddLeafGenome("B", "R", 2.0); err != nil {
		t.Fatalf("AddLeafGenome B: %v", err)
	}

	if s.RootName() != "R" {
		t.Fatalf("expected root R, got %s", s.RootName())
	}
	if s.NumGenomes() != 3 {
		t.Fatalf("expected 3 genomes, got %d", s.NumGenomes())
	}
	children := s.ChildNames("R")
	if len(children) != 2 || children[0] != "A" || children[1] != "B" {
		t.Fatalf("unexpected children of R: %v", children)
	}
	if a.BranchLength != 1.5 {
		t.Fatalf("expected A branch length 1.5, got %v", a.BranchLength)
	}

	if err := s.SetDimensions(root, []genome.SequenceInfo{
		{Name: "rchr", Length: 1000, NumTopSegs: 0, NumBottomSegs: 10},
	}); err != nil {
		t.Fatalf("SetDimensions root: %v", err)
	}
	if err := s.SetDimensions(a, []genome.SequenceInfo{
		{Name: "achr", Length: 1000, NumTopSegs: 10, NumBottomSegs: 0},
	}); err != nil {
		t.Fatalf("SetDimensions A: %v", err)
	}

	if err := s.SetDimensions(root, nil); !errors.Is(err, genome.ErrStructural) {
		t.Fatalf("expected ErrStructural re-dimensioning root, got %v", err)
	}

	opened, err := s.OpenGenome("R")
	if err != nil {
		t.Fatalf("OpenGenome R: %v", err)
	}
	if len(opened.Bot) != 10 {
		t.Fatalf("expected 10 bottom segments, got %d", len(opened.Bot))
	}
	for _, b := range opened.Bot {
		if len(b.ChildIndices) != 2 || b.ChildIndices[0] != genome.NullIndex || b.ChildIndices[1] != genome.NullIndex {
			t.Fatalf("expected fresh bottom segment with null child links, got %+v", b)
		}
	}
	if err := s.CloseGenome(opened); err != nil {
		t.Fatalf("CloseGenome R: %v", err)
	}
}

func TestOpenGenomeRefCounting(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.AddRootGenome("R")
	s.SetDimensions(root, []genome.SequenceInfo{{Name: "rchr", Length: 100, NumBottomSegs: 1}})

	g1, err := s.OpenGenome("R")
	if err != nil {
		t.Fatalf("first OpenGenome: %v", err)
	}
	g2, err := s.OpenGenome("R")
	if err != nil {
		t.Fatalf("second OpenGenome: %v", err)
	}
	if g1 != g2 {
		t.Fatalf("expected the same Genome handle across opens")
	}

	if err := s.CloseGenome(g1); err != nil {
		t.Fatalf("first CloseGenome: %v", err)
	}
	if g1.Bot == nil {
		t.Fatalf("expected segments to remain resident with an outstanding reference")
	}
	if err := s.CloseGenome(g2); err != nil {
		t.Fatalf("second CloseGenome: %v", err)
	}
	if g1.Bot != nil {
		t.Fatalf("expected segments released once the last reference closed")
	}
}

func TestCloseGenomeNotOpenFails(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.AddRootGenome("R")
	if err := s.CloseGenome(root); !errors.Is(err, genome.ErrMissingGenome) {
		t.Fatalf("expected ErrMissingGenome closing a never-opened genome, got %v", err)
	}
}

func TestUpdateBottomDimensionsPreservesTop(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.AddRootGenome("R")
	x, err := s.AddLeafGenome("X", "R", 1)
	if err != nil {
		t.Fatalf("AddLeafGenome: %v", err)
	}
	_, err = s.AddLeafGenome("Y", "X", 1)
	if err != nil {
		t.Fatalf("AddLeafGenome Y: %v", err)
	}

	if err := s.SetDimensions(x, []genome.SequenceInfo{
		{Name: "xchr", Length: 100, NumTopSegs: 5, NumBottomSegs: 0},
	}); err != nil {
		t.Fatalf("SetDimensions X: %v", err)
	}

	if err := s.UpdateBottomDimensions(x, []genome.SequenceUpdate{
		{Name: "xchr", NumBottomSegs: 3},
	}); err != nil {
		t.Fatalf("UpdateBottomDimensions: %v", err)
	}

	opened, err := s.OpenGenome("X")
	if err != nil {
		t.Fatalf("OpenGenome X: %v", err)
	}
	if len(opened.Top) != 5 {
		t.Fatalf("expected top dimensions untouched at 5, got %d", len(opened.Top))
	}
	if len(opened.Bot) != 3 {
		t.Fatalf("expected 3 bottom segments, got %d", len(opened.Bot))
	}
	s.CloseGenome(opened)

	_ = root
}

func TestReopenStoreFromDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(StoreOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	root, _ := s.AddRootGenome("R")
	a, _ := s.AddLeafGenome("A", "R", 1)
	if err := s.SetDimensions(root, []genome.SequenceInfo{{Name: "rchr", Length: 200, NumBottomSegs: 2}}); err != nil {
		t.Fatalf("SetDimensions root: %v", err)
	}
	if err := s.SetDimensions(a, []genome.SequenceInfo{{Name: "achr", Length: 200, NumTopSegs: 2}}); err != nil {
		t.Fatalf("SetDimensions A: %v", err)
	}

	reopened, err := Open(StoreOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.RootName() != "R" {
		t.Fatalf("expected root R after reopen, got %s", reopened.RootName())
	}
	if reopened.NumGenomes() != 2 {
		t.Fatalf("expected 2 genomes after reopen, got %d", reopened.NumGenomes())
	}

	openedRoot, err := reopened.OpenGenome("R")
	if err != nil {
		t.Fatalf("OpenGenome R after reopen: %v", err)
	}
	if len(openedRoot.Bot) != 2 {
		t.Fatalf("expected 2 bottom segments after reopen, got %d", len(openedRoot.Bot))
	}
	if len(openedRoot.Sequences()) != 1 || openedRoot.Sequences()[0].Name != "rchr" {
		t.Fatalf("expected sequence rchr to survive reopen, got %+v", openedRoot.Sequences())
	}
}

func TestNewickTreeCanonicalOutput(t *testing.T) {
	s := newTestStore(t)
	s.AddRootGenome("R")
	s.AddLeafGenome("B", "R", 2)
	s.AddLeafGenome("A", "R", 1)

	want := "(A:1,B:2)R;"
	if got := s.NewickTree(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestAddLeafGenomeMissingParent(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddLeafGenome("A", "nope", 1); !errors.Is(err, genome.ErrMissingGenome) {
		t.Fatalf("expected ErrMissingGenome, got %v", err)
	}
}
