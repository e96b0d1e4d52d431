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

// Package diskalign is a concrete, disk-backed implementation of
// genome.Alignment (spec §6, C1): a directory of per-genome segment
// files plus a gzip-compressed TOML manifest recording tree topology and
// sequence dimensions. It is one realization of the abstract access
// contract the core (segiter, mapped, mapper, lod, lodextract) depends
// on, not the HDF5 backend spec.md places out of scope (§1).
package diskalign

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/iafan/cwalk"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/shenwei356/halcore/diskalign/twobit"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/halcore/halog"
	"github.com/shenwei356/util/pathutil"
)

// StoreOptions configures a Store, mirroring the teacher's cmd.Options
// shape (lexicmap/cmd/util.go): where data lives, whether to keep
// sequence payloads, and how hard to compress the manifest.
type StoreOptions struct {
	// Dir is the store's root directory. If empty, it defaults to
	// "halcore-store" under the user's home directory.
	Dir string
	// SaveTwoBit, if true, persists imported sequence content as
	// 2-bit-packed payloads (diskalign/twobit), not just coordinates.
	SaveTwoBit bool
	// CompressionLevel is the gzip level used for the manifest. Twobit
	// payloads are written uncompressed. Zero means pgzip's default.
	CompressionLevel int
}

func (o StoreOptions) resolveDir() (string, error) {
	if o.Dir != "" {
		return o.Dir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrapf(genome.ErrStructural, "diskalign: resolve home directory: %v", err)
	}
	return filepath.Join(home, "halcore-store"), nil
}

func (o StoreOptions) compressionLevel() int {
	if o.CompressionLevel == 0 {
		return pgzip.DefaultCompression
	}
	return o.CompressionLevel
}

// openHandle tracks the reference count and lazily-loaded resources for
// a genome between OpenGenome and its matching CloseGenome calls.
type openHandle struct {
	refCount     int
	twobitReader *twobit.Reader
}

// Store is a disk-backed genome.Alignment. The genome tree (names,
// parent/child links, branch lengths, sequence dimensions) is always
// resident in memory; segment arrays and twobit readers are loaded on
// OpenGenome and released once the last matching CloseGenome drops the
// reference count to zero (spec.md §9's observation that closing a
// genome may release caches, made concrete here).
type Store struct {
	dir  string
	opts StoreOptions

	mu       sync.Mutex
	manifest *manifestFile
	genomes  map[string]*genome.Genome
	open     map[string]*openHandle
}

func genomeDir(dir, name string) string {
	return filepath.Join(dir, "genomes", name)
}

// Create initializes a new, empty store at opts.Dir (or its resolved
// default). The directory must not exist or must be empty, mirroring
// index.Index.SetOutputPath's non-empty-output-directory check.
func Create(opts StoreOptions) (*Store, error) {
	dir, err := opts.resolveDir()
	if err != nil {
		return nil, err
	}

	existed, err := pathutil.DirExists(dir)
	if err != nil {
		return nil, errors.Wrapf(genome.ErrStructural, "diskalign: stat %s: %v", dir, err)
	}
	if existed {
		empty, err := pathutil.IsEmpty(dir)
		if err != nil {
			return nil, errors.Wrapf(genome.ErrStructural, "diskalign: inspect %s: %v", dir, err)
		}
		if !empty {
			return nil, errors.Wrapf(genome.ErrStructural, "diskalign: %s is not empty", dir)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "genomes"), 0777); err != nil {
		return nil, errors.Wrapf(genome.ErrStructural, "diskalign: create %s: %v", dir, err)
	}

	s := &Store{
		dir:      dir,
		opts:     opts,
		manifest: newManifest(),
		genomes:  map[string]*genome.Genome{},
		open:     map[string]*openHandle{},
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	halog.Infof("diskalign: created store at %s", dir)
	return s, nil
}

// Open loads an existing store from opts.Dir (or its resolved default).
func Open(opts StoreOptions) (*Store, error) {
	dir, err := opts.resolveDir()
	if err != nil {
		return nil, err
	}

	m, err := loadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:      dir,
		opts:     opts,
		manifest: m,
		genomes:  map[string]*genome.Genome{},
		open:     map[string]*openHandle{},
	}

	// Genomes are listed in creation order (root first, each child after
	// its parent), so a single forward pass can link the tree.
	for _, mg := range m.Genomes {
		g := genome.New(mg.Name)
		g.BranchLength = mg.BranchLength
		if mg.Parent != "" {
			parent, ok := s.genomes[mg.Parent]
			if !ok {
				return nil, errors.Wrapf(genome.ErrStructural, "diskalign: manifest lists %s before its parent %s", mg.Name, mg.Parent)
			}
			parent.AddChild(g)
		}
		if mg.Dimensioned {
			g.SetSequences(manifestSequencesToGenome(mg.Sequences))
		}
		s.genomes[mg.Name] = g
	}

	if err := s.verifyGenomeDirs(); err != nil {
		return nil, err
	}

	halog.Infof("diskalign: opened store at %s (%d genomes)", dir, len(s.genomes))
	return s, nil
}

func manifestSequencesToGenome(seqs []manifestSequence) []*genome.Sequence {
	out := make([]*genome.Sequence, len(seqs))
	for i, s := range seqs {
		out[i] = &genome.Sequence{Name: s.Name, Length: s.Length, NumTop: s.NumTop, NumBot: s.NumBot}
	}
	return out
}

// verifyGenomeDirs concurrently walks the store's genomes directory,
// confirming every manifest-listed genome has a matching on-disk
// subdirectory, grounded on lexicmap/cmd/util.go's
// cwalk.WalkWithSymlinks-based directory scan.
func (s *Store) verifyGenomeDirs() error {
	found := map[string]bool{}
	var mu sync.Mutex

	root := filepath.Join(s.dir, "genomes")
	err := cwalk.WalkWithSymlinks(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && filepath.Dir(path) == "." {
			mu.Lock()
			found[path] = true
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: walk %s: %v", root, err)
	}

	for name := range s.genomes {
		if !found[name] {
			return errors.Wrapf(genome.ErrStructural, "diskalign: genome %s missing its directory", name)
		}
	}
	return nil
}

func (s *Store) persist() error {
	if err := saveManifest(filepath.Join(s.dir, ManifestFile), s.manifest, s.opts.compressionLevel()); err != nil {
		return err
	}
	return nil
}

// RootName returns the name of the tree's root genome.
func (s *Store) RootName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.Root
}

// ChildNames returns the child genome names of the named genome.
func (s *Store) ChildNames(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.genomes[name]
	if !ok {
		return nil
	}
	names := make([]string, g.NumChildren())
	for i := 0; i < g.NumChildren(); i++ {
		names[i] = g.Child(i).Name
	}
	return names
}

// NumGenomes returns the total number of genomes in the store.
func (s *Store) NumGenomes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.genomes)
}

// NewickTree serializes the tree topology in canonical (natural-sorted
// child order) Newick form.
func (s *Store) NewickTree() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	root, ok := s.genomes[s.manifest.Root]
	if !ok {
		return ""
	}
	return genome.CanonicalNewick(root)
}

// AddRootGenome creates the store's root genome.
func (s *Store) AddRootGenome(name string) (*genome.Genome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manifest.Root != "" {
		return nil, errors.Wrapf(genome.ErrStructural, "diskalign: store already has root %s", s.manifest.Root)
	}

	g := genome.New(name)
	if err := s.createGenomeDir(name); err != nil {
		return nil, err
	}
	s.genomes[name] = g
	s.manifest.Root = name
	s.manifest.Genomes = append(s.manifest.Genomes, manifestGenome{Name: name})
	if err := s.persist(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddLeafGenome adds a new genome as a child of parentName.
func (s *Store) AddLeafGenome(name, parentName string, branchLength float64) (*genome.Genome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.genomes[parentName]
	if !ok {
		return nil, errors.Wrapf(genome.ErrMissingGenome, "diskalign: no such parent genome %s", parentName)
	}

	g := genome.New(name)
	g.BranchLength = branchLength
	parent.AddChild(g)
	if err := s.createGenomeDir(name); err != nil {
		return nil, err
	}
	s.genomes[name] = g

	s.manifest.Genomes = append(s.manifest.Genomes, manifestGenome{
		Name: name, Parent: parentName, BranchLength: branchLength,
	})
	if pm := s.manifest.find(parentName); pm != nil {
		pm.Children = append(pm.Children, name)
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Store) createGenomeDir(name string) error {
	if err := os.MkdirAll(genomeDir(s.dir, name), 0777); err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: create genome directory for %s: %v", name, err)
	}
	return nil
}

// SetDimensions (re)initializes g's sequences and segment counts,
// allocating NullIndex-linked segment arrays exactly as
// lodextract's in-memory test double does (lodextract_test.go's
// memAlignment.SetDimensions), then persists both the manifest entry and
// the segment file.
func (s *Store) SetDimensions(g *genome.Genome, dims []genome.SequenceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mg := s.manifest.find(g.Name)
	if mg == nil {
		return errors.Wrapf(genome.ErrMissingGenome, "diskalign: unknown genome %s", g.Name)
	}
	if mg.Dimensioned {
		return errors.Wrapf(genome.ErrStructural, "diskalign: genome %s already has dimensions", g.Name)
	}

	seqs := make([]*genome.Sequence, len(dims))
	mgSeqs := make([]manifestSequence, len(dims))
	for i, d := range dims {
		seqs[i] = &genome.Sequence{Name: d.Name, Length: d.Length, NumTop: d.NumTopSegs, NumBot: d.NumBottomSegs}
		mgSeqs[i] = manifestSequence{Name: d.Name, Length: d.Length, NumTop: d.NumTopSegs, NumBot: d.NumBottomSegs}
	}
	g.SetSequences(seqs)

	nChildren := g.NumChildren()
	var top []genome.TopSegment
	var bot []genome.BottomSegment
	for _, d := range dims {
		for j := 0; j < d.NumTopSegs; j++ {
			top = append(top, genome.TopSegment{
				ParentIndex: genome.NullIndex, NextParalogyIndex: genome.NullIndex, BottomParseIndex: genome.NullIndex,
			})
		}
		for j := 0; j < d.NumBottomSegs; j++ {
			bot = append(bot, genome.BottomSegment{
				ChildIndices: nullIndexSlice(nChildren), ChildReversed: make([]bool, nChildren),
				TopParseIndex: genome.NullIndex,
			})
		}
	}
	g.Top = top
	g.Bot = bot

	mg.Dimensioned = true
	mg.Sequences = mgSeqs

	if err := writeSegmentFile(segmentsPath(s.dir, g.Name), g); err != nil {
		return err
	}
	return s.persist()
}

// UpdateBottomDimensions updates only the bottom-segment counts of an
// existing internal genome, leaving top dimensions untouched.
func (s *Store) UpdateBottomDimensions(g *genome.Genome, updates []genome.SequenceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mg := s.manifest.find(g.Name)
	if mg == nil {
		return errors.Wrapf(genome.ErrMissingGenome, "diskalign: unknown genome %s", g.Name)
	}

	nChildren := g.NumChildren()
	var bot []genome.BottomSegment
	for _, u := range updates {
		for j := 0; j < u.NumBottomSegs; j++ {
			bot = append(bot, genome.BottomSegment{
				ChildIndices: nullIndexSlice(nChildren), ChildReversed: make([]bool, nChildren),
				TopParseIndex: genome.NullIndex,
			})
		}
		for i := range mg.Sequences {
			if mg.Sequences[i].Name == u.Name {
				mg.Sequences[i].NumBot = u.NumBottomSegs
				break
			}
		}
	}
	g.Bot = bot

	if err := writeSegmentFile(segmentsPath(s.dir, g.Name), g); err != nil {
		return err
	}
	return s.persist()
}

func nullIndexSlice(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = genome.NullIndex
	}
	return s
}

// OpenGenome returns a handle for name, loading its segment arrays (and
// twobit reader, if the genome has a payload) from disk on first open.
// Concurrent opens of the same genome share one Genome/reader and a
// reference count.
func (s *Store) OpenGenome(name string) (*genome.Genome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.genomes[name]
	if !ok {
		return nil, errors.Wrapf(genome.ErrMissingGenome, "diskalign: no such genome %s", name)
	}

	h, ok := s.open[name]
	if ok {
		h.refCount++
		return g, nil
	}

	mg := s.manifest.find(name)
	if mg != nil && mg.Dimensioned {
		top, bot, err := readSegmentFile(segmentsPath(s.dir, name))
		if err != nil {
			return nil, err
		}
		g.Top = top
		g.Bot = bot
	}

	h = &openHandle{refCount: 1}
	if mg != nil && mg.TwoBit {
		r, err := twobit.NewReader(twobitPath(s.dir, name))
		if err != nil {
			return nil, errors.Wrapf(genome.ErrStructural, "diskalign: open twobit payload for %s: %v", name, err)
		}
		h.twobitReader = r
	}
	s.open[name] = h

	halog.Debugf("diskalign: opened genome %s (refcount 1)", name)
	return g, nil
}

// CloseGenome releases resources associated with g. Once the last open
// reference is closed, g's segment arrays are dropped and its twobit
// reader (if any) is closed, matching halLodExtract.cpp's closing
// comment that closing genomes erases their caches.
func (s *Store) CloseGenome(g *genome.Genome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.open[g.Name]
	if !ok {
		return errors.Wrapf(genome.ErrMissingGenome, "diskalign: genome %s is not open", g.Name)
	}

	h.refCount--
	if h.refCount > 0 {
		return nil
	}

	if h.twobitReader != nil {
		if err := h.twobitReader.Close(); err != nil {
			return errors.Wrapf(genome.ErrStructural, "diskalign: close twobit reader for %s: %v", g.Name, err)
		}
	}
	g.Top = nil
	g.Bot = nil
	delete(s.open, g.Name)
	halog.Debugf("diskalign: closed genome %s, cache released", g.Name)
	return nil
}

// SequenceBases returns the DNA bases of seq[start:end] (0-based,
// exclusive end) from the twobit payload, if seq's genome was imported
// with one and is currently open. This is an access convenience beyond
// genome.Alignment's coordinate-only contract (spec §3 scopes Sequence
// to coordinates; a real backend still needs a way to read bases back).
// seq is looked up in the twobit payload by name (twobit.Reader carries
// each record's name directly), not by its position in the genome.
func (s *Store) SequenceBases(seq *genome.Sequence, start, end int64) ([]byte, error) {
	s.mu.Lock()
	h, ok := s.open[seq.Genome.Name]
	s.mu.Unlock()
	if !ok || h.twobitReader == nil {
		return nil, errors.Wrapf(genome.ErrNotSupported, "diskalign: no twobit payload open for genome %s", seq.Genome.Name)
	}

	idx, ok := h.twobitReader.IndexByName(seq.Name)
	if !ok {
		return nil, errors.Wrapf(genome.ErrConsistency, "diskalign: no twobit record named %s in genome %s", seq.Name, seq.Genome.Name)
	}
	b, err := h.twobitReader.SubSeq(idx, int(start), int(end-1))
	if err != nil {
		return nil, errors.Wrapf(genome.ErrStructural, "diskalign: read bases for %s: %v", seq.Name, err)
	}
	out := append([]byte(nil), (*b)...)
	twobit.RecycleSeq(b)
	return out, nil
}

func twobitPath(dir, name string) string {
	return filepath.Join(genomeDir(dir, name), "seqs.2bit")
}

func (s *Store) writeTwoBit(name string, seqNames []string, payloads [][]byte) error {
	w, err := twobit.NewWriter(twobitPath(s.dir, name))
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: create twobit payload for %s: %v", name, err)
	}
	for i, p := range payloads {
		if err := w.WriteSeq(seqNames[i], p); err != nil {
			w.Close()
			return errors.Wrapf(genome.ErrStructural, "diskalign: write twobit payload for %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: close twobit payload for %s: %v", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mg := s.manifest.find(name); mg != nil {
		mg.TwoBit = true
	}
	return s.persist()
}
