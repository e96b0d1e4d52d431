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

	"github.com/klauspost/pgzip"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
	"github.com/shenwei356/xopen"
)

// ManifestFile is the name of the store's gzip-compressed TOML manifest:
// tree topology, per-genome sequence dimensions, and which genomes carry
// twobit payloads. Segment arrays and sequence bytes live in their own
// per-genome files alongside it.
const ManifestFile = "manifest.toml.gz"

type manifestSequence struct {
	Name   string `toml:"name"`
	Length int64  `toml:"length"`
	NumTop int    `toml:"num_top"`
	NumBot int    `toml:"num_bot"`
}

type manifestGenome struct {
	Name         string             `toml:"name"`
	Parent       string             `toml:"parent,omitempty"`
	BranchLength float64            `toml:"branch_length"`
	Children     []string           `toml:"children,omitempty"`
	Dimensioned  bool               `toml:"dimensioned"`
	TwoBit       bool               `toml:"twobit"`
	Sequences    []manifestSequence `toml:"sequences,omitempty"`
}

type manifestFile struct {
	Root    string           `toml:"root"`
	Genomes []manifestGenome `toml:"genomes"`
}

func newManifest() *manifestFile {
	return &manifestFile{}
}

func (m *manifestFile) find(name string) *manifestGenome {
	for i := range m.Genomes {
		if m.Genomes[i].Name == name {
			return &m.Genomes[i]
		}
	}
	return nil
}

func loadManifest(path string) (*manifestFile, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrapf(genome.ErrStructural, "diskalign: open manifest %s: %v", path, err)
	}
	defer f.Close()

	var m manifestFile
	dec := toml.NewDecoder(f)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrapf(genome.ErrStructural, "diskalign: decode manifest %s: %v", path, err)
	}
	return &m, nil
}

func saveManifest(path string, m *manifestFile, level int) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: encode manifest: %v", err)
	}

	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: create manifest %s: %v", path, err)
	}
	defer fh.Close()

	gw, err := pgzip.NewWriterLevel(fh, level)
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: gzip manifest: %v", err)
	}
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return errors.Wrapf(genome.ErrStructural, "diskalign: write manifest %s: %v", path, err)
	}
	return gw.Close()
}
