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
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/halcore/genome"
)

// ImportFASTA populates a freshly-added leaf or root genome's dimensions
// and (if s.opts.SaveTwoBit) sequence payload straight from a FASTA file:
// one genome.Sequence per FASTA record, with zero top/bottom segments
// (a genome imported this way carries sequence content but no alignment
// segments, and its dimensions cannot be set again afterwards).
func (s *Store) ImportFASTA(g *genome.Genome, path string) error {
	seq.ValidateSeq = false

	reader, err := fastx.NewReader(nil, path, "")
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: open FASTA %s: %v", path, err)
	}
	defer reader.Close()

	var dims []genome.SequenceInfo
	var payloads [][]byte
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrapf(genome.ErrStructural, "diskalign: read FASTA %s: %v", path, err)
		}
		bases := make([]byte, len(record.Seq.Seq))
		copy(bases, record.Seq.Seq)
		dims = append(dims, genome.SequenceInfo{
			Name:   string(record.ID),
			Length: int64(len(bases)),
		})
		payloads = append(payloads, bases)
	}

	if err := s.SetDimensions(g, dims); err != nil {
		return err
	}
	if !s.opts.SaveTwoBit {
		return nil
	}

	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	return s.writeTwoBit(g.Name, names, payloads)
}
