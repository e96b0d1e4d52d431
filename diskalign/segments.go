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
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/halcore/genome"
)

// segments.bin layout per genome, fixed-width records in the same style
// as twobit's index file: a top-segment count, that many top records,
// a bottom-segment count, that many bottom records. Bottom records carry
// a variable number of child slots, so each is length-prefixed.

var sbe = binary.BigEndian

func segmentsPath(dir, name string) string {
	return filepath.Join(genomeDir(dir, name), "segments.bin")
}

func writeSegmentFile(path string, g *genome.Genome) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(genome.ErrStructural, "diskalign: create segment file %s: %v", path, err)
	}
	defer fh.Close()
	w := bufio.NewWriter(fh)

	var buf [8]byte
	sbe.PutUint64(buf[:], uint64(len(g.Top)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, t := range g.Top {
		if err := writeTopSegment(w, t); err != nil {
			return err
		}
	}

	sbe.PutUint64(buf[:], uint64(len(g.Bot)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, b := range g.Bot {
		if err := writeBottomSegment(w, b); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeTopSegment(w *bufio.Writer, t genome.TopSegment) error {
	var buf [40]byte
	sbe.PutUint64(buf[0:8], uint64(t.StartPos))
	sbe.PutUint64(buf[8:16], uint64(t.Length))
	sbe.PutUint64(buf[16:24], uint64(int64(t.ParentIndex)))
	sbe.PutUint64(buf[24:32], uint64(int64(t.NextParalogyIndex)))
	sbe.PutUint64(buf[32:40], uint64(int64(t.BottomParseIndex)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if t.ParentReversed {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func writeBottomSegment(w *bufio.Writer, b genome.BottomSegment) error {
	var buf [24]byte
	sbe.PutUint64(buf[0:8], uint64(b.StartPos))
	sbe.PutUint64(buf[8:16], uint64(b.Length))
	sbe.PutUint64(buf[16:24], uint64(int64(b.TopParseIndex)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}

	var n [8]byte
	sbe.PutUint64(n[:], uint64(len(b.ChildIndices)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	for i, idx := range b.ChildIndices {
		sbe.PutUint64(n[:], uint64(int64(idx)))
		if _, err := w.Write(n[:]); err != nil {
			return err
		}
		flag := byte(0)
		if b.ChildReversed[i] {
			flag = 1
		}
		if err := w.WriteByte(flag); err != nil {
			return err
		}
	}
	return nil
}

func readSegmentFile(path string) (top []genome.TopSegment, bot []genome.BottomSegment, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(genome.ErrStructural, "diskalign: open segment file %s: %v", path, err)
	}
	defer fh.Close()
	r := bufio.NewReader(fh)

	nTop, err := readUint64(r)
	if err != nil {
		return nil, nil, err
	}
	top = make([]genome.TopSegment, nTop)
	for i := range top {
		t, err := readTopSegment(r)
		if err != nil {
			return nil, nil, err
		}
		top[i] = t
	}

	nBot, err := readUint64(r)
	if err != nil {
		return nil, nil, err
	}
	bot = make([]genome.BottomSegment, nBot)
	for i := range bot {
		b, err := readBottomSegment(r)
		if err != nil {
			return nil, nil, err
		}
		bot[i] = b
	}

	return top, bot, nil
}

func readUint64(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return sbe.Uint64(buf[:]), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, errors.Wrapf(genome.ErrStructural, "diskalign: truncated segment file: %v", err)
		}
	}
	return n, nil
}

func readTopSegment(r *bufio.Reader) (genome.TopSegment, error) {
	var buf [40]byte
	if _, err := readFull(r, buf[:]); err != nil {
		return genome.TopSegment{}, err
	}
	t := genome.TopSegment{
		StartPos:          int64(sbe.Uint64(buf[0:8])),
		Length:            int64(sbe.Uint64(buf[8:16])),
		ParentIndex:       int(int64(sbe.Uint64(buf[16:24]))),
		NextParalogyIndex: int(int64(sbe.Uint64(buf[24:32]))),
		BottomParseIndex:  int(int64(sbe.Uint64(buf[32:40]))),
	}
	flag, err := r.ReadByte()
	if err != nil {
		return genome.TopSegment{}, errors.Wrapf(genome.ErrStructural, "diskalign: truncated segment file: %v", err)
	}
	t.ParentReversed = flag == 1
	return t, nil
}

func readBottomSegment(r *bufio.Reader) (genome.BottomSegment, error) {
	var buf [24]byte
	if _, err := readFull(r, buf[:]); err != nil {
		return genome.BottomSegment{}, err
	}
	b := genome.BottomSegment{
		StartPos:      int64(sbe.Uint64(buf[0:8])),
		Length:        int64(sbe.Uint64(buf[8:16])),
		TopParseIndex: int(int64(sbe.Uint64(buf[16:24]))),
	}

	n, err := readUint64(r)
	if err != nil {
		return genome.BottomSegment{}, err
	}
	b.ChildIndices = make([]int, n)
	b.ChildReversed = make([]bool, n)
	var idxBuf [8]byte
	for i := range b.ChildIndices {
		if _, err := readFull(r, idxBuf[:]); err != nil {
			return genome.BottomSegment{}, err
		}
		b.ChildIndices[i] = int(int64(sbe.Uint64(idxBuf[:])))
		flag, err := r.ReadByte()
		if err != nil {
			return genome.BottomSegment{}, errors.Wrapf(genome.ErrStructural, "diskalign: truncated segment file: %v", err)
		}
		b.ChildReversed[i] = flag == 1
	}
	return b, nil
}
