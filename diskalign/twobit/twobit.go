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

// Package twobit packs DNA sequences into 2-bit-per-base binary files for
// compact, seekable storage. One record is written per genome.Sequence,
// named after it, rather than per k-mer-index entry: the companion .idx
// file carries each record's name alongside its offset/length, so a
// Reader can be asked for a genome.Sequence's bases by name directly,
// without diskalign.Store maintaining a separate positional mapping.
package twobit

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var be = binary.BigEndian

// Magic is the file's 8-byte magic number.
var Magic = [8]byte{'2', 'b', 'i', 't', 's', 'e', 'q', 's'}

// IndexFileExt is the file extension of the companion index file.
const IndexFileExt = ".idx"

// MainVersion is used for checking compatibility.
var MainVersion uint8 = 0

// MinorVersion is less important.
var MinorVersion uint8 = 1

// BufferSize is the size of the reading and writing buffer.
var BufferSize = 65536

// ErrInvalidFileFormat means the file has an invalid format.
var ErrInvalidFileFormat = errors.New("twobit: invalid binary format")

// ErrEmptySeq means the sequence is empty.
var ErrEmptySeq = errors.New("twobit: empty seq")

// ErrInvalidTwoBitData means the length of the two-bit slice does not match the base count.
var ErrInvalidTwoBitData = errors.New("twobit: invalid two-bit data")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("twobit: broken file")

// ErrVersionMismatch means the file and the reader disagree on version.
var ErrVersionMismatch = errors.New("twobit: version mismatch")

// Writer appends a sequence of named DNA records into 2-bit-packed form,
// in the order they are written. Each record's name (its genome.Sequence
// name) is carried into the companion index file alongside its
// offset/length, so a Reader can look a record up by name later.
type Writer struct {
	file string
	fh   *os.File
	w    *bufio.Writer

	buf    []byte
	offset int

	names []string
	// offset, #bytes, #bases
	index [][3]int
}

// NewWriter creates a new Writer at file.
func NewWriter(file string) (*Writer, error) {
	w := &Writer{file: file}
	var err error
	w.fh, err = os.Create(file)
	if err != nil {
		return nil, err
	}
	w.w = bufio.NewWriterSize(w.fh, BufferSize)

	w.buf = make([]byte, 24)

	if err = binary.Write(w.w, be, Magic); err != nil {
		return nil, err
	}
	w.offset += 8

	if err = binary.Write(w.w, be, [8]uint8{MainVersion, MinorVersion}); err != nil {
		return nil, err
	}
	w.offset += 8
	return w, nil
}

// WriteSeq writes one plain-text sequence record under name.
func (w *Writer) WriteSeq(name string, s []byte) error {
	b2 := Seq2TwoBit(s)
	err := w.Write2Bit(name, *b2, len(s))
	RecycleTwoBit(b2)
	return err
}

// Write2Bit writes one already-packed sequence record under name.
func (w *Writer) Write2Bit(name string, b2 []byte, bases int) error {
	if len(b2) == 0 {
		return ErrEmptySeq
	}
	if bases < (len(b2)<<2)-3 || bases > len(b2)<<2 {
		return ErrInvalidTwoBitData
	}

	be.PutUint64(w.buf[:8], uint64(len(b2)))
	be.PutUint64(w.buf[8:16], uint64(bases))
	if _, err := w.w.Write(w.buf[:16]); err != nil {
		return err
	}

	if _, err := w.w.Write(b2); err != nil {
		return err
	}

	w.names = append(w.names, name)
	w.index = append(w.index, [3]int{w.offset, len(b2), bases})
	w.offset += 16 + len(b2)
	return nil
}

// Close flushes the data file and writes the companion index file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.fh.Close(); err != nil {
		return err
	}

	fh, err := os.Create(filepath.Clean(w.file) + IndexFileExt)
	if err != nil {
		return err
	}
	wtr := bufio.NewWriterSize(fh, BufferSize)
	buf := w.buf[:24]

	be.PutUint64(buf[:8], uint64(len(w.index)))
	if _, err = wtr.Write(buf[:8]); err != nil {
		return err
	}

	var nameLen [2]byte
	for i, info := range w.index {
		name := w.names[i]
		be.PutUint16(nameLen[:], uint16(len(name)))
		if _, err = wtr.Write(nameLen[:]); err != nil {
			return err
		}
		if _, err = wtr.WriteString(name); err != nil {
			return err
		}

		be.PutUint64(buf[:8], uint64(info[0]))
		be.PutUint64(buf[8:16], uint64(info[1]))
		be.PutUint64(buf[16:24], uint64(info[2]))
		if _, err = wtr.Write(buf); err != nil {
			return err
		}
	}
	if err = wtr.Flush(); err != nil {
		return err
	}
	return fh.Close()
}

// Reader supports random access to any record's subsequence, by position
// or by the genome.Sequence name it was written under.
type Reader struct {
	fh     *os.File
	offset int

	buf []byte

	names  []string
	byName map[string]int
	index  [][3]int
}

// NewReader opens a Reader over file (and its companion .idx file).
func NewReader(file string) (*Reader, error) {
	var err error
	r := &Reader{buf: make([]byte, 24)}

	r.fh, err = os.Open(file)
	if err != nil {
		return nil, err
	}

	buf := r.buf
	n, err := io.ReadFull(r.fh, buf[:8])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, ErrBrokenFile
	}
	for i := 0; i < 8; i++ {
		if Magic[i] != buf[i] {
			return nil, ErrInvalidFileFormat
		}
	}
	r.offset += 8

	n, err = io.ReadFull(r.fh, buf[:8])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, ErrBrokenFile
	}
	r.offset += 8

	if MainVersion != buf[0] {
		return nil, ErrVersionMismatch
	}

	fileIndex := filepath.Clean(file) + IndexFileExt
	rdr, err := os.Open(fileIndex)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	n, err = io.ReadFull(rdr, buf[:8])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, ErrBrokenFile
	}

	nRecords := int(be.Uint64(buf[:8]))
	r.index = make([][3]int, nRecords)
	r.names = make([]string, nRecords)
	r.byName = make(map[string]int, nRecords)

	var nameLen [2]byte
	for i := range r.index {
		if _, err = io.ReadFull(rdr, nameLen[:]); err != nil {
			return nil, err
		}
		nameBuf := make([]byte, be.Uint16(nameLen[:]))
		if len(nameBuf) > 0 {
			if _, err = io.ReadFull(rdr, nameBuf); err != nil {
				return nil, err
			}
		}
		name := string(nameBuf)
		r.names[i] = name
		r.byName[name] = i

		n, err = io.ReadFull(rdr, buf[:24])
		if err != nil {
			return nil, err
		}
		if n < 24 {
			return nil, ErrBrokenFile
		}
		r.index[i] = [3]int{
			int(be.Uint64(buf[:8])),
			int(be.Uint64(buf[8:16])),
			int(be.Uint64(buf[16:24])),
		}
	}

	return r, nil
}

// NumRecords returns the number of sequence records in the file.
func (r *Reader) NumRecords() int { return len(r.index) }

// Name returns the name a record was written under.
func (r *Reader) Name(idx int) string { return r.names[idx] }

// IndexByName returns the record index a genome.Sequence name was
// written under, or false if no such record exists.
func (r *Reader) IndexByName(name string) (int, bool) {
	idx, ok := r.byName[name]
	return idx, ok
}

// Close closes the underlying file handle.
func (r *Reader) Close() error {
	return r.fh.Close()
}

// Seq returns the full sequence at record index idx (0-based).
func (r *Reader) Seq(idx int) (*[]byte, error) {
	if idx < 0 || idx >= len(r.index) {
		return nil, fmt.Errorf("twobit: record index (%d) out of range: [0, %d]", idx, len(r.index)-1)
	}
	return r.SubSeq(idx, 0, r.index[idx][2]-1)
}

// SubSeq returns the subsequence of record idx from start to end, both
// 0-based and inclusive. Callers must call RecycleSeq on the result.
func (r *Reader) SubSeq(idx int, start int, end int) (*[]byte, error) {
	if idx < 0 || idx >= len(r.index) {
		return nil, fmt.Errorf("twobit: record index (%d) out of range: [0, %d]", idx, len(r.index)-1)
	}
	info := r.index[idx]
	offset := info[0] + 16
	nBases := info[2]
	if start < 0 {
		start = 0
	}
	if end >= nBases-1 {
		end = nBases - 1
	}
	if end < start {
		end = start
	}

	offset += start >> 2
	if _, err := r.fh.Seek(int64(offset), 0); err != nil {
		return nil, err
	}

	nBytes := end>>2 - start>>2 + 1

	var buf []byte
	if nBytes <= len(r.buf) {
		buf = r.buf[:nBytes]
	} else {
		n := nBytes - len(r.buf)
		for i := 0; i < n; i++ {
			r.buf = append(r.buf, 0)
		}
		buf = r.buf
	}
	n, err := io.ReadFull(r.fh, buf)
	if err != nil {
		return nil, err
	}
	if n < nBytes {
		return nil, ErrBrokenFile
	}

	l := end - start + 1

	s := poolSubSeq.Get().(*[]byte)
	*s = (*s)[:4]

	b := buf[0]
	j := start & 3

	switch j {
	case 0:
		(*s)[3] = bit2base[b&3]
		b >>= 2
		(*s)[2] = bit2base[b&3]
		b >>= 2
		(*s)[1] = bit2base[b&3]
		b >>= 2
		(*s)[0] = bit2base[b&3]
	case 1:
		(*s)[2] = bit2base[b&3]
		b >>= 2
		(*s)[1] = bit2base[b&3]
		b >>= 2
		(*s)[0] = bit2base[b&3]
	case 2:
		(*s)[1] = bit2base[b&3]
		b >>= 2
		(*s)[0] = bit2base[b&3]
	case 3:
		(*s)[0] = bit2base[b&3]
	}
	j = 4 - j
	*s = (*s)[:j]
	if j >= l {
		tmp := (*s)[:l]
		return &tmp, nil
	}

	if nBytes > 2 {
		for _, b = range buf[1 : nBytes-1] {
			*s = append(*s, bit2base[b>>6&3])
			*s = append(*s, bit2base[b>>4&3])
			*s = append(*s, bit2base[b>>2&3])
			*s = append(*s, bit2base[b&3])
		}
	}

	if nBytes > 1 {
		b = buf[nBytes-1]
		j = end & 3
		switch j {
		case 0:
			*s = append(*s, bit2base[b>>6&3])
		case 1:
			*s = append(*s, bit2base[b>>6&3])
			*s = append(*s, bit2base[b>>4&3])
		case 2:
			*s = append(*s, bit2base[b>>6&3])
			*s = append(*s, bit2base[b>>4&3])
			*s = append(*s, bit2base[b>>2&3])
		case 3:
			*s = append(*s, bit2base[b>>6&3])
			*s = append(*s, bit2base[b>>4&3])
			*s = append(*s, bit2base[b>>2&3])
			*s = append(*s, bit2base[b&3])
		}
	}

	tmp := (*s)[:l]
	return &tmp, nil
}

// RecycleSeq returns a SubSeq/Seq result to the shared pool.
func RecycleSeq(s *[]byte) {
	poolSubSeq.Put(s)
}

var poolSubSeq = &sync.Pool{New: func() interface{} {
	tmp := make([]byte, 4, 10<<10)
	return &tmp
}}

var base2bit = [256]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 1, 1, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 0,
	0, 0, 0, 1, 3, 3, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0,
	0, 0, 1, 1, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 0,
	0, 0, 0, 1, 3, 3, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// RecycleTwoBit returns a Seq2TwoBit result to the shared pool.
func RecycleTwoBit(b2 *[]byte) {
	poolTwoBit.Put(b2)
}

var poolTwoBit = &sync.Pool{New: func() interface{} {
	tmp := make([]byte, 0, 1<<20)
	return &tmp
}}

// Seq2TwoBit packs a plain DNA sequence into 2-bit form.
func Seq2TwoBit(s []byte) *[]byte {
	if s == nil {
		return nil
	}
	if len(s) == 0 {
		return &[]byte{}
	}

	n := len(s) >> 2
	m := len(s) & 3

	codes := poolTwoBit.Get().(*[]byte)
	*codes = (*codes)[:0]

	var j int
	for i := 0; i < n; i++ {
		j = i << 2
		*codes = append(*codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4+base2bit[s[j+2]]<<2+base2bit[s[j+3]])
	}

	if m == 0 {
		tmp := (*codes)[:n]
		return &tmp
	}

	j = n << 2
	switch m {
	case 3:
		*codes = append(*codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4+base2bit[s[j+2]]<<2)
	case 2:
		*codes = append(*codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4)
	case 1:
		*codes = append(*codes, base2bit[s[j]]<<6)
	}

	return codes
}

// TwoBit2Seq unpacks a 2-bit sequence of the given base count.
func TwoBit2Seq(b2 []byte, bases int) ([]byte, error) {
	if bases < (len(b2)<<2)-3 || bases > len(b2)<<2 {
		return nil, ErrInvalidTwoBitData
	}

	s := make([]byte, bases)
	n := len(s) >> 2
	m := bases & 3
	var b byte
	var j int
	for i := 0; i < n; i++ {
		b = b2[i]
		j = i << 2
		s[j+3] = bit2base[b&3]
		b >>= 2
		s[j+2] = bit2base[b&3]
		b >>= 2
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	}
	if m == 0 {
		return s, nil
	}

	b = b2[n]
	j = n << 2
	switch m {
	case 1:
		s[j] = bit2base[b>>6&3]
	case 2:
		b >>= 4
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	case 3:
		b >>= 2
		s[j+2] = bit2base[b&3]
		b >>= 2
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	}

	return s, nil
}
