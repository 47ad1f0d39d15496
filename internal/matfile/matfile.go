// Package matfile reads and writes dense matrices in the CMAT container.
//
// Layout (little-endian):
//
//	magic    [4]byte "CMAT"
//	version  uint16
//	dtype    uint8   1=float32 2=float64
//	layout   uint8   0=row-major 1=column-major
//	comp     uint8   0=raw 1=zstd 2=lz4
//	_        [3]byte
//	rows     uint64
//	cols     uint64
//	stored   uint64  payload length as stored
//	checksum uint64  xxh3 of the uncompressed payload
//	payload  [stored]byte
package matfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

const (
	magic   = "CMAT"
	version = 1

	headerSize = 4 + 2 + 1 + 1 + 1 + 3 + 8*4
)

// DType is the element type of a stored matrix.
type DType uint8

const (
	Float32 DType = 1
	Float64 DType = 2
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Compression selects how the payload is stored.
type Compression uint8

const (
	Raw Compression = iota
	ZSTD
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Raw:
		return "raw"
	case ZSTD:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression maps "raw", "zstd" and "lz4" to a Compression.
func ParseCompression(s string) (Compression, error) {
	for _, c := range []Compression{Raw, ZSTD, LZ4} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

var (
	ErrBadMagic         = errors.New("matfile: bad magic")
	ErrChecksumMismatch = errors.New("matfile: payload checksum mismatch")
)

// Matrix is a dense matrix. Exactly one of F32 and F64 holds the
// Rows*Cols elements, in the order given by RowMajor.
type Matrix struct {
	Rows, Cols int
	RowMajor   bool
	F32        []float32
	F64        []float64
}

// DType reports which slice holds the data.
func (m *Matrix) DType() DType {
	if m.F64 != nil {
		return Float64
	}
	return Float32
}

func (m *Matrix) len() int {
	if m.F64 != nil {
		return len(m.F64)
	}
	return len(m.F32)
}

// Write encodes m to w.
func Write(w io.Writer, m *Matrix, comp Compression) error {
	if m.Rows <= 0 || m.Cols <= 0 {
		return fmt.Errorf("matfile: invalid shape %dx%d", m.Rows, m.Cols)
	}
	if m.len() != m.Rows*m.Cols {
		return fmt.Errorf("matfile: %d elements for shape %dx%d", m.len(), m.Rows, m.Cols)
	}

	payload := encodePayload(m)
	stored, err := compress(comp, payload)
	if err != nil {
		return fmt.Errorf("matfile: compress %s: %w", comp, err)
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:6], version)
	hdr[6] = byte(m.DType())
	if !m.RowMajor {
		hdr[7] = 1
	}
	hdr[8] = byte(comp)
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(m.Rows))
	binary.LittleEndian.PutUint64(hdr[20:28], uint64(m.Cols))
	binary.LittleEndian.PutUint64(hdr[28:36], uint64(len(stored)))
	binary.LittleEndian.PutUint64(hdr[36:44], xxh3.Hash(payload))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Read decodes a matrix from r and verifies its checksum.
func Read(r io.Reader) (*Matrix, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("matfile: read header: %w", err)
	}
	if string(hdr[0:4]) != magic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != version {
		return nil, fmt.Errorf("matfile: unsupported version %d", v)
	}
	dtype := DType(hdr[6])
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("matfile: unsupported %s", dtype)
	}
	if hdr[7] > 1 {
		return nil, fmt.Errorf("matfile: unknown layout %d", hdr[7])
	}
	comp := Compression(hdr[8])
	rows := binary.LittleEndian.Uint64(hdr[12:20])
	cols := binary.LittleEndian.Uint64(hdr[20:28])
	stored := binary.LittleEndian.Uint64(hdr[28:36])
	sum := binary.LittleEndian.Uint64(hdr[36:44])

	if rows == 0 || cols == 0 || rows > math.MaxInt/8/cols {
		return nil, fmt.Errorf("matfile: invalid shape %dx%d", rows, cols)
	}
	if stored > math.MaxInt32*8 {
		return nil, fmt.Errorf("matfile: payload of %d bytes is too large", stored)
	}

	raw := make([]byte, stored)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("matfile: read payload: %w", err)
	}
	payload, err := decompress(comp, raw)
	if err != nil {
		return nil, fmt.Errorf("matfile: decompress %s: %w", comp, err)
	}

	n := int(rows * cols)
	if len(payload) != n*dtype.Size() {
		return nil, fmt.Errorf("matfile: payload has %d bytes, want %d", len(payload), n*dtype.Size())
	}
	if xxh3.Hash(payload) != sum {
		return nil, ErrChecksumMismatch
	}

	m := &Matrix{Rows: int(rows), Cols: int(cols), RowMajor: hdr[7] == 0}
	decodePayload(m, dtype, payload)
	return m, nil
}

// WriteFile writes m to path.
func WriteFile(path string, m *Matrix, comp Compression) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, m, comp); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a matrix from path.
func ReadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

func encodePayload(m *Matrix) []byte {
	if m.F64 != nil {
		out := make([]byte, 8*len(m.F64))
		for i, v := range m.F64 {
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
		return out
	}
	out := make([]byte, 4*len(m.F32))
	for i, v := range m.F32 {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func decodePayload(m *Matrix, dtype DType, b []byte) {
	switch dtype {
	case Float64:
		m.F64 = make([]float64, len(b)/8)
		for i := range m.F64 {
			m.F64[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
	default:
		m.F32 = make([]float32, len(b)/4)
		for i := range m.F32 {
			m.F32[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
	}
}

func compress(c Compression, b []byte) ([]byte, error) {
	switch c {
	case Raw:
		return b, nil
	case ZSTD:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(b, make([]byte, 0, len(b)/2)), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown compression %d", uint8(c))
}

func decompress(c Compression, b []byte) ([]byte, error) {
	switch c {
	case Raw:
		return b, nil
	case ZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(b, nil)
	case LZ4:
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(b))); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown compression %d", uint8(c))
}
