package voxel

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

var ErrCorrupt = errors.New("corrupt region data")

// Encode writes one byte per cell in index order.
func Encode(r *Region) []byte {
	out := make([]byte, CellCount)
	for i, c := range r.cells {
		out[i] = byte(c)
	}
	return out
}

// Decode is the inverse of Encode. Any wrong length or unknown byte is
// reported as ErrCorrupt.
func Decode(b []byte) (*Region, error) {
	if len(b) != CellCount {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrCorrupt, len(b), CellCount)
	}
	r := New()
	for i, v := range b {
		c, err := DecodeCell(v)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrCorrupt, i, err)
		}
		r.cells[i] = c
	}
	return r, nil
}

// Compress returns the zlib stream stored in the block_data column.
func Compress(r *Region) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(Encode(r)); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Decompress(b []byte) (*Region, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, CellCount+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Decode(raw)
}
