package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrTruncated     = errors.New("wire: buffer shorter than declared counts")
	ErrTrailingBytes = errors.New("wire: unexpected bytes after last stroke")
)

const (
	headerSize      = 4
	strokeFixedSize = 4 + 4 + 4 // color, width, point count
	pointSize       = 4 + 4
)

// Point32 is a point at the precision carried by the binary format.
type Point32 struct {
	X, Y float32
}

// Stroke is the subset of a stroke that the binary scene format carries.
type Stroke struct {
	Color  uint32 // 0xRRGGBB
	Width  float32
	Points []Point32
}

// EncodedSize returns the exact length of EncodeStrokes(strokes).
func EncodedSize(strokes []Stroke) int {
	n := headerSize
	for _, s := range strokes {
		n += strokeFixedSize + len(s.Points)*pointSize
	}
	return n
}

// EncodeStrokes lays strokes out as
//
//	uint32 count, count × {uint32 color, float32 width, uint32 n, n × (float32 x, float32 y)}
//
// with every field little-endian.
func EncodeStrokes(strokes []Stroke) []byte {
	buf := make([]byte, 0, EncodedSize(strokes))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(strokes)))
	for _, s := range strokes {
		buf = binary.LittleEndian.AppendUint32(buf, s.Color)
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s.Width))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Points)))
		for _, p := range s.Points {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.X))
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.Y))
		}
	}
	return buf
}

// DecodeStrokes reverses EncodeStrokes. A buffer whose length disagrees with
// its declared counts is rejected as a whole.
func DecodeStrokes(buf []byte) ([]Stroke, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: missing header", ErrTruncated)
	}
	count := binary.LittleEndian.Uint32(buf)
	off := headerSize

	// every stroke needs at least its fixed header, so this bounds count
	// before allocating
	if uint64(count)*strokeFixedSize > uint64(len(buf)-off) {
		return nil, fmt.Errorf("%w: %d strokes declared", ErrTruncated, count)
	}

	strokes := make([]Stroke, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(buf)-off < strokeFixedSize {
			return nil, fmt.Errorf("%w: stroke %d header", ErrTruncated, i)
		}
		s := Stroke{
			Color: binary.LittleEndian.Uint32(buf[off:]),
			Width: math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4:])),
		}
		n := binary.LittleEndian.Uint32(buf[off+8:])
		off += strokeFixedSize

		if uint64(n)*pointSize > uint64(len(buf)-off) {
			return nil, fmt.Errorf("%w: stroke %d declares %d points", ErrTruncated, i, n)
		}
		s.Points = make([]Point32, n)
		for j := range s.Points {
			s.Points[j] = Point32{
				X: math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])),
				Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4:])),
			}
			off += pointSize
		}
		strokes = append(strokes, s)
	}

	if off != len(buf) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(buf)-off)
	}
	return strokes, nil
}
