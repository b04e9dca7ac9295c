// Package export writes the board to files: a compact binary scene file that
// can be imported again, and a PDF for printing.
package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/wire"
)

var (
	ErrBadMagic = errors.New("export: not a scene file")
	ErrCorrupt  = errors.New("export: corrupt scene file")
)

var magic = [4]byte{'W', 'B', 'S', '1'}

const maxOwnerLen = math.MaxUint16

// WriteScene stores strokes as
//
//	"WBS1", uint32 n, n bytes of wire.EncodeStrokes,
//	uint32 owners, owners × {uint16 len, bytes},
//	uint32 m, m × uint32 run-length encoded owner index per stroke
//
// little-endian. Stroke ids, opacity and effects are not kept.
func WriteScene(w io.Writer, strokes []protocol.StrokeData) error {
	ws := make([]wire.Stroke, len(strokes))
	owners := []string{}
	index := map[string]uint32{}
	ownerOf := make([]uint32, len(strokes))
	for i, d := range strokes {
		ws[i] = toWire(d)
		idx, ok := index[d.OwnerID]
		if !ok {
			if len(d.OwnerID) > maxOwnerLen {
				return fmt.Errorf("export: owner id of stroke %s too long", d.ID)
			}
			idx = uint32(len(owners))
			index[d.OwnerID] = idx
			owners = append(owners, d.OwnerID)
		}
		ownerOf[i] = idx
	}

	blob := wire.EncodeStrokes(ws)
	runs := wire.EncodeRuns(ownerOf)

	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(blob))))
	buf.Write(blob)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(owners))))
	for _, o := range owners {
		buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(len(o))))
		buf.WriteString(o)
	}
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(runs))))
	for _, v := range runs {
		buf.Write(binary.LittleEndian.AppendUint32(nil, v))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadScene parses a file produced by WriteScene. Every stroke gets a fresh
// id and full opacity.
func ReadScene(r io.Reader) ([]protocol.StrokeData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, ErrBadMagic
	}
	rd := reader{buf: data[len(magic):]}

	n, err := rd.u32()
	if err != nil {
		return nil, err
	}
	blob, err := rd.bytes(int(n))
	if err != nil {
		return nil, err
	}
	ws, err := wire.DecodeStrokes(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	count, err := rd.u32()
	if err != nil {
		return nil, err
	}
	if uint64(count)*2 > uint64(len(rd.buf)) {
		return nil, fmt.Errorf("%w: %d owners declared", ErrCorrupt, count)
	}
	owners := make([]string, count)
	for i := range owners {
		l, err := rd.u16()
		if err != nil {
			return nil, err
		}
		b, err := rd.bytes(int(l))
		if err != nil {
			return nil, err
		}
		owners[i] = string(b)
	}

	m, err := rd.u32()
	if err != nil {
		return nil, err
	}
	if uint64(m)*4 != uint64(len(rd.buf)) {
		return nil, fmt.Errorf("%w: owner runs length", ErrCorrupt)
	}
	runs := make([]uint32, m)
	for i := range runs {
		runs[i], _ = rd.u32()
	}
	ownerOf, err := wire.DecodeRunsLimit(runs, len(ws))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(ownerOf) != len(ws) {
		return nil, fmt.Errorf("%w: %d owners for %d strokes", ErrCorrupt, len(ownerOf), len(ws))
	}

	out := make([]protocol.StrokeData, len(ws))
	for i, s := range ws {
		if int(ownerOf[i]) >= len(owners) {
			return nil, fmt.Errorf("%w: owner index %d", ErrCorrupt, ownerOf[i])
		}
		out[i] = fromWire(s, owners[ownerOf[i]])
	}
	return out, nil
}

func SaveScene(path string, strokes []protocol.StrokeData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteScene(f, strokes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func LoadScene(path string) ([]protocol.StrokeData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScene(f)
}

func toWire(d protocol.StrokeData) wire.Stroke {
	pts := make([]wire.Point32, 0, len(d.Points)/2)
	for i := 0; i+1 < len(d.Points); i += 2 {
		pts = append(pts, wire.Point32{X: float32(d.Points[i]), Y: float32(d.Points[i+1])})
	}
	return wire.Stroke{Color: uint32(d.Color), Width: float32(d.Width), Points: pts}
}

func fromWire(s wire.Stroke, owner string) protocol.StrokeData {
	flat := make([]float64, 0, 2*len(s.Points))
	for _, p := range s.Points {
		flat = append(flat, float64(p.X), float64(p.Y))
	}
	return protocol.StrokeData{
		ID:      uuid.NewString(),
		OwnerID: owner,
		Color:   protocol.Color(s.Color),
		Width:   float64(s.Width),
		Opacity: 1,
		Points:  flat,
	}
}

type reader struct{ buf []byte }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}
