package stream

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"

	"morphfield/sculptor/internal/geometry"
)

// codecVersion identifies the binary frame layout so viewers can reject
// incompatible streams instead of misreading them.
const codecVersion = 1

// flagSnappy marks a frame whose point payload is snappy block compressed.
const flagSnappy = 0x01

// maxShapeNameLen bounds the shape label carried in the header.
const maxShapeNameLen = 255

// headerBaseLen is the fixed portion of the header before the shape label.
const headerBaseLen = 1 + 1 + 8 + 4 + 1

// Frame is a decoded position broadcast: one animation tick's worth of
// particle positions plus the shape they morph toward.
type Frame struct {
	Tick   uint64
	Shape  geometry.ShapeKind
	Points []geometry.Point3
}

// Encode serialises a tick frame into a compact binary payload. The point
// coordinates are written as little-endian float32 xyz triples; when compress
// is set the triple block is snappy compressed.
func Encode(tick uint64, shape geometry.ShapeKind, points []geometry.Point3, compress bool) ([]byte, error) {
	return EncodeInto(nil, tick, shape, points, compress)
}

// EncodeInto behaves like Encode but reuses dst's backing storage when it is
// large enough, so the broadcast loop can avoid per-tick allocation.
func EncodeInto(dst []byte, tick uint64, shape geometry.ShapeKind, points []geometry.Point3, compress bool) ([]byte, error) {
	label := string(shape)
	if len(label) > maxShapeNameLen {
		return nil, fmt.Errorf("shape label %q exceeds %d bytes", label, maxShapeNameLen)
	}

	//1.- Pack the coordinate block as little-endian float32 triples.
	payload := make([]byte, len(points)*12)
	for i, p := range points {
		off := i * 12
		binary.LittleEndian.PutUint32(payload[off:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(payload[off+4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(payload[off+8:], math.Float32bits(float32(p.Z)))
	}

	flags := byte(0)
	if compress {
		//2.- Snappy keeps the block format simple while shrinking idle fields well.
		payload = snappy.Encode(nil, payload)
		flags |= flagSnappy
	}

	headerLen := headerBaseLen + len(label)
	total := headerLen + len(payload)
	if cap(dst) < total {
		dst = make([]byte, total)
	}
	dst = dst[:total]

	//3.- Lay out the header: version, flags, tick, point count, shape label.
	dst[0] = codecVersion
	dst[1] = flags
	binary.LittleEndian.PutUint64(dst[2:], tick)
	binary.LittleEndian.PutUint32(dst[10:], uint32(len(points)))
	dst[14] = byte(len(label))
	copy(dst[headerBaseLen:], label)
	copy(dst[headerLen:], payload)
	return dst, nil
}

// Decode parses a binary frame produced by Encode.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerBaseLen {
		return Frame{}, fmt.Errorf("frame too short: %d bytes", len(data))
	}
	if data[0] != codecVersion {
		return Frame{}, fmt.Errorf("unsupported frame version %d", data[0])
	}
	flags := data[1]
	tick := binary.LittleEndian.Uint64(data[2:])
	count := binary.LittleEndian.Uint32(data[10:])
	labelLen := int(data[14])
	headerLen := headerBaseLen + labelLen
	if len(data) < headerLen {
		return Frame{}, fmt.Errorf("frame truncated inside shape label")
	}
	shape := geometry.ShapeKind(data[headerBaseLen:headerLen])

	payload := data[headerLen:]
	if flags&flagSnappy != 0 {
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return Frame{}, fmt.Errorf("decompress frame payload: %w", err)
		}
		payload = decoded
	}
	if len(payload) != int(count)*12 {
		return Frame{}, fmt.Errorf("payload length %d does not match %d points", len(payload), count)
	}

	//1.- Recover the coordinate triples into Point3 values.
	points := make([]geometry.Point3, count)
	for i := range points {
		off := i * 12
		points[i] = geometry.Point3{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+8:]))),
		}
	}
	return Frame{Tick: tick, Shape: shape, Points: points}, nil
}
