package packet

import (
	"bytes"
	"errors"
	"fmt"
)

// Default frame markers: ASCII STX/ETX control bytes.
var (
	DefaultHead = []byte{0x02}
	DefaultTail = []byte{0x03}
)

// Codec errors.
var (
	// ErrInvalidMarker is returned by NewCodec for unusable marker bytes.
	ErrInvalidMarker = errors.New("packet: invalid frame marker")

	// ErrInvalidFrame is returned when a frame fails marker validation.
	ErrInvalidFrame = errors.New("packet: invalid frame")
)

// Codec frames payloads between a head marker and a tail marker.
//
// A well-formed frame starts with the head marker, ends with the tail
// marker, and contains no tail-then-head sequence in between (which
// would indicate two concatenated frames that were never split).
type Codec struct {
	head []byte
	tail []byte
}

// NewCodec returns a codec for the given markers. Both markers must be
// non-empty and distinct; identical markers would make frame boundaries
// ambiguous.
func NewCodec(head, tail []byte) (Codec, error) {
	if len(head) == 0 || len(tail) == 0 {
		return Codec{}, fmt.Errorf("%w: head and tail must be non-empty", ErrInvalidMarker)
	}
	if bytes.Equal(head, tail) {
		return Codec{}, fmt.Errorf("%w: head and tail must differ", ErrInvalidMarker)
	}
	return Codec{
		head: append([]byte(nil), head...),
		tail: append([]byte(nil), tail...),
	}, nil
}

// Default returns a codec using the STX/ETX markers.
func Default() Codec {
	c, _ := NewCodec(DefaultHead, DefaultTail)
	return c
}

// ToPacket wraps payload bytes into a single frame.
func (c Codec) ToPacket(data []byte) []byte {
	frame := make([]byte, 0, len(c.head)+len(data)+len(c.tail))
	frame = append(frame, c.head...)
	frame = append(frame, data...)
	frame = append(frame, c.tail...)
	return frame
}

// FromPacket strips the markers from a single frame and returns the
// payload. It fails with ErrInvalidFrame if the markers are absent or
// the frame contains an internal frame boundary.
func (c Codec) FromPacket(frame []byte) ([]byte, error) {
	if !c.IsValid(frame) {
		return nil, fmt.Errorf("%w: missing or mismatched markers", ErrInvalidFrame)
	}
	body := frame[len(c.head) : len(frame)-len(c.tail)]
	return append([]byte(nil), body...), nil
}

// IsValid reports whether frame is exactly one well-formed frame.
func (c Codec) IsValid(frame []byte) bool {
	if len(frame) < len(c.head)+len(c.tail) {
		return false
	}
	if !bytes.HasPrefix(frame, c.head) || !bytes.HasSuffix(frame, c.tail) {
		return false
	}
	// An embedded tail+head sequence means an un-split multi-frame buffer.
	body := frame[len(c.head) : len(frame)-len(c.tail)]
	return !bytes.Contains(body, c.boundary())
}

// SplitPacket splits a buffer of concatenated frames into individual
// frames, in order. Fragments that do not form a well-formed frame
// (including empty fragments) are discarded.
func (c Codec) SplitPacket(buffer []byte) [][]byte {
	if len(buffer) == 0 {
		return nil
	}
	parts := bytes.Split(buffer, c.boundary())
	frames := make([][]byte, 0, len(parts))
	for i, part := range parts {
		frame := make([]byte, 0, len(c.head)+len(part)+len(c.tail))
		if i > 0 {
			frame = append(frame, c.head...)
		}
		frame = append(frame, part...)
		if i < len(parts)-1 {
			frame = append(frame, c.tail...)
		}
		if c.IsValid(frame) {
			frames = append(frames, frame)
		}
	}
	return frames
}

// boundary is the byte sequence separating two adjacent frames.
func (c Codec) boundary() []byte {
	b := make([]byte, 0, len(c.tail)+len(c.head))
	b = append(b, c.tail...)
	return append(b, c.head...)
}

// Head returns a copy of the head marker.
func (c Codec) Head() []byte {
	return append([]byte(nil), c.head...)
}

// Tail returns a copy of the tail marker.
func (c Codec) Tail() []byte {
	return append([]byte(nil), c.tail...)
}
