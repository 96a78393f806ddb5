package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire layout sizes.
const (
	HeaderLen  = 6
	TrailerLen = 4
	Overhead   = HeaderLen + TrailerLen

	// MaxPayload is the largest payload the u16 length field can describe.
	MaxPayload = 0xFFFF
)

// Errors returned by the codec.
var (
	ErrChecksum        = errors.New("frame: checksum mismatch")
	ErrShortFrame      = errors.New("frame: short frame")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Source identifies the producer of a frame.
type Source uint8

// Fixed source tags.
const (
	SourceUser          Source = 0x00
	SourceControllerISR Source = 0x06
	SourceControllerHCI Source = 0x08
	SourceUserAlt       Source = 0x10
	SourceLossReport    Source = 0xFF
)

func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceControllerISR:
		return "controller-isr"
	case SourceControllerHCI:
		return "controller-hci"
	case SourceUserAlt:
		return "user-alt"
	case SourceLossReport:
		return "loss"
	default:
		return fmt.Sprintf("source(0x%02x)", uint8(s))
	}
}

// Type is the channel-type byte: high nibble is the class, low nibble the subtype.
type Type uint8

// Channel classes.
const (
	ClassController uint8 = 0x1
	ClassUser       uint8 = 0x2
)

// Channel types used by the multiplexer.
var (
	TypeControllerTask = NewType(ClassController, 0x0)
	TypeControllerISR  = NewType(ClassController, 0x1)
	TypeControllerHCI  = NewType(ClassController, 0x2)
	TypeUser           = NewType(ClassUser, 0x0)
)

// NewType packs a class and subtype into a type byte.
func NewType(class, subtype uint8) Type {
	return Type(class<<4 | subtype&0x0F)
}

// Class returns the high nibble.
func (t Type) Class() uint8 { return uint8(t) >> 4 }

// Subtype returns the low nibble.
func (t Type) Subtype() uint8 { return uint8(t) & 0x0F }

func (t Type) String() string {
	switch t {
	case TypeControllerTask:
		return "controller-task"
	case TypeControllerISR:
		return "controller-isr"
	case TypeControllerHCI:
		return "controller-hci"
	case TypeUser:
		return "user"
	default:
		return fmt.Sprintf("type(%x/%x)", t.Class(), t.Subtype())
	}
}

// Header is the fixed 6-byte frame prefix.
type Header struct {
	Length uint16 // payload length only
	Source Source
	Type   Type
	Serial uint16
}

// Put writes h into dst[:HeaderLen].
func (h Header) Put(dst []byte) {
	_ = dst[HeaderLen-1]
	binary.LittleEndian.PutUint16(dst[0:2], h.Length)
	dst[2] = byte(h.Source)
	dst[3] = byte(h.Type)
	binary.LittleEndian.PutUint16(dst[4:6], h.Serial)
}

// ParseHeader reads a header from b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortFrame
	}
	return Header{
		Length: binary.LittleEndian.Uint16(b[0:2]),
		Source: Source(b[2]),
		Type:   Type(b[3]),
		Serial: binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// Checksum returns the unsigned byte sum of b, wrapping at 32 bits.
func Checksum(b []byte) uint32 {
	return sum(0, b)
}

func sum(acc uint32, b []byte) uint32 {
	for _, c := range b {
		acc += uint32(c)
	}
	return acc
}

// Size returns the encoded size of a frame carrying payload bytes.
func Size(payload int) int {
	return payload + Overhead
}

// CheckPayload reports ErrPayloadTooLarge when n payload bytes cannot be
// described by the length field.
func CheckPayload(n int) error {
	if n > MaxPayload {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, MaxPayload)
	}
	return nil
}

// Encode writes a complete frame into dst and returns the number of bytes
// written. hdr.Length is overwritten with len(primary)+len(appended). The
// caller guarantees dst has room for Size(len(primary)+len(appended)) bytes
// and that CheckPayload accepts the payload length.
func Encode(dst []byte, hdr Header, primary, appended []byte) int {
	payload := len(primary) + len(appended)
	hdr.Length = uint16(payload)
	hdr.Put(dst)

	off := HeaderLen
	off += copy(dst[off:], primary)
	off += copy(dst[off:], appended)

	binary.LittleEndian.PutUint32(dst[off:off+TrailerLen], Checksum(dst[:off]))
	return off + TrailerLen
}

// Frame is one decoded record.
type Frame struct {
	Header
	Payload  []byte
	Checksum uint32
}

// Unmarshal parses a single frame from the start of b and returns it along
// with the number of bytes consumed. The payload aliases b.
func Unmarshal(b []byte) (Frame, int, error) {
	hdr, err := ParseHeader(b)
	if err != nil {
		return Frame{}, 0, err
	}
	end := HeaderLen + int(hdr.Length)
	if len(b) < end+TrailerLen {
		return Frame{}, 0, ErrShortFrame
	}
	f := Frame{
		Header:   hdr,
		Payload:  b[HeaderLen:end],
		Checksum: binary.LittleEndian.Uint32(b[end : end+TrailerLen]),
	}
	if Checksum(b[:end]) != f.Checksum {
		return f, end + TrailerLen, ErrChecksum
	}
	return f, end + TrailerLen, nil
}
