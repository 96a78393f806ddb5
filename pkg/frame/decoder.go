package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Decoder reads consecutive frames from a byte stream.
type Decoder struct {
	r      *bufio.Reader
	offset int64
	buf    []byte
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), buf: make([]byte, HeaderLen+MaxPayload+TrailerLen)}
}

// Offset returns the stream offset of the next frame.
func (d *Decoder) Offset() int64 { return d.offset }

// Next returns the next frame. The returned payload is only valid until the
// following call. It returns io.EOF at a clean end of stream and
// io.ErrUnexpectedEOF when the stream ends inside a frame. A frame whose
// checksum does not match is returned together with ErrChecksum; decoding
// may continue after it.
func (d *Decoder) Next() (Frame, error) {
	if _, err := io.ReadFull(d.r, d.buf[:HeaderLen]); err != nil {
		return Frame{}, err
	}
	hdr, _ := ParseHeader(d.buf[:HeaderLen])
	end := HeaderLen + int(hdr.Length)
	if _, err := io.ReadFull(d.r, d.buf[HeaderLen:end+TrailerLen]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}
	d.offset += int64(end + TrailerLen)

	f := Frame{
		Header:   hdr,
		Payload:  d.buf[HeaderLen:end],
		Checksum: binary.LittleEndian.Uint32(d.buf[end : end+TrailerLen]),
	}
	if Checksum(d.buf[:end]) != f.Checksum {
		return f, ErrChecksum
	}
	return f, nil
}
