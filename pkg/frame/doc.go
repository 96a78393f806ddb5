// Package frame implements the tracemux wire format.
//
// Every log record placed on the serial line is one frame:
//
//	+--------+--------+------+--------+-----------------+----------+
//	| length | source | type | serial | payload         | checksum |
//	| u16 LE | u8     | u8   | u16 LE | length bytes    | u32 LE   |
//	+--------+--------+------+--------+-----------------+----------+
//
// The checksum is the unsigned sum of every header and payload byte,
// truncated to 32 bits. It is an integrity hint, not a CRC; downstream
// tools depend on the exact algorithm, so it must not be changed.
//
// # Encoding
//
// [Encode] writes a frame directly into a caller-owned buffer without
// allocating. The payload may be given as two spans which are concatenated
// on the wire:
//
//	n := frame.Encode(buf[off:], hdr, primary, appended)
//
// # Decoding
//
// [Decoder] reads frames back from a captured byte stream:
//
//	dec := frame.NewDecoder(r)
//	for {
//	    f, err := dec.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
package frame
