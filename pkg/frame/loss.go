package frame

import "encoding/binary"

// LossReportLen is the payload size of a loss report frame.
const LossReportLen = 7

// LossReport is the payload carried by frames with SourceLossReport.
type LossReport struct {
	Type   Type
	Frames uint16
	Bytes  uint32
}

// Put writes r into dst[:LossReportLen].
func (r LossReport) Put(dst []byte) {
	_ = dst[LossReportLen-1]
	dst[0] = byte(r.Type)
	binary.LittleEndian.PutUint16(dst[1:3], r.Frames)
	binary.LittleEndian.PutUint32(dst[3:7], r.Bytes)
}

// ParseLossReport decodes a loss report payload.
func ParseLossReport(b []byte) (LossReport, error) {
	if len(b) < LossReportLen {
		return LossReport{}, ErrShortFrame
	}
	return LossReport{
		Type:   Type(b[0]),
		Frames: binary.LittleEndian.Uint16(b[1:3]),
		Bytes:  binary.LittleEndian.Uint32(b[3:7]),
	}, nil
}
