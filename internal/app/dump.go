package app

import (
	"io"

	"github.com/bft-labs/tracemux/internal/ports"
)

const (
	dumpBytesPerLine = 16
	hexDigits        = "0123456789abcdef"
)

// dumper writes raw buffer bytes as hex lines. All scratch space is
// allocated up front; dumping itself never allocates.
type dumper struct {
	w     io.Writer
	feed  ports.WatchdogFeeder
	every int
	since int
	line  [dumpBytesPerLine * 3]byte
}

func newDumper(w io.Writer, feed ports.WatchdogFeeder, every int) *dumper {
	return &dumper{w: w, feed: feed, every: every}
}

func (d *dumper) text(b []byte) {
	_, _ = d.w.Write(b)
}

func (d *dumper) hex(b []byte) {
	for len(b) > 0 {
		n := len(b)
		if n > dumpBytesPerLine {
			n = dumpBytesPerLine
		}
		for i, c := range b[:n] {
			d.line[i*3] = hexDigits[c>>4]
			d.line[i*3+1] = hexDigits[c&0x0F]
			d.line[i*3+2] = ' '
		}
		d.line[n*3-1] = '\n'
		_, _ = d.w.Write(d.line[:n*3])
		b = b[n:]

		d.since += n
		if d.feed != nil && d.since >= d.every {
			d.feed()
			d.since = 0
		}
	}
}
