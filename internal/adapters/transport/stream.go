package transport

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/bft-labs/tracemux/pkg/log"
)

// DefaultQueueDepth is the number of buffers a StreamSink accepts before
// reporting busy. Two channels of two buffers each fit with room to spare.
const DefaultQueueDepth = 8

// StreamOption configures a StreamSink.
type StreamOption func(*StreamSink)

// WithQueueDepth sets how many submissions may wait for the writer.
func WithQueueDepth(n int) StreamOption {
	return func(s *StreamSink) {
		if n > 0 {
			s.depth = n
		}
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(l log.Logger) StreamOption {
	return func(s *StreamSink) {
		s.logger = l
	}
}

// WithCloser makes Close release c after the queue is shut.
func WithCloser(c io.Closer) StreamOption {
	return func(s *StreamSink) {
		s.closer = c
	}
}

// WithBaud paces writes as a UART running at bps bits per second with
// 10 bits per byte would. Zero disables pacing.
func WithBaud(bps int) StreamOption {
	return func(s *StreamSink) {
		s.baud = bps
	}
}

// StreamSink is a TransportSink that writes buffers to an io.Writer on its
// own goroutine, the way a DMA engine drains memory into a UART. Submit
// only queues; completion is reported once the write returns.
type StreamSink struct {
	w      io.Writer
	closer io.Closer
	logger log.Logger
	depth  int
	baud   int

	t     tracker
	queue chan []byte
	done  chan struct{}

	written     atomic.Uint64
	writeErrors atomic.Uint64
}

// NewStreamSink starts a sink writing to w.
func NewStreamSink(w io.Writer, opts ...StreamOption) *StreamSink {
	s := &StreamSink{
		w:      w,
		logger: log.NewNoopLogger(),
		depth:  DefaultQueueDepth,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = make(chan []byte, s.depth)
	go s.run()
	return s
}

// Submit queues b for writing. It returns ErrSinkBusy when the queue is
// full and ErrSinkClosed after Close.
func (s *StreamSink) Submit(b []byte) error {
	return s.t.begin(func() bool {
		select {
		case s.queue <- b:
			return true
		default:
			return false
		}
	})
}

// OnComplete registers the completion callback.
func (s *StreamSink) OnComplete(cb func([]byte)) {
	s.t.setCallback(cb)
}

// WaitAllDone blocks until every queued buffer has been written.
func (s *StreamSink) WaitAllDone(timeout time.Duration) error {
	return s.t.wait(timeout)
}

// Close stops accepting buffers, releases the underlying writer if one was
// given with WithCloser, and waits for the writer goroutine to exit.
// Buffers still queued are completed.
func (s *StreamSink) Close() error {
	if !s.t.close(func() { close(s.queue) }) {
		return nil
	}
	var err error
	if s.closer != nil {
		err = s.closer.Close()
	}
	<-s.done
	return err
}

// Written returns the number of bytes written successfully.
func (s *StreamSink) Written() uint64 { return s.written.Load() }

// WriteErrors returns the number of failed writes.
func (s *StreamSink) WriteErrors() uint64 { return s.writeErrors.Load() }

func (s *StreamSink) run() {
	defer close(s.done)
	for b := range s.queue {
		n, err := s.w.Write(b)
		s.written.Add(uint64(n))
		if err != nil {
			s.writeErrors.Add(1)
			s.logger.Warn("transport write failed",
				log.Err(err),
				log.Int("bytes", len(b)),
				log.Int("written", n),
			)
		}
		if s.baud > 0 {
			time.Sleep(time.Duration(len(b)) * 10 * time.Second / time.Duration(s.baud))
		}
		s.t.done(b)
	}
}
