package app

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/tracemux/internal/domain"
	"github.com/bft-labs/tracemux/internal/ports"
	"github.com/bft-labs/tracemux/pkg/frame"
	"github.com/bft-labs/tracemux/pkg/log"
)

// ChannelSpec describes one log channel.
type ChannelSpec struct {
	Name       string
	Source     frame.Source
	Type       frame.Type
	BufferSize int
}

// ChannelStats is a point-in-time snapshot of a channel's counters.
type ChannelStats struct {
	Name   string
	Type   frame.Type
	Serial uint16

	// Loss not yet reported on the wire.
	PendingLostFrames uint32
	PendingLostBytes  uint32

	// Loss since the channel was created.
	LostFrames uint64
	LostBytes  uint64

	Submitted      uint64
	SubmitFailures uint64
	BytesSubmitted uint64
}

// Channel owns a ping-pong pair of transaction buffers, the frame serial
// counter and the loss counters of one producer class.
//
// write, writeLoss, flush and appendPending are called with lock held.
type Channel struct {
	spec   ChannelSpec
	lock   sync.Locker
	bufs   [2]*domain.TransactionBuffer
	active int

	serial     atomic.Uint32
	lostFrames atomic.Uint32
	lostBytes  atomic.Uint32

	totalLostFrames atomic.Uint64
	totalLostBytes  atomic.Uint64
	submitted       atomic.Uint64
	submitFailures  atomic.Uint64
	bytesSubmitted  atomic.Uint64

	sink   ports.TransportSink
	logger log.Logger

	dumpLabel [2][]byte
}

// NewChannel allocates a channel and its two buffers.
func NewChannel(spec ChannelSpec, lock sync.Locker, sink ports.TransportSink, logger log.Logger, hook domain.TransitionHook) *Channel {
	c := &Channel{
		spec:   spec,
		lock:   lock,
		sink:   sink,
		logger: logger.With(log.String("channel", spec.Name), log.Hex("type", uint8(spec.Type))),
	}
	for i := range c.bufs {
		c.bufs[i] = domain.NewTransactionBuffer(i, spec.BufferSize)
		c.bufs[i].SetTransitionHook(hook)
		c.dumpLabel[i] = []byte(fmt.Sprintf("# channel %s buffer %d\n", spec.Name, i))
	}
	return c
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.spec.Name }

// Buffers returns the ping-pong pair.
func (c *Channel) Buffers() [2]*domain.TransactionBuffer { return c.bufs }

func (c *Channel) nextSerial() uint16 {
	return uint16(c.serial.Add(1) - 1)
}

// checkCapacity finds room for a frame of size bytes. If the active buffer
// is Available but too full, it is marked NeedQueue (needAppend) and the
// other buffer is tried. ok is false when neither buffer can take the frame.
func (c *Channel) checkCapacity(size int) (ok, needAppend bool) {
	for i := 0; i < 2; i++ {
		b := c.bufs[c.active]
		if size > b.Cap() {
			return false, needAppend
		}
		if b.State() == domain.BufferAvailable {
			if b.Free() >= size {
				return true, needAppend
			}
			if b.MarkNeedQueue() == nil {
				needAppend = true
			}
		}
		c.active ^= 1
	}
	return false, needAppend
}

// encode writes one frame into the active buffer. When the buffer is left
// with no more than one frame's overhead of room it is marked NeedQueue and
// the other buffer becomes active.
func (c *Channel) encode(src frame.Source, primary, appended []byte) (needAppend bool) {
	b := c.bufs[c.active]
	b.Append(frame.Header{Source: src, Type: c.spec.Type, Serial: c.nextSerial()}, primary, appended)
	if b.Free() <= frame.Overhead && b.MarkNeedQueue() == nil {
		c.active ^= 1
		return true
	}
	return false
}

// write frames one record. Empty records are ignored; records that cannot be
// placed are counted as lost. It reports whether a buffer now needs append.
func (c *Channel) write(src frame.Source, primary, appended []byte) (needAppend bool) {
	payload := len(primary) + len(appended)
	if payload == 0 {
		return false
	}
	if frame.CheckPayload(payload) != nil {
		c.recordLoss(1, payload)
		return false
	}

	ok, needAppend := c.checkCapacity(frame.Size(payload))
	if !ok {
		c.recordLoss(1, payload)
		return needAppend
	}
	return c.encode(src, primary, appended) || needAppend
}

// writeLoss emits a loss report frame if anything was dropped since the last
// report and subtracts what it reported from the pending counters. A report
// carries at most 0xFFFF frames; the bytes it claims are the matching share
// of the pending bytes so the remainder goes out with the next report.
func (c *Channel) writeLoss() (needAppend bool) {
	frames := c.lostFrames.Load()
	if frames == 0 {
		return false
	}
	bytes := c.lostBytes.Load()

	ok, needAppend := c.checkCapacity(frame.Size(frame.LossReportLen))
	if !ok {
		return needAppend
	}

	reported, reportedBytes := frames, bytes
	if reported > 0xFFFF {
		reported = 0xFFFF
		reportedBytes = uint32(uint64(bytes) * uint64(reported) / uint64(frames))
	}
	var p [frame.LossReportLen]byte
	frame.LossReport{Type: c.spec.Type, Frames: uint16(reported), Bytes: reportedBytes}.Put(p[:])
	needAppend = c.encode(frame.SourceLossReport, p[:], nil) || needAppend

	c.lostFrames.Add(^reported + 1)
	c.lostBytes.Add(^reportedBytes + 1)
	return needAppend
}

// flush forces every non-empty Available buffer to NeedQueue.
func (c *Channel) flush() {
	for _, b := range c.bufs {
		if b.State() == domain.BufferAvailable && b.Len() > 0 {
			_ = b.MarkNeedQueue()
		}
	}
}

// appendPending submits every NeedQueue buffer, older first.
func (c *Channel) appendPending(_ Task) error {
	var firstErr error
	for i := 0; i < 2; i++ {
		b := c.bufs[c.active^1^i]
		if b.State() != domain.BufferNeedQueue {
			continue
		}
		if err := c.submit(b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Channel) submit(b *domain.TransactionBuffer) error {
	frames, payload := b.Held()
	carriedFrames, carriedBytes := b.Carried()
	size := b.Len()

	if err := b.BeginSubmit(); err != nil {
		return err
	}
	if err := c.sink.Submit(b.Bytes()); err != nil {
		c.submitFailures.Add(1)
		c.recordLoss(frames, payload)
		c.lostFrames.Add(uint32(carriedFrames))
		c.lostBytes.Add(uint32(carriedBytes))
		if rerr := b.Recycle(); rerr != nil {
			c.logger.Error("recycle after failed submit", log.Err(rerr))
		}
		c.logger.Warn("submit failed, buffer recycled",
			log.Err(err),
			log.Int("buffer", b.ID()),
			log.Int("bytes", size),
			log.Int("frames", frames),
		)
		return fmt.Errorf("%s: submit buffer %d: %w", c.spec.Name, b.ID(), err)
	}

	c.submitted.Add(1)
	c.bytesSubmitted.Add(uint64(size))
	return nil
}

func (c *Channel) recordLoss(frames, bytes int) {
	if frames == 0 && bytes == 0 {
		return
	}
	c.lostFrames.Add(uint32(frames))
	c.lostBytes.Add(uint32(bytes))
	c.totalLostFrames.Add(uint64(frames))
	c.totalLostBytes.Add(uint64(bytes))
}

// complete recycles the buffer whose storage starts at p.
func (c *Channel) complete(p []byte) bool {
	for _, b := range c.bufs {
		if b.Owns(p) {
			_ = b.Complete()
			return true
		}
	}
	return false
}

// dump writes both buffers, older first, without touching their flags.
func (c *Channel) dump(d *dumper) {
	for i := 0; i < 2; i++ {
		idx := c.active ^ 1 ^ i
		d.text(c.dumpLabel[idx])
		d.hex(c.bufs[idx].Bytes())
	}
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Name:              c.spec.Name,
		Type:              c.spec.Type,
		Serial:            uint16(c.serial.Load()),
		PendingLostFrames: c.lostFrames.Load(),
		PendingLostBytes:  c.lostBytes.Load(),
		LostFrames:        c.totalLostFrames.Load(),
		LostBytes:         c.totalLostBytes.Load(),
		Submitted:         c.submitted.Load(),
		SubmitFailures:    c.submitFailures.Load(),
		BytesSubmitted:    c.bytesSubmitted.Load(),
	}
}
