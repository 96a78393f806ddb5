package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/tracemux/internal/adapters/transport"
	"github.com/bft-labs/tracemux/internal/cliconfig"
	"github.com/bft-labs/tracemux/pkg/log"
	"github.com/bft-labs/tracemux/pkg/tracemux"
	"github.com/bft-labs/tracemux/plugins/configwatcher"
	"github.com/bft-labs/tracemux/plugins/lossreporter"
)

func run(ctx context.Context, cfg cliconfig.Config, cfgFile string, in io.Reader) error {
	zl, err := cliconfig.Logger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	zl.Info().Interface("config", cfg.Redacted()).Msg("configuration")
	logger := log.NewZerologAdapterWithLogger(zl)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts := []tracemux.Option{
		tracemux.WithTransport(out),
		tracemux.WithLogger(logger),
		tracemux.WithDumpWriter(os.Stderr),
		lossreporter.WithLossReporter(lossreporter.Config{
			Summary: zl.GetLevel() <= zerolog.DebugLevel,
		}),
	}
	if cfg.Watch {
		if cfgFile == "" {
			zl.Warn().Msg("--watch needs a config file, ignoring")
		} else {
			opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{Path: cfgFile}))
		}
	}

	mux, err := tracemux.Init(cfg.MuxConfig(), opts...)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("init tracemux: %w", err)
	}

	inputDone := make(chan error, 1)
	go func() { inputDone <- copyLines(mux, in) }()

	demoCtx, stopDemo := context.WithCancel(ctx)
	demoDone := make(chan struct{})
	if cfg.Demo {
		go func() {
			defer close(demoDone)
			runDemo(demoCtx, mux, cfg.DemoInterval)
		}()
	} else {
		close(demoDone)
	}

	// Wait for a signal, or for stdin to end when there is no demo traffic.
	select {
	case <-ctx.Done():
		zl.Info().Msg("received signal, stopping...")
	case err := <-inputDone:
		if err != nil {
			zl.Error().Err(err).Msg("read input")
		}
		if cfg.Demo {
			<-ctx.Done()
			zl.Info().Msg("received signal, stopping...")
		}
	}
	stopDemo()
	<-demoDone

	if cfg.DumpOnExit {
		mux.DumpAll()
	}

	deinitErr := mux.Deinit()
	for _, s := range mux.Stats() {
		zl.Info().
			Str("channel", s.Name).
			Uint64("submitted", s.Submitted).
			Uint64("bytes", s.BytesSubmitted).
			Uint64("lost_frames", s.LostFrames).
			Uint64("lost_bytes", s.LostBytes).
			Uint64("submit_failures", s.SubmitFailures).
			Msg("channel stats")
	}
	if deinitErr != nil {
		return fmt.Errorf("deinit tracemux: %w", deinitErr)
	}
	return nil
}

// openSink builds the transport selected by cfg.Transport.
func openSink(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (tracemux.TransportSink, error) {
	streamOpts := []transport.StreamOption{
		transport.WithQueueDepth(cfg.QueueDepth),
		transport.WithLogger(logger),
	}
	paced := streamOpts
	if cfg.Pace {
		paced = append(paced, transport.WithBaud(cfg.Baud))
	}

	switch cfg.Transport {
	case cliconfig.TransportStdout:
		return transport.NewStreamSink(os.Stdout, paced...), nil

	case cliconfig.TransportFile:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		return transport.NewStreamSink(f, append(paced, transport.WithCloser(f))...), nil

	case cliconfig.TransportSerial:
		return transport.OpenSerial(transport.SerialConfig{
			Device: cfg.Device,
			Baud:   cfg.Baud,
		}, streamOpts...)

	case cliconfig.TransportMQTT:
		s, err := transport.NewMQTTSink(transport.MQTTConfig{
			BrokerURL: cfg.BrokerURL,
			Topic:     cfg.Topic,
			QoS:       byte(cfg.QoS),
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

// maxLineRecord bounds one console record. Longer lines are forwarded in
// pieces of this size.
const maxLineRecord = 4096

type userWriter interface {
	WriteUser(p []byte)
}

// copyLines writes each input line, newline included, to the console
// channel. The records concatenate back to the input stream.
func copyLines(w userWriter, r io.Reader) error {
	br := bufio.NewReaderSize(r, maxLineRecord)
	for {
		line, err := br.ReadSlice('\n')
		if len(line) > 0 {
			w.WriteUser(line)
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}

// runDemo emits controller records on every channel until ctx is done.
func runDemo(ctx context.Context, mux *tracemux.Tracemux, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var n uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n++
		rec := demoRecord(n)
		switch n % 3 {
		case 0:
			mux.WriteControllerFrame(rec[:5], rec[5:], 0)
		case 1:
			mux.WriteControllerFrame(rec[:5], nil, tracemux.FlagISR)
		case 2:
			mux.WriteControllerFrame(rec[:1], rec[1:], tracemux.FlagHCI)
		}
	}
}

// demoRecord returns a small record: an opcode byte, a little-endian
// sequence number and a timestamp.
func demoRecord(n uint32) []byte {
	rec := make([]byte, 13)
	rec[0] = byte(n % 3)
	binary.LittleEndian.PutUint32(rec[1:5], n)
	binary.LittleEndian.PutUint64(rec[5:], uint64(time.Now().UnixMicro()))
	return rec
}
