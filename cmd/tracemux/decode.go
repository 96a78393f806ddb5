package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/bft-labs/tracemux/pkg/frame"
)

type decodeOptions struct {
	quiet bool
	hex   bool
}

// decodeSummary accumulates what a decoded stream contained.
type decodeSummary struct {
	Frames      int
	Bytes       int64
	BadChecksum int
	Truncated   bool
	PerSource   map[frame.Source]int
	// SerialGaps counts missing serials per channel type.
	SerialGaps map[frame.Type]int
	LostFrames map[frame.Type]uint64
	LostBytes  map[frame.Type]uint64

	last map[frame.Type]uint16
}

func newDecodeSummary() *decodeSummary {
	return &decodeSummary{
		PerSource:  make(map[frame.Source]int),
		SerialGaps: make(map[frame.Type]int),
		LostFrames: make(map[frame.Type]uint64),
		LostBytes:  make(map[frame.Type]uint64),
		last:       make(map[frame.Type]uint16),
	}
}

func (s *decodeSummary) observe(f frame.Frame) {
	s.Frames++
	s.PerSource[f.Source]++
	if prev, ok := s.last[f.Type]; ok {
		if gap := f.Serial - prev - 1; gap != 0 {
			s.SerialGaps[f.Type] += int(gap)
		}
	}
	s.last[f.Type] = f.Serial

	if f.Source == frame.SourceLossReport {
		if r, err := frame.ParseLossReport(f.Payload); err == nil {
			s.LostFrames[r.Type] += uint64(r.Frames)
			s.LostBytes[r.Type] += uint64(r.Bytes)
		}
	}
}

func newDecodeCmd() *cobra.Command {
	var opts decodeOptions
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a framed trace stream",
		Long:  "Decode a framed trace stream from a file, or from stdin when no file or - is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			sum, err := decodeStream(in, cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print only the summary")
	cmd.Flags().BoolVar(&opts.hex, "hex", false, "always print payloads as hex")
	return cmd
}

// decodeStream prints every frame read from r and returns the totals. A
// checksum mismatch is reported and decoding continues; a stream cut inside
// a frame ends decoding without an error.
func decodeStream(r io.Reader, w io.Writer, opts decodeOptions) (*decodeSummary, error) {
	sum := newDecodeSummary()
	dec := frame.NewDecoder(r)
	for {
		off := dec.Offset()
		f, err := dec.Next()
		switch {
		case err == nil:
		case errors.Is(err, frame.ErrChecksum):
			sum.BadChecksum++
			if !opts.quiet {
				fmt.Fprintf(w, "%08x  checksum mismatch (len=%d)\n", off, f.Length)
			}
			continue
		case errors.Is(err, io.EOF):
			sum.Bytes = dec.Offset()
			return sum, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			sum.Truncated = true
			sum.Bytes = dec.Offset()
			return sum, nil
		default:
			return sum, err
		}

		sum.observe(f)
		if !opts.quiet {
			fmt.Fprintf(w, "%08x  %-14s %-15s serial=%-5d %s\n",
				off, f.Source, f.Type, f.Serial, formatPayload(f, opts.hex))
		}
	}
}

func formatPayload(f frame.Frame, forceHex bool) string {
	if f.Source == frame.SourceLossReport {
		if r, err := frame.ParseLossReport(f.Payload); err == nil {
			return fmt.Sprintf("lost %d frames, %d bytes on %s", r.Frames, r.Bytes, r.Type)
		}
	}
	if !forceHex && printable(f.Payload) {
		return fmt.Sprintf("%q", f.Payload)
	}
	return hex.EncodeToString(f.Payload)
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 && r != '\t' {
			return false
		}
	}
	return true
}

func printSummary(w io.Writer, s *decodeSummary) {
	fmt.Fprintf(w, "frames=%d bytes=%d bad_checksum=%d truncated=%t\n",
		s.Frames, s.Bytes, s.BadChecksum, s.Truncated)

	sources := make([]frame.Source, 0, len(s.PerSource))
	for src := range s.PerSource {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	for _, src := range sources {
		fmt.Fprintf(w, "  source %-14s frames=%d\n", src, s.PerSource[src])
	}

	types := make([]frame.Type, 0, len(s.last))
	for t := range s.last {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Fprintf(w, "  type %-15s serial_gaps=%d reported_lost_frames=%d reported_lost_bytes=%d\n",
			t, s.SerialGaps[t], s.LostFrames[t], s.LostBytes[t])
	}
}
