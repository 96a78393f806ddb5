package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDumper_Hex(t *testing.T) {
	var out bytes.Buffer
	feeds := 0
	d := newDumper(&out, func() { feeds++ }, 16)

	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i * 17)
	}
	d.text([]byte("# label\n"))
	d.hex(data)

	want := "# label\n" +
		"00 11 22 33 44 55 66 77 88 99 aa bb cc dd ee ff\n" +
		"10 21 32 43\n"
	require.Equal(t, want, out.String())
	require.Equal(t, 1, feeds)
}

func TestDumper_Allocations(t *testing.T) {
	d := newDumper(discard{}, nil, 1024)
	data := bytes.Repeat([]byte{0xAB}, 100)

	allocs := testing.AllocsPerRun(100, func() { d.hex(data) })
	require.Zero(t, allocs)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
