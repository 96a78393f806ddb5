package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

type recordingUser struct {
	records [][]byte
}

func (r *recordingUser) WriteUser(p []byte) {
	r.records = append(r.records, append([]byte(nil), p...))
}

func TestCopyLines_LongLine(t *testing.T) {
	input := strings.Repeat("a", 70000) + "\ntail\nno newline"
	var w recordingUser
	require.NoError(t, copyLines(&w, strings.NewReader(input)))

	require.Greater(t, len(w.records), 3)
	for _, rec := range w.records {
		require.LessOrEqual(t, len(rec), maxLineRecord)
	}
	require.Equal(t, input, string(bytes.Join(w.records, nil)))
	require.Equal(t, "tail\n", string(w.records[len(w.records)-2]))
	require.Equal(t, "no newline", string(w.records[len(w.records)-1]))
}

func TestCopyLines_ReadError(t *testing.T) {
	boom := errors.New("boom")
	var w recordingUser
	r := io.MultiReader(strings.NewReader("one\n"), iotest.ErrReader(boom))
	require.ErrorIs(t, copyLines(&w, r), boom)
	require.Equal(t, [][]byte{[]byte("one\n")}, w.records)
}
