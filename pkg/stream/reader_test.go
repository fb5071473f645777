package stream_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/iostream/pkg/stream"
)

// TestMarkResetAcrossFill is spec.md §8 scenario 2.
func TestMarkResetAcrossFill(t *testing.T) {
	r, err := stream.NewReaderSize(strings.NewReader("ABCDEFGHIJ"), 8)
	require.NoError(t, err)

	buf := make([]byte, 3)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, "ABC", string(buf))

	r.Mark(4)

	buf = make([]byte, 4)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, "DEFG", string(buf))

	require.NoError(t, r.Reset())

	buf = make([]byte, 4)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, "DEFG", string(buf))
}

// TestMarkInvalidation is spec.md §8 scenario 3.
func TestMarkInvalidation(t *testing.T) {
	r, err := stream.NewReaderSize(strings.NewReader("ABCDEFGHIJ"), 8)
	require.NoError(t, err)

	r.Mark(3)

	buf := make([]byte, 5)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)

	err = r.Reset()
	require.ErrorIs(t, err, stream.ErrInvalidMark)
}

func TestReadZeroNeverBlocks(t *testing.T) {
	r := stream.NewReader(strings.NewReader(""))
	n, err := r.Read(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestReaderCloseIdempotent(t *testing.T) {
	r := stream.NewReader(strings.NewReader("x"))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.ReadByte()
	require.ErrorIs(t, err, stream.ErrStreamClosed)
}

func TestReaderGrowsBufferWithinMarkLimit(t *testing.T) {
	r, err := stream.NewReaderSize(strings.NewReader(strings.Repeat("x", 100)), 4)
	require.NoError(t, err)

	r.Mark(50)

	buf := make([]byte, 40)
	n, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, 40, n)

	require.NoError(t, r.Reset())

	buf2 := make([]byte, 40)
	n, err = io.ReadFull(r, buf2)
	require.NoError(t, err)
	require.Equal(t, buf, buf2)
}
