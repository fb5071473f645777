package stream_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/iostream/pkg/stream"
)

// TestPushbackLIFO: unread followed by read returns bytes in LIFO order
// (spec.md §8 boundary behaviors).
func TestPushbackLIFO(t *testing.T) {
	r, err := stream.NewPushbackReaderSize(strings.NewReader("xyz"), 3)
	require.NoError(t, err)

	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('x'), b)

	require.NoError(t, r.Unread('x'))
	require.NoError(t, r.Unread('w'))

	b, err = r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('w'), b)

	b, err = r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('x'), b)

	b, err = r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('y'), b)
}

func TestPushbackFullFails(t *testing.T) {
	r, err := stream.NewPushbackReaderSize(strings.NewReader("abc"), 1)
	require.NoError(t, err)

	require.NoError(t, r.Unread('z'))
	err = r.Unread('y')
	require.ErrorIs(t, err, stream.ErrPushbackFull)
}

func TestPushbackMarkUnsupported(t *testing.T) {
	r, err := stream.NewPushbackReaderSize(strings.NewReader("abc"), 1)
	require.NoError(t, err)

	require.ErrorIs(t, r.Mark(1), stream.ErrMarkNotSupported)
	require.ErrorIs(t, r.Reset(), stream.ErrMarkNotSupported)
}
