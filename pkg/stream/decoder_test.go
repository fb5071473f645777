package stream_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/iostream/pkg/stream"
)

func TestDecoderASCII(t *testing.T) {
	dec := stream.NewDecoder(strings.NewReader("hi"))
	buf := make([]stream.CodeUnit, 2)
	n, err := dec.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, stream.CodeUnit('h'), buf[0])
	require.Equal(t, stream.CodeUnit('i'), buf[1])
}

func TestDecoderSurrogatePairNeverSplit(t *testing.T) {
	// U+1F600 GRINNING FACE, outside the BMP: encodes as a surrogate pair.
	dec := stream.NewDecoder(strings.NewReader("\U0001F600"))

	u1, err := dec.ReadUnit()
	require.NoError(t, err)
	require.True(t, u1 >= 0xD800 && u1 <= 0xDBFF, "expected high surrogate")

	u2, err := dec.ReadUnit()
	require.NoError(t, err)
	require.True(t, u2 >= 0xDC00 && u2 <= 0xDFFF, "expected low surrogate")
}

func TestEncoderRoundTrip(t *testing.T) {
	src := "hello, \U0001F600 world"

	dec := stream.NewDecoder(strings.NewReader(src))
	var units []stream.CodeUnit
	buf := make([]stream.CodeUnit, 4)
	for {
		n, err := dec.Read(buf)
		units = append(units, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	var out bytes.Buffer
	enc := stream.NewEncoder(&out)
	_, err := enc.Write(units)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	require.Equal(t, src, out.String())
}

func TestEncoderLeftoverAcrossWrites(t *testing.T) {
	dec := stream.NewDecoder(strings.NewReader("\U0001F600"))
	var pair [2]stream.CodeUnit
	n, err := dec.Read(pair[:])
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var out bytes.Buffer
	enc := stream.NewEncoder(&out)
	_, err = enc.Write(pair[:1])
	require.NoError(t, err)
	require.Equal(t, 0, out.Len(), "leftover high surrogate must not be emitted yet")

	_, err = enc.Write(pair[1:])
	require.NoError(t, err)
	require.Equal(t, "\U0001F600", out.String())
}
