// Package stream implements the composable byte/character streaming layer:
// buffering with mark/reset, pushback, an in-memory producer/consumer pipe,
// a character-set transcoder and line-oriented reading, all built on the
// standard io.Reader/io.Writer interfaces.
package stream

import "errors"

// Boundary errors, as enumerated in spec.md §6. Compare with errors.Is.
var (
	ErrStreamClosed     = errors.New("stream closed")
	ErrInvalidMark      = errors.New("invalid mark")
	ErrMarkNotSupported = errors.New("mark/reset not supported")
	ErrPushbackFull     = errors.New("pushback buffer full")
	ErrIllegalArgument  = errors.New("illegal argument")
	ErrBufferSize       = errors.New("buffer size <= 0")

	ErrPipeNotConnected = errors.New("pipe not connected")
	ErrPipeClosed       = errors.New("pipe closed")
	ErrPipeBroken       = errors.New("pipe broken")
	ErrReadEndDead      = errors.New("read end dead")
)
