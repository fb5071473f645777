package stream

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshuarubin/iostream/internal/xlog"
)

// livenessProbe bounds how long a blocked reader/writer waits before
// re-checking whether its peer is still alive. It is a liveness probe, not a
// correctness timeout: do not make this unbounded (spec.md §9).
const livenessProbe = 200 * time.Millisecond

// deadRetries is the number of consecutive timed-out waits after which a
// blocked reader (or writer) logs and fails if its peer's liveness func
// reports it dead. Each pass of the wait loop also checks that liveness func
// before waiting, so a peer already reported dead fails the blocked call at
// once, without using up this budget.
const deadRetries = 2

// pipe is the shared ring-buffer state behind a connected PipeReader/
// PipeWriter pair, per spec.md §3 "Pipe ring". A single mutex guards both
// indices, the flags and the liveness hooks; wake is a broadcast channel
// swapped out on every signal, the same fan-out-and-replace pattern used for
// condition variables with a timeout.
type pipe struct {
	mu sync.Mutex

	buf []byte
	in  int // next write index, or -1 meaning empty
	out int // next read index

	closedByReader bool
	closedByWriter bool

	// writerAlive/readerAlive report whether the opposite endpoint's owning
	// goroutine is still running. Nil means "assume alive" (no liveness
	// tracking registered).
	writerAlive func() bool
	readerAlive func() bool

	wake chan struct{}

	log zerolog.Logger
}

func newPipe(capacity int) *pipe {
	return &pipe{
		buf:  make([]byte, capacity),
		in:   -1,
		wake: make(chan struct{}),
		log:  xlog.Component("pipe"),
	}
}

// signal wakes every goroutine currently parked in wait and installs a fresh
// wake channel for subsequent waiters. Caller must hold p.mu, and must only
// call this after actually changing pipe state (a new byte written, space
// freed, or a close flag set) — waiting goroutines must not signal
// themselves just to go back to waiting.
func (p *pipe) signal() {
	close(p.wake)
	p.wake = make(chan struct{})
}

// wait blocks until the next signal, up to the liveness probe duration,
// releasing and reacquiring p.mu around the block exactly like a condition
// variable. Returns false if the probe (or ctx) expired first.
func (p *pipe) wait(ctx context.Context) bool {
	ch := p.wake
	p.mu.Unlock()
	defer p.mu.Lock()

	select {
	case <-ch:
		return true
	case <-time.After(livenessProbe):
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *pipe) isWriterAlive() bool {
	return p.writerAlive == nil || p.writerAlive()
}

func (p *pipe) isReaderAlive() bool {
	return p.readerAlive == nil || p.readerAlive()
}

// empty reports the ring's empty sentinel.
func (p *pipe) empty() bool { return p.in < 0 }

// full reports the ring's full state: in has caught back up to out.
func (p *pipe) full() bool { return p.in == p.out && p.in >= 0 }

// PipeReader is the consuming end of an in-memory byte pipe (spec.md §4.4).
type PipeReader struct {
	p *pipe
}

// PipeWriter is the producing end of an in-memory byte pipe (spec.md §4.4).
type PipeWriter struct {
	p *pipe
}

// NewPipe returns a connected reader/writer pair sharing a ring buffer of
// the given capacity.
func NewPipe(capacity int) (*PipeReader, *PipeWriter, error) {
	if capacity <= 0 {
		return nil, nil, ErrBufferSize
	}
	p := newPipe(capacity)
	return &PipeReader{p: p}, &PipeWriter{p: p}, nil
}

// SetLivenessFunc registers the callback Read polls, while blocked waiting
// for data, to detect that the writer's goroutine has silently died. A nil
// func disables the check (the writer is always assumed alive).
func (r *PipeReader) SetLivenessFunc(aliveWriter func() bool) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	r.p.writerAlive = aliveWriter
}

// SetLivenessFunc registers the callback Write polls, while blocked waiting
// for space, to detect that the reader's goroutine has silently died.
func (w *PipeWriter) SetLivenessFunc(aliveReader func() bool) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	w.p.readerAlive = aliveReader
}

// Read implements io.Reader. It blocks until at least one byte is available,
// the writer closes the pipe (returning io.EOF once drained), or the reader
// itself was closed.
func (r *PipeReader) Read(b []byte) (int, error) {
	return r.ReadContext(context.Background(), b)
}

// ReadContext is like Read but also returns early if ctx is done.
func (r *PipeReader) ReadContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closedByReader {
		return 0, ErrPipeClosed
	}

	timeouts := 0
	for p.empty() {
		if p.closedByWriter {
			return 0, io.EOF
		}
		if !p.isWriterAlive() {
			return 0, ErrPipeBroken
		}
		if !p.wait(ctx) {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			timeouts++
			if timeouts > deadRetries && !p.isWriterAlive() {
				p.log.Warn().Int("timeouts", timeouts).Msg("writer appears dead, failing blocked read")
				return 0, ErrPipeBroken
			}
		} else {
			timeouts = 0
		}
		if p.closedByReader {
			return 0, ErrPipeClosed
		}
	}

	n := 0
	for n < len(b) && !p.empty() {
		b[n] = p.buf[p.out]
		n++
		p.out = (p.out + 1) % len(p.buf)
		if p.out == p.in {
			p.in = -1
		}
	}
	p.signal()
	return n, nil
}

// Write implements io.Writer, blocking until all of b has been stored or an
// error occurs.
func (w *PipeWriter) Write(b []byte) (int, error) {
	return w.WriteContext(context.Background(), b)
}

// WriteContext is like Write but also returns early if ctx is done.
func (w *PipeWriter) WriteContext(ctx context.Context, b []byte) (int, error) {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closedByWriter {
		return 0, ErrPipeClosed
	}
	if p.closedByReader {
		return 0, ErrPipeClosed
	}

	written := 0
	for written < len(b) {
		timeouts := 0
		for p.full() {
			if p.closedByReader {
				return written, ErrPipeClosed
			}
			if !p.isReaderAlive() {
				return written, ErrReadEndDead
			}
			if !p.wait(ctx) {
				if ctx.Err() != nil {
					return written, ctx.Err()
				}
				timeouts++
				if timeouts > deadRetries && !p.isReaderAlive() {
					p.log.Warn().Int("timeouts", timeouts).Msg("reader appears dead, failing blocked write")
					return written, ErrReadEndDead
				}
			} else {
				timeouts = 0
			}
		}

		if p.empty() {
			p.in = 0
			p.out = 0
		}

		for written < len(b) && !p.full() {
			p.buf[p.in] = b[written]
			written++
			p.in = (p.in + 1) % len(p.buf)
			if p.in == p.out {
				break
			}
		}
		p.signal()
	}

	return written, nil
}

// Close closes the writer side: subsequent reads drain any buffered bytes
// and then return io.EOF. Idempotent.
func (w *PipeWriter) Close() error {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closedByWriter {
		return nil
	}
	p.closedByWriter = true
	p.signal()
	return nil
}

// Close closes the reader side: subsequent writes fail with ErrPipeClosed.
// Idempotent.
func (r *PipeReader) Close() error {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closedByReader {
		return nil
	}
	p.closedByReader = true
	p.in = -1
	p.signal()
	return nil
}
