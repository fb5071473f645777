package stream

import (
	"io"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is used by NewReader when no explicit size is given.
const DefaultBufferSize = 8192

// noMark is the sentinel value of mark when no mark is currently set.
const noMark = -1

// Availabler is implemented by sources that can report how many bytes are
// immediately available without blocking. Reader uses it to decide whether a
// bulk read may keep draining the underlying source without risking a second
// block (spec.md §4.1, "loop policy for bulk read"). Sources that don't
// implement it are always treated as having nothing further available.
type Availabler interface {
	Available() int
}

// Reader is a buffering io.ReadCloser with mark/reset support, modeled on
// spec.md §4.1. It wraps an underlying io.Reader and is safe for use by a
// single reading goroutine at a time; Close may be called concurrently with
// an in-flight read.
type Reader struct {
	src io.Reader

	// buf is swapped to nil on Close via CompareAndSwap, independent of mu,
	// so that a concurrent Close can be observed by an in-progress grow
	// (spec.md §4.1, "Growth replaces the buffer pointer via compare-and-set
	// against the old buffer; failure of the CAS indicates a concurrent
	// close").
	buf atomic.Pointer[[]byte]

	mu        sync.Mutex
	pos       int
	count     int
	mark      int
	markLimit int
}

// NewReader wraps src with a buffer of DefaultBufferSize.
func NewReader(src io.Reader) *Reader {
	r, _ := NewReaderSize(src, DefaultBufferSize)
	return r
}

// NewReaderSize wraps src with a buffer of the given size.
func NewReaderSize(src io.Reader, size int) (*Reader, error) {
	if size <= 0 {
		return nil, ErrBufferSize
	}
	r := &Reader{
		src:  src,
		mark: noMark,
	}
	buf := make([]byte, size)
	r.buf.Store(&buf)
	return r, nil
}

func (r *Reader) getBuf() ([]byte, error) {
	p := r.buf.Load()
	if p == nil {
		return nil, ErrStreamClosed
	}
	return *p, nil
}

// fill refills the internal buffer per the policy in spec.md §4.1. Caller
// must hold mu. Returns the number of bytes read by the underlying source
// (which may be 0) and any error (including io.EOF).
func (r *Reader) fill() (int, error) {
	bufPtr := r.buf.Load()
	if bufPtr == nil {
		return 0, ErrStreamClosed
	}
	buf := *bufPtr

	if r.mark == noMark {
		r.pos = 0
	} else if r.pos >= len(buf) {
		switch {
		case r.mark > 0:
			// shift [mark, pos) down to 0
			n := copy(buf, buf[r.mark:r.pos])
			r.pos = n
			r.mark = 0
		case len(buf) >= r.markLimit:
			// read-ahead limit exceeded: the mark may be legally forgotten
			r.mark = noMark
			r.pos = 0
		default:
			// grow the buffer, doubling, capped at markLimit
			newSize := len(buf) * 2
			if newSize == 0 {
				newSize = DefaultBufferSize
			}
			if newSize > r.markLimit {
				newSize = r.markLimit
			}
			grown := make([]byte, newSize)
			copy(grown, buf)
			if !r.buf.CompareAndSwap(bufPtr, &grown) {
				return 0, ErrStreamClosed
			}
			buf = grown
		}
	}

	r.count = r.pos
	n, err := r.src.Read(buf[r.pos:])
	if n > 0 {
		r.count = r.pos + n
	}
	return n, err
}

// ReadByte reads a single byte, refilling as needed.
func (r *Reader) ReadByte() (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.pos >= r.count {
		if _, err := r.fill(); err != nil && r.pos >= r.count {
			return 0, err
		}
	}

	buf, err := r.getBuf()
	if err != nil {
		return 0, err
	}
	b := buf[r.pos]
	r.pos++
	return b, nil
}

// Read implements io.Reader. A request of length 0 returns (0, nil)
// immediately without touching the underlying source or buffer state.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= r.count {
		buf, err := r.getBuf()
		if err != nil {
			return 0, err
		}

		// Bulk-read optimization: bypass the internal buffer entirely when
		// the request is at least as large as capacity and no mark is set.
		if len(p) >= len(buf) && r.mark == noMark {
			n, err := r.src.Read(p)
			for n < len(p) && err == nil {
				if av, ok := r.src.(Availabler); ok && av.Available() > 0 {
					var extra int
					extra, err = r.src.Read(p[n:])
					n += extra
					continue
				}
				break
			}
			return n, err
		}

		if _, err := r.fill(); err != nil && r.pos >= r.count {
			return 0, err
		}
	}

	buf, err := r.getBuf()
	if err != nil {
		return 0, err
	}

	n := copy(p, buf[r.pos:r.count])
	r.pos += n
	return n, nil
}

// Available returns the number of bytes that can be read without blocking.
func (r *Reader) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count - r.pos
}

// Mark saves the current position. Up to readlimit bytes may be consumed
// past it before the implementation is permitted to forget it.
func (r *Reader) Mark(readlimit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mark = r.pos
	r.markLimit = readlimit
}

// Reset restores the position saved by the most recent Mark, failing with
// ErrInvalidMark if no mark is set, it has been discarded per the fill
// policy, or more than its readlimit bytes have been consumed past it.
func (r *Reader) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mark == noMark || r.pos-r.mark > r.markLimit {
		return ErrInvalidMark
	}
	r.pos = r.mark
	return nil
}

// Skip discards up to n bytes, blocking on underlying reads as necessary.
func (r *Reader) Skip(n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var skipped int64
	for skipped < n {
		if r.pos >= r.count {
			if _, err := r.fill(); err != nil && r.pos >= r.count {
				if err == io.EOF {
					break
				}
				return skipped, err
			}
		}
		avail := int64(r.count - r.pos)
		want := n - skipped
		if avail > want {
			avail = want
		}
		r.pos += int(avail)
		skipped += avail
	}
	return skipped, nil
}

// Close replaces the buffer pointer with nil and, on success, closes the
// underlying source. Concurrent and repeated calls are safe: only the first
// caller to win the CAS race delegates to the underlying Close.
func (r *Reader) Close() error {
	for {
		old := r.buf.Load()
		if old == nil {
			return nil
		}
		if r.buf.CompareAndSwap(old, nil) {
			break
		}
	}
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
