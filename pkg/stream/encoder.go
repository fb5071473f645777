package stream

import (
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

// Encoder wraps a byte sink and encodes CodeUnits into UTF-8 bytes,
// combining a pending leading surrogate with the next call's first unit to
// complete the pair, per spec.md §4.5.
type Encoder struct {
	dst io.Writer

	hasLeft  bool
	leftover CodeUnit

	scratch [utf8.UTFMax]byte
}

// NewEncoder wraps dst.
func NewEncoder(dst io.Writer) *Encoder {
	return &Encoder{dst: dst}
}

// Write encodes src and writes the resulting UTF-8 bytes to dst. If src ends
// mid-surrogate-pair, the leading unit is held back as a leftover and
// combined with the next call's first unit. The full length of src is
// reported consumed on success, regardless of whether its last unit was
// buffered as a leftover.
func (e *Encoder) Write(src []CodeUnit) (int, error) {
	units := src
	if e.hasLeft {
		units = make([]CodeUnit, 0, len(src)+1)
		units = append(units, e.leftover)
		units = append(units, src...)
		e.hasLeft = false
	}

	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if i+1 >= len(units) {
				e.hasLeft = true
				e.leftover = units[i]
				break
			}
			decoded := utf16.DecodeRune(r, rune(units[i+1]))
			if err := e.writeRune(decoded); err != nil {
				return len(src), err
			}
			i++
			continue
		}
		if err := e.writeRune(r); err != nil {
			return len(src), err
		}
	}

	return len(src), nil
}

func (e *Encoder) writeRune(r rune) error {
	n := utf8.EncodeRune(e.scratch[:], r)
	_, err := e.dst.Write(e.scratch[:n])
	return err
}

// Flush completes any pending leftover by emitting it as the Unicode
// replacement character, since a lone surrogate can never form a valid pair
// on its own.
func (e *Encoder) Flush() error {
	if !e.hasLeft {
		return nil
	}
	e.hasLeft = false
	return e.writeRune(utf8.RuneError)
}

// Close flushes any pending leftover, then flushes and closes the
// underlying sink if it supports those operations.
func (e *Encoder) Close() error {
	if err := e.Flush(); err != nil {
		return err
	}
	if f, ok := e.dst.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	if c, ok := e.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
