package stream

import (
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

// CodeUnit is a single decoded character unit: a UTF-16 code unit, matching
// the Java "char" this spec is modeled on. A code point outside the Basic
// Multilingual Plane decodes to a surrogate pair — two consecutive
// CodeUnits — which Decoder.Read never splits across two calls when dst
// has room for at least two units (spec.md §4.5).
type CodeUnit = uint16

// decoderBufSize is the size of Decoder's internal pending-bytes buffer.
const decoderBufSize = 4096

// Decoder wraps a byte source and decodes UTF-8 bytes into CodeUnits,
// handling partial multi-byte sequences and surrogate-pair leftovers across
// calls, per spec.md §4.5. The underlying charset table (here, UTF-8) is
// treated as an external collaborator per spec.md §1; Decoder's contract is
// entirely about the leftover/refill bookkeeping around it.
type Decoder struct {
	src io.Reader

	pending    []byte // undecoded bytes carried from the previous call
	eof        bool   // src has reported io.EOF
	hasLeft    bool   // one decoded CodeUnit is pending delivery
	leftover   CodeUnit
	ioBuf      []byte
}

// NewDecoder wraps src.
func NewDecoder(src io.Reader) *Decoder {
	return &Decoder{
		src:   src,
		ioBuf: make([]byte, decoderBufSize),
	}
}

// refill reads more bytes from src into pending. Returns io.EOF only once
// the source is exhausted; subsequent calls keep returning io.EOF without
// touching src again.
func (d *Decoder) refill() error {
	if d.eof {
		return io.EOF
	}
	n, err := d.src.Read(d.ioBuf)
	if n > 0 {
		d.pending = append(d.pending, d.ioBuf[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			d.eof = true
		}
		return err
	}
	return nil
}

// next decodes and returns exactly one CodeUnit: the cached leftover if one
// is pending, otherwise the first unit of a freshly decoded rune. When that
// rune requires a surrogate pair, the second unit is always cached as
// d.leftover before returning and is what the following call returns;
// Read decides whether both units go out in the same call. This is the
// leftover bookkeeping
// spec.md §4.5 requires ("single-char read is implemented by requesting two
// chars and remembering the second as a leftover").
func (d *Decoder) next() (CodeUnit, error) {
	if d.hasLeft {
		d.hasLeft = false
		return d.leftover, nil
	}

	for {
		if len(d.pending) == 0 {
			if d.eof {
				return 0, io.EOF
			}
			if err := d.refill(); err != nil && err != io.EOF {
				return 0, err
			}
			if len(d.pending) == 0 {
				if d.eof {
					return 0, io.EOF
				}
				continue
			}
		}

		r, size := utf8.DecodeRune(d.pending)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(d.pending) && !d.eof {
				// underflow: need more bytes to know if this is a complete
				// malformed sequence or just a truncated valid one
				if err := d.refill(); err != nil && err != io.EOF {
					return 0, err
				}
				continue
			}
			// malformed or unmappable: replace, consuming one byte
			r = utf8.RuneError
			if size == 0 {
				size = 1
			}
		}

		d.pending = d.pending[size:]

		units := utf16.Encode([]rune{r})
		if len(units) == 2 {
			d.hasLeft = true
			d.leftover = units[1]
		}
		return units[0], nil
	}
}

// Read decodes into dst, returning the number of CodeUnits produced. It
// loops on underflow (refilling from src), stops on overflow (dst full), and
// replaces malformed or unmappable byte sequences with U+FFFD, consuming the
// offending byte, per the fixed policy in spec.md §4.5. If only one slot is
// left when a surrogate pair is decoded and dst already holds other units,
// the pair is held back for the next call; a pair is split across calls
// only when dst has room for a single unit.
func (d *Decoder) Read(dst []CodeUnit) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	produced := 0
	for produced < len(dst) {
		wasLeft := d.hasLeft
		u, err := d.next()
		if err != nil {
			if produced > 0 {
				return produced, nil
			}
			return produced, err
		}
		if !wasLeft && d.hasLeft && produced > 0 && produced+1 == len(dst) {
			// no room for the pair's second unit: put the rune's bytes back
			r := utf16.DecodeRune(rune(u), rune(d.leftover))
			d.pending = append(utf8.AppendRune(nil, r), d.pending...)
			d.hasLeft = false
			return produced, nil
		}
		dst[produced] = u
		produced++
	}

	return produced, nil
}

// ReadUnit reads a single CodeUnit, which may be the second half of a
// surrogate pair produced (and cached) by a previous call requesting a full
// pair — spec.md §4.5, "single-char read is implemented by requesting two
// chars and remembering the second as a leftover".
func (d *Decoder) ReadUnit() (CodeUnit, error) {
	return d.next()
}

// decodeUTF16 decodes a run of UTF-16 code units back into runes, as used by
// LineReader to materialize a scanned span into a string.
func decodeUTF16(units []CodeUnit) []rune {
	return utf16.Decode(units)
}

// Close releases resources, closing the underlying source if it implements
// io.Closer.
func (d *Decoder) Close() error {
	if c, ok := d.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
