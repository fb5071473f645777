package stream

import (
	"io"
	"strings"
	"sync"
)

const (
	cr CodeUnit = '\r'
	lf CodeUnit = '\n'
)

// LineReader extracts CRLF-normalizing lines from a CharReader, per
// spec.md §4.2. Any of "\n", "\r" or "\r\n" terminates a line; the
// terminator itself is not included in the returned string. EOF at the end
// of a non-empty trailing line also terminates it.
type LineReader struct {
	mu     sync.Mutex
	src    *CharReader
	skipLF bool // previous read ended on '\r': discard one leading '\n'
}

// NewLineReader wraps src.
func NewLineReader(src *CharReader) *LineReader {
	return &LineReader{src: src}
}

// ReadLine returns the next line and true, or ("", false, nil) at a clean
// EOF with no pending partial line.
func (l *LineReader) ReadLine() (string, bool, error) {
	var terminated bool
	return l.readLine(false, &terminated)
}

// readLine is the internal primitive shared with a line-numbering layer:
// ignoreLF suppresses the persistent skip_lf handling (used when a caller
// already consumed the '\r' itself), and *terminator reports whether the
// line ended on an actual terminator (true) or on EOF (false) — only
// meaningful when a line was returned.
func (l *LineReader) readLine(ignoreLF bool, terminator *bool) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	*terminator = false

	if l.skipLF {
		skip := l.skipLF
		l.skipLF = false
		if skip && !ignoreLF {
			if err := l.src.EnsureData(); err == nil {
				if buf := l.src.Peek(); len(buf) > 0 && buf[0] == lf {
					l.src.Advance(1)
				}
			}
		}
	}

	var builder strings.Builder
	haveAny := false

	for {
		if err := l.src.EnsureData(); err != nil {
			if err == io.EOF {
				if haveAny {
					return builder.String(), true, nil
				}
				return "", false, nil
			}
			return "", false, err
		}

		buf := l.src.Peek()
		haveAny = true

		idx := -1
		for i, u := range buf {
			if u == lf || u == cr {
				idx = i
				break
			}
		}

		if idx < 0 {
			builder.WriteString(unitsToString(buf))
			l.src.Advance(len(buf))
			continue
		}

		builder.WriteString(unitsToString(buf[:idx]))
		term := buf[idx]
		l.src.Advance(idx + 1)
		*terminator = true

		if term == cr {
			// Only consume a following '\n' if it is already sitting in the
			// buffer; never force a blocking fill just to check, since a
			// complete line is ready to return either way. If the buffer
			// happens to be empty here, skipLF defers the check to the next
			// readLine call instead (spec.md §4.2, "CRLF handling across
			// buffer boundaries").
			if rest := l.src.Peek(); len(rest) > 0 && rest[0] == lf {
				l.src.Advance(1)
			} else {
				l.skipLF = true
			}
		}

		return builder.String(), true, nil
	}
}

// unitsToString decodes a run of UTF-16 code units back to a UTF-8 string.
// Lone/unpaired surrogates decode to the replacement character.
func unitsToString(units []CodeUnit) string {
	if len(units) == 0 {
		return ""
	}
	runes := decodeUTF16(units)
	return string(runes)
}
