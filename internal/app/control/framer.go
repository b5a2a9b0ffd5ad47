// Package control implements the line-oriented remote-control protocol.
package control

import (
	"bytes"
	"strings"
)

// LineFramer splits a byte stream into newline-terminated lines regardless
// of how the stream is fragmented. One framer belongs to one connection.
type LineFramer struct {
	buf        []byte
	start      int  // First byte of the pending line
	scan       int  // Next byte to examine for a terminator
	max        int  // Maximum line length, 0 = unlimited
	discarding bool // Dropping the rest of an overlong line
}

// NewLineFramer creates a framer. maxLine <= 0 disables the length limit.
func NewLineFramer(maxLine int) *LineFramer {
	if maxLine < 0 {
		maxLine = 0
	}
	return &LineFramer{max: maxLine}
}

// Feed appends a fragment to the buffer.
func (f *LineFramer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

// Next returns the next complete line without its terminator and with a
// trailing carriage return removed. ok is false when no complete line is
// buffered. A line longer than the limit is dropped and reported once
// with ErrLineTooLong.
func (f *LineFramer) Next() (line string, ok bool, err error) {
	if i := bytes.IndexByte(f.buf[f.scan:], '\n'); i >= 0 {
		end := f.scan + i
		line := strings.TrimSuffix(string(f.buf[f.start:end]), "\r")
		f.start = end + 1
		f.scan = f.start

		if f.discarding || (f.max > 0 && len(line) > f.max) {
			f.discarding = false
			return "", true, protocolError(ErrLineTooLong)
		}
		return line, true, nil
	}

	// The limit excludes the terminator, so leave room for a pending \r.
	f.scan = len(f.buf)
	if f.discarding || (f.max > 0 && f.scan-f.start > f.max+1) {
		f.discarding = true
		f.buf = f.buf[:0]
		f.start, f.scan = 0, 0
		return "", false, nil
	}
	f.compact()
	return "", false, nil
}

// Buffered returns the number of bytes of the unterminated remainder.
func (f *LineFramer) Buffered() int {
	return len(f.buf) - f.start
}

// Reset discards all buffered input.
func (f *LineFramer) Reset() {
	f.buf = f.buf[:0]
	f.start, f.scan = 0, 0
	f.discarding = false
}

func (f *LineFramer) compact() {
	if f.start == 0 {
		return
	}
	n := copy(f.buf, f.buf[f.start:])
	f.buf = f.buf[:n]
	f.scan -= f.start
	f.start = 0
}
