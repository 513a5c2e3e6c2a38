package irc

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// MaxLineLength bounds a single pending line. IRC lines are limited to 512
// bytes (8191 with tags); anything past this is garbage and is dropped.
const MaxLineLength = 16 * 1024

// Framer turns a raw byte stream into complete lines. Bytes after the last
// terminator are kept and prefixed to the next Feed.
type Framer struct {
	pending  []byte
	overflow bool
	dropped  int
}

// NewFramer creates an empty framer
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends data to the pending buffer and returns every line whose "\n"
// terminator has been seen, in order. A trailing "\r" is stripped and empty
// lines are skipped.
func (f *Framer) Feed(data []byte) []string {
	var lines []string

	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			f.appendPending(data)
			break
		}

		if f.overflow {
			// Tail of an oversized line, discard through the terminator
			f.overflow = false
			f.pending = f.pending[:0]
		} else {
			f.appendPending(data[:i])
			if !f.overflow {
				if line := decodeLine(f.pending); line != "" {
					lines = append(lines, line)
				}
			}
			f.overflow = false
			f.pending = f.pending[:0]
		}
		data = data[i+1:]
	}

	return lines
}

// Flush discards any unterminated fragment and returns its length in bytes.
// Called at stream end; a legal protocol line is always terminated.
func (f *Framer) Flush() int {
	n := len(f.pending)
	f.pending = f.pending[:0]
	f.overflow = false
	return n
}

// Pending returns the number of bytes held for the next Feed
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Dropped returns how many oversized lines were discarded
func (f *Framer) Dropped() int {
	return f.dropped
}

func (f *Framer) appendPending(b []byte) {
	if f.overflow {
		return
	}
	if len(f.pending)+len(b) > MaxLineLength {
		f.overflow = true
		f.dropped++
		f.pending = f.pending[:0]
		return
	}
	f.pending = append(f.pending, b...)
}

// decodeLine strips the trailing CR and decodes the bytes. Invalid UTF-8 is
// decoded as ISO-8859-1, which maps every byte to a rune and cannot fail.
func decodeLine(b []byte) string {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("�")))
	}
	return string(decoded)
}
