// Package line rebuilds newline-delimited logical lines from raw socket reads.
//
// Reads may split a line anywhere, including inside a multi-byte UTF-8
// sequence, and may be padded with NUL bytes. Joining every emitted line with
// Delimiter and appending Pending reproduces the received stream minus NULs.
package line

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/econctl/internal/protocol"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	Delimiter         = '\n'
	DefaultBufferSize = 2048
)

var ErrInvalidBufferSize = errors.New("line: buffer size must be positive")

// Reassembler owns the scratch buffer and carry-over state for one connection.
// It is not safe for concurrent use; the reader goroutine owns it.
type Reassembler struct {
	scratch []byte
	decoder transform.Transformer
	carry   []byte
	pending string
}

func NewReassembler(size int) (*Reassembler, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBufferSize, size)
	}
	return &Reassembler{
		scratch: make([]byte, size),
		decoder: unicode.UTF8.NewDecoder(),
	}, nil
}

// Size is the fixed scratch buffer size, which also bounds one logical line.
func (r *Reassembler) Size() int {
	return len(r.scratch)
}

// Pending returns the unterminated trailing fragment.
func (r *Reassembler) Pending() string {
	return r.pending
}

func (r *Reassembler) Reset() {
	r.pending = ""
	r.carry = r.carry[:0]
	r.decoder.Reset()
}

// Feed consumes one raw chunk and returns the lines it completed, in order.
// No line, complete or pending, may exceed the buffer size. Lines completed
// before an overflowing one are still returned alongside ErrBufferExhausted.
func (r *Reassembler) Feed(chunk []byte) ([]string, error) {
	src := make([]byte, 0, len(r.carry)+len(chunk))
	src = append(src, r.carry...)
	for _, b := range chunk {
		if b != 0 {
			src = append(src, b)
		}
	}

	text := r.pending + r.decode(src)
	parts := strings.Split(text, string(Delimiter))
	r.pending = parts[len(parts)-1]
	lines := parts[:len(parts)-1]

	for i, l := range lines {
		if len(l) > len(r.scratch) {
			return lines[:i], fmt.Errorf("%w: %d byte line (buffer=%d)", protocol.ErrBufferExhausted, len(l), len(r.scratch))
		}
	}
	if len(r.pending) > len(r.scratch) {
		return lines, fmt.Errorf("%w: %d bytes without delimiter (buffer=%d)", protocol.ErrBufferExhausted, len(r.pending), len(r.scratch))
	}
	return lines, nil
}

// ReadFrom performs one read into the scratch buffer and feeds the result.
// It returns the completed lines, the byte count read and a classified
// error: ErrTimeout for a read that found no data, ErrDisconnectedByServer
// for a zero-byte read or EOF. Lines are valid even when err is non-nil.
func (r *Reassembler) ReadFrom(src io.Reader) ([]string, int, error) {
	n, err := src.Read(r.scratch)
	var lines []string
	if n > 0 {
		var feedErr error
		lines, feedErr = r.Feed(r.scratch[:n])
		if feedErr != nil {
			return lines, n, feedErr
		}
	}
	if err != nil {
		return lines, n, protocol.ClassifyReadError(err)
	}
	if n == 0 {
		return nil, 0, protocol.ErrDisconnectedByServer
	}
	return lines, n, nil
}

// decode turns bytes into text, replacing invalid sequences with U+FFFD and
// carrying an incomplete trailing rune into the next call.
func (r *Reassembler) decode(src []byte) string {
	if len(src) == 0 {
		r.carry = r.carry[:0]
		return ""
	}
	dst := make([]byte, len(src)*utf8.UTFMax)
	nDst, nSrc, err := r.decoder.Transform(dst, src, false)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		r.carry = r.carry[:0]
		return string(bytes.ToValidUTF8(src, []byte(string(utf8.RuneError))))
	}
	r.carry = append(r.carry[:0], src[nSrc:]...)
	return string(dst[:nDst])
}
