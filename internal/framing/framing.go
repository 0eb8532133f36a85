// Package framing turns an upload request body into a lazy sequence of
// byte chunks, hiding whether the wire used a declared Content-Length
// or chunked transfer coding.
package framing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrAmbiguousFraming reports a request that declares both a
	// Content-Length and chunked transfer coding, or neither.
	ErrAmbiguousFraming = errors.New("invalid combination of Content-Length and chunked encoding")

	// ErrTruncatedBody reports a body that ended before delivering
	// everything the framing promised.
	ErrTruncatedBody = errors.New("request body truncated")

	// ErrMalformedChunkHeader reports a chunk size line that is not
	// valid hexadecimal.
	ErrMalformedChunkHeader = errors.New("malformed chunk size line")
)

// A Framer yields the request body one chunk at a time. Next returns
// io.EOF after the final chunk. The returned slice is only valid until
// the following Next call. Framers are not restartable.
type Framer interface {
	Next() ([]byte, error)
}

// FromRequest selects a Framer for an inbound request. Exactly one of
// {Content-Length header, chunked transfer coding} must be present;
// anything else is ErrAmbiguousFraming.
//
// net/http removes the chunked wire framing before handlers run, so
// chunked bodies arrive here as a plain stream and are framed by
// transport read (see NewStream). NewChunked holds the actual wire
// codec for raw, undecoded streams.
func FromRequest(r *http.Request, bufSize int) (Framer, error) {
	hasLength := r.Header.Get("Content-Length") != ""
	chunked := false
	for _, te := range r.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			chunked = true
		}
	}
	if hasLength == chunked {
		return nil, ErrAmbiguousFraming
	}
	if chunked {
		return NewStream(r.Body, bufSize), nil
	}
	return NewLength(r.Body, r.ContentLength, bufSize), nil
}

// NewLength frames a body whose total size is declared upfront. Chunks
// are at most bufSize bytes; the framer keeps reading until exactly
// declared bytes have been delivered, or fails with ErrTruncatedBody.
func NewLength(r io.Reader, declared int64, bufSize int) Framer {
	return &lengthFramer{r: r, remaining: declared, buf: make([]byte, bufSize)}
}

type lengthFramer struct {
	r         io.Reader
	remaining int64
	buf       []byte
}

func (f *lengthFramer) Next() ([]byte, error) {
	if f.remaining <= 0 {
		return nil, io.EOF
	}
	want := int64(len(f.buf))
	if f.remaining < want {
		want = f.remaining
	}
	n, err := io.ReadFull(f.r, f.buf[:want])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: got %d of %d remaining bytes", ErrTruncatedBody, n, f.remaining)
		}
		return nil, err
	}
	f.remaining -= int64(n)
	return f.buf[:n], nil
}

// NewChunked frames a raw chunked-transfer stream: each chunk is a hex
// size line, the payload, and a trailing empty line; a zero size ends
// the sequence. One wire chunk becomes one framer chunk.
func NewChunked(r io.Reader) Framer {
	return &chunkedFramer{br: bufio.NewReader(r)}
}

type chunkedFramer struct {
	br   *bufio.Reader
	done bool
	buf  []byte
}

func (f *chunkedFramer) Next() ([]byte, error) {
	if f.done {
		return nil, io.EOF
	}
	size, err := f.readSize()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		f.done = true
		// Trailing CRLF after the terminator, if the client sent one.
		_, _ = f.br.ReadString('\n')
		return nil, io.EOF
	}
	if uint64(cap(f.buf)) < size {
		f.buf = make([]byte, size)
	}
	f.buf = f.buf[:size]
	if n, err := io.ReadFull(f.br, f.buf); err != nil {
		return nil, fmt.Errorf("%w: got %d of %d chunk bytes", ErrTruncatedBody, n, size)
	}
	// Each chunk payload is terminated by an empty line.
	if _, err := f.br.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("%w: missing chunk terminator", ErrTruncatedBody)
	}
	return f.buf, nil
}

func (f *chunkedFramer) readSize() (uint64, error) {
	line, err := f.br.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("%w: missing chunk size line", ErrTruncatedBody)
	}
	line = strings.TrimRight(line, "\r\n")
	// Chunk extensions after ';' are permitted and ignored.
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	size, err := strconv.ParseUint(line, 16, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedChunkHeader, line)
	}
	return size, nil
}

// NewStream frames an already-decoded stream of unknown length, one
// chunk per transport read, until EOF. This is the handler-side framer
// for chunked uploads: the wire chunk boundaries survive net/http's
// decoding as individual reads.
func NewStream(r io.Reader, bufSize int) Framer {
	return &streamFramer{r: r, buf: make([]byte, bufSize)}
}

type streamFramer struct {
	r   io.Reader
	buf []byte
}

func (f *streamFramer) Next() ([]byte, error) {
	for {
		n, err := f.r.Read(f.buf)
		if n > 0 {
			return f.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}
