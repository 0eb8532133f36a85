package framing_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"putbox/internal/framing"
)

func drain(t *testing.T, f framing.Framer) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for {
		c, err := f.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		cp := make([]byte, len(c))
		copy(cp, c)
		chunks = append(chunks, cp)
	}
}

func TestLengthDeliversExactly(t *testing.T) {
	f := framing.NewLength(strings.NewReader("hello world"), 11, 4)

	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("hell"), []byte("o wo"), []byte("rld")}, chunks)
}

func TestLengthStopsAtDeclared(t *testing.T) {
	// Extra bytes beyond the declared length are never read.
	f := framing.NewLength(strings.NewReader("12345TRAILING"), 5, 64)

	chunks, err := drain(t, f)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "12345", string(chunks[0]))
}

func TestLengthTruncatedBody(t *testing.T) {
	f := framing.NewLength(strings.NewReader("abc"), 10, 64)

	_, err := drain(t, f)
	assert.ErrorIs(t, err, framing.ErrTruncatedBody)
}

func TestChunkedWireRoundTrip(t *testing.T) {
	wire := "3\r\nfoo\r\n3\r\nbar\r\n0\r\n\r\n"
	f := framing.NewChunked(strings.NewReader(wire))

	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("foo"), []byte("bar")}, chunks)
}

func TestChunkedBareNewlines(t *testing.T) {
	wire := "5\nhello\n0\n"
	f := framing.NewChunked(strings.NewReader(wire))

	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("hello")}, chunks)
}

func TestChunkedIgnoresExtensions(t *testing.T) {
	wire := "3;name=val\r\nfoo\r\n0\r\n\r\n"
	f := framing.NewChunked(strings.NewReader(wire))

	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("foo")}, chunks)
}

func TestChunkedMalformedSizeLine(t *testing.T) {
	wire := "zz\r\nfoo\r\n"
	f := framing.NewChunked(strings.NewReader(wire))

	_, err := drain(t, f)
	assert.ErrorIs(t, err, framing.ErrMalformedChunkHeader)
}

func TestChunkedTruncatedPayload(t *testing.T) {
	wire := "10\r\nshort"
	f := framing.NewChunked(strings.NewReader(wire))

	_, err := drain(t, f)
	assert.ErrorIs(t, err, framing.ErrTruncatedBody)
}

func TestChunkedMissingTerminator(t *testing.T) {
	wire := "3\r\nfoo"
	f := framing.NewChunked(strings.NewReader(wire))

	_, err := drain(t, f)
	assert.ErrorIs(t, err, framing.ErrTruncatedBody)
}

func TestStreamFramesPerRead(t *testing.T) {
	f := framing.NewStream(strings.NewReader("some body bytes"), 64)

	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, "some body bytes", string(joinChunks(chunks)))
}

func TestFromRequestContentLength(t *testing.T) {
	r := httptest.NewRequest("PUT", "/f", strings.NewReader("hello"))
	r.Header.Set("Content-Length", "5")
	r.ContentLength = 5

	f, err := framing.FromRequest(r, 64)
	require.NoError(t, err)
	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(joinChunks(chunks)))
}

func TestFromRequestChunked(t *testing.T) {
	r := httptest.NewRequest("PUT", "/f", strings.NewReader("already decoded"))
	r.TransferEncoding = []string{"chunked"}
	r.ContentLength = -1

	f, err := framing.FromRequest(r, 64)
	require.NoError(t, err)
	chunks, err := drain(t, f)
	require.NoError(t, err)
	assert.Equal(t, "already decoded", string(joinChunks(chunks)))
}

func TestFromRequestAmbiguous(t *testing.T) {
	// Neither indicator present.
	r := httptest.NewRequest("PUT", "/f", strings.NewReader(""))
	r.ContentLength = 0
	_, err := framing.FromRequest(r, 64)
	assert.ErrorIs(t, err, framing.ErrAmbiguousFraming)

	// Both present.
	r = httptest.NewRequest("PUT", "/f", strings.NewReader("x"))
	r.Header.Set("Content-Length", "1")
	r.TransferEncoding = []string{"chunked"}
	_, err = framing.FromRequest(r, 64)
	assert.ErrorIs(t, err, framing.ErrAmbiguousFraming)
}

func joinChunks(chunks [][]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
