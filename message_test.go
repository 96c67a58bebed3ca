package inhttp

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyproto/randomstring"
)

func TestNoNextMessageOnCleanClose(t *testing.T) {
	src := NewSource(strings.NewReader(""))
	_, err := NewRequest(DefaultConfig(), src, loopback, 1)
	require.ErrorIs(t, err, NoNextMessageErr)
}

func TestEOFMidRequestLine(t *testing.T) {
	_, _, err := parseOne(DefaultConfig(), "GET / HTTP/1.1", 4)
	var e *UnexpectedEOFErr
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "GET / HTTP/1.1", string(e.Buffered))
}

func TestEOFMidHeaders(t *testing.T) {
	_, _, err := parseOne(DefaultConfig(), "GET / HTTP/1.1\r\nHost: x\r\n", 4)
	var e *UnexpectedEOFErr
	require.ErrorAs(t, err, &e)
}

func TestRequestLineTooLong(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LimitRequestLine = 32
	data := "GET /" + randomstring.HumanFriendlyString(100) + " HTTP/1.1\r\n\r\n"
	_, _, err := parseOne(cfg, data, 8)
	var e *LineTooLongErr
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 32, e.Limit)
	assert.Greater(t, e.Size, e.Limit)
}

func TestHeaderBufferCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LimitRequestFields = 2
	cfg.LimitRequestFieldSize = 8
	// Ceiling is fields*(size+2)+4 = 24 bytes; never deliver the blank
	// line so accumulation alone has to trip the limit.
	data := "GET / HTTP/1.1\r\nX-A: " + strings.Repeat("a", 64)
	_, _, err := parseOne(cfg, data+"\r\nX-B: b\r\n\r\n", 8)
	require.ErrorIs(t, err, HeaderBufferFullErr)
}

func TestPipelinedRequests(t *testing.T) {
	data := "POST /one HTTP/1.1\r\nContent-Length: 5\r\n\r\nhelloGET /two HTTP/1.1\r\nHost: x\r\n\r\n"
	src := chunkedSource(data, 7)

	req1, err := NewRequest(DefaultConfig(), src, loopback, 1)
	require.NoError(t, err)
	assert.Equal(t, "/one", req1.URI.Path)

	body, err := io.ReadAll(req1.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	require.False(t, req1.ShouldClose())

	req2, err := NewRequest(DefaultConfig(), src, loopback, 2)
	require.NoError(t, err)
	assert.Equal(t, "/two", req2.URI.Path)
	assert.Equal(t, 2, req2.ReqNumber)

	_, err = NewRequest(DefaultConfig(), src, loopback, 3)
	require.ErrorIs(t, err, NoNextMessageErr)
}

func TestPipelinedAfterChunkedBody(t *testing.T) {
	data := "POST /c HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n" +
		"GET /next HTTP/1.1\r\n\r\n"
	src := chunkedSource(data, 5)

	req1, err := NewRequest(DefaultConfig(), src, loopback, 1)
	require.NoError(t, err)

	body, err := io.ReadAll(req1.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))

	req2, err := NewRequest(DefaultConfig(), src, loopback, 2)
	require.NoError(t, err)
	assert.Equal(t, "/next", req2.URI.Path)
}

func TestByteAtATimeDelivery(t *testing.T) {
	data := "PUT /slow?x=1 HTTP/1.1\r\nHost: example.com\r\nContent-Length: 3\r\n\r\nxyz"
	req, _, err := parseOne(DefaultConfig(), data, 1)
	require.NoError(t, err)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "/slow", req.URI.Path)
	assert.Equal(t, "x=1", req.URI.Query)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(body))
}

// Re-serializing the parsed pieces and parsing again must reproduce the
// same structure (folding whitespace excluded by construction).
func TestRoundTrip(t *testing.T) {
	data := "POST /api/v1?k=v#top HTTP/1.1\r\nHost: example.com\r\nX-Token: abc\r\nX-Token: def\r\nContent-Length: 2\r\n\r\nok"
	req, _, err := parseOne(DefaultConfig(), data, 11)
	require.NoError(t, err)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/%d.%d\r\n", req.Method, req.URI.Raw, req.Version.Major, req.Version.Minor)
	for _, f := range req.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", f.Name, f.Value)
	}
	b.WriteString("\r\nok")

	again, _, err := parseOne(DefaultConfig(), b.String(), 64)
	require.NoError(t, err)
	assert.Equal(t, req.Method, again.Method)
	assert.Equal(t, req.URI, again.URI)
	assert.Equal(t, req.Version, again.Version)
	assert.Equal(t, req.Headers, again.Headers)
	assert.Equal(t, req.Framing, again.Framing)
}

func TestStatsSnapshotMoves(t *testing.T) {
	before := Snapshot()
	_, _, err := parseOne(DefaultConfig(), "GET / HTTP/1.1\r\n\r\n", 4)
	require.NoError(t, err)
	_, _, _ = parseOne(DefaultConfig(), "BAD\r\n\r\n", 4)
	after := Snapshot()
	assert.GreaterOrEqual(t, after.Requests, before.Requests+1)
	assert.GreaterOrEqual(t, after.ParseErrors, before.ParseErrors+1)
}
