package inhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tolerantConfig() *Config {
	cfg := DefaultConfig()
	cfg.TolerateDangerousFraming = true
	return cfg
}

func TestContentLengthFraming(t *testing.T) {
	data := "POST /up HTTP/1.1\r\nContent-Length: 10\r\n\r\n0123456789"
	req, _, err := parseOne(DefaultConfig(), data, 6)
	require.NoError(t, err)
	assert.Equal(t, fixedLength(10), req.Framing)
	assert.False(t, req.MustClose())
}

func TestNoFramingSignalIsZeroLength(t *testing.T) {
	// Never read-until-close: that would swallow a pipelined successor.
	req, _, err := parseOne(DefaultConfig(), "GET / HTTP/1.1\r\nHost: x\r\n\r\n", 4)
	require.NoError(t, err)
	assert.Equal(t, fixedLength(0), req.Framing)

	n, err := req.Body.Discard()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkedFraming(t *testing.T) {
	data := "POST /up HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n"
	req, _, err := parseOne(DefaultConfig(), data, 8)
	require.NoError(t, err)
	assert.Equal(t, FramingChunked, req.Framing.Kind)
	assert.False(t, req.MustClose())
}

func TestDuplicateContentLengthAlwaysFails(t *testing.T) {
	for _, cfg := range []*Config{DefaultConfig(), tolerantConfig()} {
		for _, second := range []string{"10", "11"} {
			data := "POST / HTTP/1.1\r\nContent-Length: 10\r\nContent-Length: " + second + "\r\n\r\n"
			_, _, err := parseOne(cfg, data, 16)
			var e *InvalidHeaderErr
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "CONTENT-LENGTH", e.Field)
		}
	}
}

func TestChunkedPlusContentLength(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nContent-Length: 5\r\n\r\n0\r\n\r\n"

	_, _, err := parseOne(DefaultConfig(), data, 16)
	var e *InvalidHeaderErr
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "CONTENT-LENGTH", e.Field)

	// Tolerance lets chunked win, but the connection is poisoned.
	req, _, err := parseOne(tolerantConfig(), data, 16)
	require.NoError(t, err)
	assert.Equal(t, FramingChunked, req.Framing.Kind)
	assert.True(t, req.MustClose())
	assert.True(t, req.ShouldClose())
}

func TestChunkedOnHTTP10(t *testing.T) {
	data := "POST / HTTP/1.0\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n"

	_, _, err := parseOne(DefaultConfig(), data, 16)
	var e *InvalidHeaderErr
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "TRANSFER-ENCODING", e.Field)

	req, _, err := parseOne(tolerantConfig(), data, 16)
	require.NoError(t, err)
	assert.Equal(t, FramingChunked, req.Framing.Kind)
	assert.True(t, req.MustClose())
}

func TestStackedChunkingNeverValid(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nTransfer-Encoding: chunked\r\n\r\n"
	for _, cfg := range []*Config{DefaultConfig(), tolerantConfig()} {
		_, _, err := parseOne(cfg, data, 16)
		var e *InvalidHeaderErr
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "TRANSFER-ENCODING", e.Field)
	}
}

func TestIdentityAfterChunkedFails(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nTransfer-Encoding: identity\r\n\r\n"
	_, _, err := parseOne(DefaultConfig(), data, 16)
	var e *InvalidHeaderErr
	require.ErrorAs(t, err, &e)
}

func TestIdentityAloneIsNoop(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding: identity\r\nContent-Length: 3\r\n\r\nabc"
	req, _, err := parseOne(DefaultConfig(), data, 16)
	require.NoError(t, err)
	assert.Equal(t, fixedLength(3), req.Framing)
}

func TestEmptyTransferEncoding(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding:\r\n\r\n"

	var e *UnsupportedTransferCodingErr
	_, _, err := parseOne(DefaultConfig(), data, 16)
	require.ErrorAs(t, err, &e)

	// Tolerated, but the connection still must close.
	req, _, err := parseOne(tolerantConfig(), data, 16)
	require.NoError(t, err)
	assert.True(t, req.MustClose())
	assert.Equal(t, fixedLength(0), req.Framing)
}

func TestUnknownTransferCodingNeverTolerated(t *testing.T) {
	for _, value := range []string{"gzip", "gzip, chunked", "chunked, gzip", "CHUNKED;ext=1"} {
		data := "POST / HTTP/1.1\r\nTransfer-Encoding: " + value + "\r\n\r\n"
		for _, cfg := range []*Config{DefaultConfig(), tolerantConfig()} {
			_, _, err := parseOne(cfg, data, 16)
			var e *UnsupportedTransferCodingErr
			require.ErrorAs(t, err, &e, "value %q", value)
		}
	}
}

func TestTransferEncodingCaseInsensitive(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding: ChUnKeD\r\n\r\n0\r\n\r\n"
	req, _, err := parseOne(DefaultConfig(), data, 16)
	require.NoError(t, err)
	assert.Equal(t, FramingChunked, req.Framing.Kind)
}

func TestBadContentLengthValues(t *testing.T) {
	for _, value := range []string{"-1", "1x", "0x10", "+5", "5 5", ""} {
		data := "POST / HTTP/1.1\r\nContent-Length:" + value + "\r\n\r\n"
		_, _, err := parseOne(DefaultConfig(), data, 16)
		var e *InvalidHeaderErr
		require.ErrorAs(t, err, &e, "value %q", value)
		assert.Equal(t, "CONTENT-LENGTH", e.Field)
	}
}

func TestShouldClose(t *testing.T) {
	cases := []struct {
		data string
		want bool
	}{
		{"GET / HTTP/1.1\r\n\r\n", false},
		{"GET / HTTP/1.0\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nConnection: close\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nConnection:  Close \r\n\r\n", true},
		{"GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n", false},
		{"GET / HTTP/1.0\r\nConnection: upgrade\r\n\r\n", true},
		{"GET / HTTP/2.0\r\n\r\n", false},
	}
	for _, tc := range cases {
		req, _, err := parseOne(DefaultConfig(), tc.data, 16)
		require.NoError(t, err, "data %q", tc.data)
		assert.Equal(t, tc.want, req.ShouldClose(), "data %q", tc.data)
	}
}
