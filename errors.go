package inhttp

import (
	"fmt"

	"github.com/pkg/errors"
)

// NoNextMessageErr is returned by NewRequest when the source is exhausted
// before the first byte of a message: the peer closed a (possibly
// persistent) connection between requests. It is an iteration-stop signal,
// not a protocol fault.
var NoNextMessageErr = errors.New("no next message on connection")

var (
	TooManyHeaderFieldsErr      = errors.New("limit request headers fields")
	HeaderFieldTooLargeErr      = errors.New("limit request headers fields size")
	HeaderBufferFullErr         = errors.New("max buffer headers")
	ConflictingSchemeHeadersErr = errors.New("conflicting scheme headers")
)

// LineTooLongErr reports a request or proxy line exceeding the configured
// limit.
type LineTooLongErr struct {
	Size  int
	Limit int
}

func (e *LineTooLongErr) Error() string {
	return fmt.Sprintf("request line too long: %d > %d", e.Size, e.Limit)
}

// UnexpectedEOFErr reports source exhaustion in the middle of a message.
// Buffered holds whatever partial data had been accumulated, for
// diagnostics only.
type UnexpectedEOFErr struct {
	Buffered []byte
}

func (e *UnexpectedEOFErr) Error() string {
	return fmt.Sprintf("unexpected end of stream after %d bytes", len(e.Buffered))
}

// InvalidHeaderErr reports a malformed header field. Field names the
// offending field; for framing violations it is the normalized header name
// (CONTENT-LENGTH, TRANSFER-ENCODING).
type InvalidHeaderErr struct {
	Field string
}

func (e *InvalidHeaderErr) Error() string {
	return "invalid header: " + e.Field
}

type InvalidHeaderNameErr struct {
	Name string
}

func (e *InvalidHeaderNameErr) Error() string {
	return "invalid header name: " + e.Name
}

type InvalidRequestLineErr struct {
	Line string
}

func (e *InvalidRequestLineErr) Error() string {
	return "invalid request line: " + e.Line
}

type InvalidRequestMethodErr struct {
	Method string
}

func (e *InvalidRequestMethodErr) Error() string {
	return "invalid request method: " + e.Method
}

type InvalidHTTPVersionErr struct {
	Version string
}

func (e *InvalidHTTPVersionErr) Error() string {
	return "invalid HTTP version: " + e.Version
}

// UnsupportedTransferCodingErr reports a Transfer-Encoding value that is
// unknown or structurally unsafe to interpret. These are never guessed
// past; see resolveFraming.
type UnsupportedTransferCodingErr struct {
	Coding string
}

func (e *UnsupportedTransferCodingErr) Error() string {
	return "unsupported transfer coding: " + e.Coding
}

type InvalidProxyLineErr struct {
	Line string
}

func (e *InvalidProxyLineErr) Error() string {
	return "invalid proxy line: " + e.Line
}

// ForbiddenProxyErr reports a PROXY preamble from a peer outside the
// configured allow-list.
type ForbiddenProxyErr struct {
	Peer string
}

func (e *ForbiddenProxyErr) Error() string {
	return "proxy protocol forbidden for peer: " + e.Peer
}
