package inhttp

import (
	"bytes"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

var strCRLF = []byte("\r\n")
var strCRLFCRLF = []byte("\r\n\r\n")

// Version is the HTTP protocol version of the start line.
type Version struct {
	Major int
	Minor int
}

func (v Version) less(major, minor int) bool {
	if v.Major != major {
		return v.Major < major
	}
	return v.Minor < minor
}

func (v Version) atMost(major, minor int) bool {
	if v.Major != major {
		return v.Major < major
	}
	return v.Minor <= minor
}

// variant is the behavior a concrete message kind injects into the shared
// engine. Request is the only implementation today; a response variant
// would slot in here.
type variant interface {
	parseStartLine(line []byte) error
	overrideFraming(f BodyFraming) BodyFraming
}

// Message is the shared parsing engine and aggregate result: protocol
// version, ordered header list, derived scheme, the framing verdict and
// its body reader, and the forced-close flag.
//
// A Message belongs to exactly one in-flight parse on one connection; it
// is fully parsed during construction and never reused.
type Message struct {
	cfg  *Config
	src  Source
	peer net.Addr

	Version Version
	Headers HeaderList
	Scheme  string
	Framing BodyFraming
	Body    *Body

	mustClose bool
	limits    limits
}

// forceClose marks the connection as unusable for further messages. Once
// set it is never cleared.
func (m *Message) forceClose() {
	m.mustClose = true
}

// MustClose reports whether an untrustworthy framing signal poisoned the
// connection.
func (m *Message) MustClose() bool {
	return m.mustClose
}

// ShouldClose tells the connection handler whether to keep the connection
// after this message: forced closure wins, then the first Connection
// header, then the version default (close at or below HTTP/1.0).
func (m *Message) ShouldClose() bool {
	if m.mustClose {
		return true
	}
	if v, ok := m.Headers.Get("CONNECTION"); ok {
		switch strings.ToLower(strings.Trim(v, wsCutset)) {
		case "close":
			return true
		case "keep-alive":
			return false
		}
	}
	return m.Version.atMost(1, 0)
}

// getData pulls one chunk from the source into buf. first marks the very
// first read of a message, where clean exhaustion means "no next message"
// rather than a protocol fault.
func (m *Message) getData(buf *bytebufferpool.ByteBuffer, first bool) error {
	d, err := m.src.Read()
	if err != nil {
		if err == io.EOF {
			if first && buf.Len() == 0 {
				return NoNextMessageErr
			}
			return &UnexpectedEOFErr{Buffered: append([]byte(nil), buf.B...)}
		}
		return errors.WithMessage(err, "source read")
	}
	_, _ = buf.Write(d)
	return nil
}

// readLine accumulates source chunks in buf until a CRLF appears,
// re-checking the limit after every pull. It returns the line without its
// terminator and the residue already read past it.
func (m *Message) readLine(buf *bytebufferpool.ByteBuffer, limit int) (line, residue []byte, err error) {
	for {
		data := buf.B
		if idx := bytes.Index(data, strCRLF); idx >= 0 {
			if limit > 0 && idx > limit {
				return nil, nil, &LineTooLongErr{Size: idx, Limit: limit}
			}
			return data[:idx], data[idx+2:], nil
		}
		if limit > 0 && len(data)-2 > limit {
			return nil, nil, &LineTooLongErr{Size: len(data), Limit: limit}
		}
		if err = m.getData(buf, false); err != nil {
			return nil, nil, err
		}
	}
}

// readHeaderBlock accumulates until the blank line that ends the header
// section, bounded by the derived header-buffer ceiling. It returns the
// raw header block (terminators between fields, none trailing) and the
// residue past the blank line.
func (m *Message) readHeaderBlock(buf *bytebufferpool.ByteBuffer) (block, residue []byte, err error) {
	for {
		data := buf.B
		if len(data) >= 2 && data[0] == rChar && data[1] == nChar {
			// No headers at all.
			return nil, data[2:], nil
		}
		if idx := bytes.Index(data, strCRLFCRLF); idx >= 0 {
			return data[:idx], data[idx+4:], nil
		}
		if err = m.getData(buf, false); err != nil {
			return nil, nil, err
		}
		if buf.Len() > m.limits.headerBuffer {
			return nil, nil, HeaderBufferFullErr
		}
	}
}

// setBodyReader asks the resolver for the framing verdict, lets the
// variant override it, and constructs the matching reader. Called exactly
// once per message.
func (m *Message) setBodyReader(v variant) error {
	f, err := m.resolveFraming()
	if err != nil {
		return err
	}
	f = v.overrideFraming(f)
	m.Framing = f

	switch f.Kind {
	case FramingChunked:
		m.Body = newBody(newChunkedReader(m.src))
	case FramingFixedLength:
		m.Body = newBody(newLengthReader(m.src, f.Length))
	default:
		m.Body = newBody(newEOFReader(m.src))
	}

	m.cfg.Logger.Debug().
		Stringer("framing", f.Kind).
		Int64("length", f.Length).
		Bool("must_close", m.mustClose).
		Msg("body framing resolved")
	return nil
}
