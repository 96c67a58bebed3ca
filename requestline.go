package inhttp

import (
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// Request is an inbound HTTP request, fully parsed at construction time.
// After NewRequest returns, only the body remains to be consumed.
type Request struct {
	Message

	Method string
	URI    RequestTarget

	// ProxyInfo is non-nil when the connection opened with a PROXY
	// protocol v1 preamble.
	ProxyInfo *ProxyInfo

	// ReqNumber is the 1-based ordinal of this request on its connection.
	ReqNumber int
}

// NewRequest reads and parses the next request from src. It returns
// NoNextMessageErr when the peer cleanly closed the connection between
// requests. Any other error means the current message is unusable; the
// caller must not reuse the connection for further parsing.
func NewRequest(cfg *Config, src Source, peer net.Addr, reqNumber int) (*Request, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	scheme := "http"
	if cfg.IsSSL {
		scheme = "https"
	}
	r := &Request{
		Message: Message{
			cfg:    cfg,
			src:    src,
			peer:   peer,
			Scheme: scheme,
			limits: cfg.resolveLimits(),
		},
		ReqNumber: reqNumber,
	}

	residue, err := r.parse()
	if err != nil {
		if !errors.Is(err, NoNextMessageErr) {
			stats.parseErrors.Inc()
		}
		return nil, err
	}
	src.Unread(residue)
	if err := r.setBodyReader(r); err != nil {
		stats.parseErrors.Inc()
		return nil, err
	}
	stats.requests.Inc()
	return r, nil
}

// parse drives the whole sequence: optional PROXY preamble, request line,
// header block. It returns the bytes read past the end of the header
// section, which belong to the body or to a pipelined successor.
func (r *Request) parse() ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := r.getData(buf, true); err != nil {
		return nil, err
	}

	line, rest, err := r.readLine(buf, r.limits.line)
	if err != nil {
		return nil, err
	}

	isProxy, err := r.maybeProxyLine(line)
	if err != nil {
		return nil, err
	}
	if isProxy {
		// The proxy preamble is discarded; the real request line follows
		// in the bytes already read past it.
		buf.Reset()
		_, _ = buf.Write(rest)
		line, rest, err = r.readLine(buf, r.limits.line)
		if err != nil {
			return nil, err
		}
	}

	if err = r.parseStartLine(line); err != nil {
		return nil, err
	}

	buf.Reset()
	_, _ = buf.Write(rest)
	block, residue, err := r.readHeaderBlock(buf)
	if err != nil {
		return nil, err
	}
	if block == nil {
		r.Headers = HeaderList{}
	} else {
		if r.Headers, err = r.parseHeaders(block); err != nil {
			return nil, err
		}
	}

	// buf goes back to the pool; the residue must outlive it.
	return append([]byte(nil), residue...), nil
}

// parseStartLine validates and decomposes "METHOD target HTTP/x.y".
func (r *Request) parseStartLine(line []byte) error {
	bits := splitToken3(line)
	if len(bits) != 3 {
		return &InvalidRequestLineErr{Line: string(line)}
	}

	method := string(bits[0])
	if !validMethod(method) {
		return &InvalidRequestMethodErr{Method: method}
	}
	r.Method = strings.ToUpper(method)

	target, err := splitRequestTarget(string(bits[1]))
	if err != nil {
		return &InvalidRequestLineErr{Line: string(line)}
	}
	r.URI = target

	ver, ok := parseHTTPVersion(bits[2])
	if !ok {
		return &InvalidHTTPVersionErr{Version: string(bits[2])}
	}
	r.Version = ver
	return nil
}

// overrideFraming keeps a signal-free request from being framed as
// read-until-close: that would swallow bytes belonging to the next
// pipelined request. No framing signal on a request means no body.
func (r *Request) overrideFraming(f BodyFraming) BodyFraming {
	if f.Kind == FramingReadUntilClose {
		return fixedLength(0)
	}
	return f
}

// splitToken3 splits on runs of whitespace into at most three tokens; the
// third token is the unsplit remainder with leading whitespace dropped.
func splitToken3(b []byte) [][]byte {
	var parts [][]byte
	i := 0
	for len(parts) < 2 {
		for i < len(b) && isTokenSpace(b[i]) {
			i++
		}
		if i >= len(b) {
			return parts
		}
		start := i
		for i < len(b) && !isTokenSpace(b[i]) {
			i++
		}
		parts = append(parts, b[start:i])
	}
	for i < len(b) && isTokenSpace(b[i]) {
		i++
	}
	if i < len(b) {
		parts = append(parts, b[i:])
	}
	return parts
}

func isTokenSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\v', '\f', '\r', '\n':
		return true
	}
	return false
}

// validMethod requires 3 to 20 characters from uppercase letters, digits
// and "$-_.".
func validMethod(m string) bool {
	if len(m) < 3 || len(m) > 20 {
		return false
	}
	for i := 0; i < len(m); i++ {
		c := m[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '$' || c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// parseHTTPVersion requires the exact shape HTTP/<digits>.<digits>.
func parseHTTPVersion(b []byte) (Version, bool) {
	const prefix = "HTTP/"
	if len(b) < len(prefix)+3 || string(b[:len(prefix)]) != prefix {
		return Version{}, false
	}
	rest := b[len(prefix):]
	dot := -1
	for i, c := range rest {
		if c == '.' {
			if dot >= 0 {
				return Version{}, false
			}
			dot = i
			continue
		}
		if c < '0' || c > '9' {
			return Version{}, false
		}
	}
	if dot <= 0 || dot == len(rest)-1 {
		return Version{}, false
	}
	major := 0
	for _, c := range rest[:dot] {
		major = major*10 + int(c-'0')
	}
	minor := 0
	for _, c := range rest[dot+1:] {
		minor = minor*10 + int(c-'0')
	}
	return Version{Major: major, Minor: minor}, true
}
