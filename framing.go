package inhttp

import "strings"

// FramingKind enumerates the three ways a message body can be delimited.
type FramingKind uint8

const (
	// FramingFixedLength reads exactly Length bytes.
	FramingFixedLength FramingKind = iota
	// FramingChunked decodes size-prefixed segments.
	FramingChunked
	// FramingReadUntilClose consumes the source until exhaustion.
	FramingReadUntilClose
)

func (k FramingKind) String() string {
	switch k {
	case FramingFixedLength:
		return "fixed-length"
	case FramingChunked:
		return "chunked"
	case FramingReadUntilClose:
		return "read-until-close"
	}
	return "unknown"
}

// BodyFraming is the resolver's verdict: exactly one is chosen per message
// and it is immutable once the body reader has been constructed. Length is
// meaningful only for FramingFixedLength.
type BodyFraming struct {
	Kind   FramingKind
	Length int64
}

func fixedLength(n int64) BodyFraming {
	return BodyFraming{Kind: FramingFixedLength, Length: n}
}

// resolveFraming reconciles Content-Length and Transfer-Encoding into a
// single framing decision. This is the request-smuggling boundary: any
// combination whose interpretation an upstream proxy could disagree with
// either fails outright or forces the connection closed.
//
// The tolerance toggle relaxes the chunked+Content-Length and chunked-on-
// HTTP/1.0 rejections (closure is still forced). It never relaxes unknown
// or non-final transfer codings: those cannot be interpreted safely at
// all, so that branch rejects unconditionally.
func (m *Message) resolveFraming() (BodyFraming, error) {
	var (
		chunked       bool
		contentLength string
		haveCL        bool
	)

	for i := range m.Headers {
		f := &m.Headers[i]
		switch f.Name {
		case "CONTENT-LENGTH":
			if haveCL {
				return BodyFraming{}, &InvalidHeaderErr{Field: "CONTENT-LENGTH"}
			}
			haveCL = true
			contentLength = f.Value
		case "TRANSFER-ENCODING":
			switch strings.ToLower(f.Value) {
			case "chunked":
				// Transfer codings stack; stacked chunking is never intended.
				if chunked {
					return BodyFraming{}, &InvalidHeaderErr{Field: "TRANSFER-ENCODING"}
				}
				chunked = true
			case "identity":
				// A no-op coding, but contradictory after chunked.
				if chunked {
					return BodyFraming{}, &InvalidHeaderErr{Field: "TRANSFER-ENCODING"}
				}
			case "":
				m.forceClose()
				if !m.cfg.TolerateDangerousFraming {
					return BodyFraming{}, &UnsupportedTransferCodingErr{Coding: ""}
				}
			default:
				// Unknown coding, or a list with chunked not last. Whatever
				// bytes follow cannot be framed; never proceed, toggle or not.
				m.forceClose()
				return BodyFraming{}, &UnsupportedTransferCodingErr{Coding: f.Value}
			}
		}
	}

	if chunked {
		if m.Version.less(1, 1) {
			// Chunked did not exist before HTTP/1.1; see RFC 9112 section 6.1.
			m.forceClose()
			if !m.cfg.TolerateDangerousFraming {
				return BodyFraming{}, &InvalidHeaderErr{Field: "TRANSFER-ENCODING"}
			}
		}
		if haveCL {
			// A proxy in front of us may have honored Content-Length instead.
			// The remaining input on this connection cannot be trusted.
			m.forceClose()
			if !m.cfg.TolerateDangerousFraming {
				return BodyFraming{}, &InvalidHeaderErr{Field: "CONTENT-LENGTH"}
			}
		}
		return BodyFraming{Kind: FramingChunked}, nil
	}

	if haveCL {
		n, ok := parseContentLength(contentLength)
		if !ok {
			return BodyFraming{}, &InvalidHeaderErr{Field: "CONTENT-LENGTH"}
		}
		return fixedLength(n), nil
	}

	return BodyFraming{Kind: FramingReadUntilClose}, nil
}

// parseContentLength accepts decimal digits only: no sign, no whitespace,
// no hex. Anything else is a framing hazard.
func parseContentLength(s string) (int64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		if n > (1<<63-1-int64(c-'0'))/10 {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}
