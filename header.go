package inhttp

import (
	"bytes"
	"net"
	"strings"
)

const (
	rChar = byte('\r')
	nChar = byte('\n')
)

// whitespace stripped from header values, mirroring str.strip().
const wsCutset = " \t\r\n\v\f"

// HeaderField is one logical header. Name is normalized to uppercase;
// Value has surrounding whitespace stripped but is otherwise verbatim,
// including any folded continuation content.
type HeaderField struct {
	Name  string
	Value string
}

// HeaderList preserves insertion order. Duplicate names are legal entries
// and are never merged; "first match wins" lookups depend on the order.
type HeaderList []HeaderField

// Get returns the value of the first field with the given name (uppercase)
// and whether one was found.
func (h HeaderList) Get(name string) (string, bool) {
	for i := range h {
		if h[i].Name == name {
			return h[i].Value, true
		}
	}
	return "", false
}

// validHeaderNameByte rejects control characters and the separators from
// RFC 9110: ()<>@,;:[]={} space tab backslash and double quote.
func validHeaderNameByte(c byte) bool {
	if c <= 0x1f || c == 0x7f {
		return false
	}
	switch c {
	case '(', ')', '<', '>', '@', ',', ';', ':', '[', ']', '=', '{', '}', ' ', '\t', '\\', '"':
		return false
	}
	return true
}

func validHeaderName(name string) bool {
	for i := 0; i < len(name); i++ {
		if !validHeaderNameByte(name[i]) {
			return false
		}
	}
	return true
}

// splitHeaderLines splits the header block on CRLF, reattaching the
// terminator to each line so per-field size accounting counts it.
func splitHeaderLines(data []byte) [][]byte {
	segs := bytes.Split(data, []byte("\r\n"))
	lines := make([][]byte, len(segs))
	for i, seg := range segs {
		line := make([]byte, 0, len(seg)+2)
		line = append(line, seg...)
		line = append(line, rChar, nChar)
		lines[i] = line
	}
	return lines
}

// parseHeaders turns the raw block between the start line and the blank
// line into a HeaderList, honoring obsolete line folding, the field count
// and per-field size limits, and trusted-scheme derivation.
func (m *Message) parseHeaders(data []byte) (HeaderList, error) {
	lim := m.limits

	// Scheme headers are only consulted when the peer is trusted to have
	// terminated TLS (or is not a network peer at all).
	var secureSchemeHeaders map[string]string
	if allowlisted(m.cfg.ForwardedAllowIPs, m.peer) {
		secureSchemeHeaders = m.cfg.SecureSchemeHeaders
	}

	lines := splitHeaderLines(data)
	headers := make(HeaderList, 0, 8)
	schemeDerived := false

	for i := 0; i < len(lines); {
		if len(headers) >= lim.fields {
			return nil, TooManyHeaderFieldsErr
		}

		curr := lines[i]
		i++
		fieldLen := len(curr)

		colon := bytes.IndexByte(curr, ':')
		if colon < 0 {
			return nil, &InvalidHeaderErr{Field: strings.Trim(string(curr), wsCutset)}
		}
		name := string(curr[:colon])
		if m.cfg.StripHeaderSpaces {
			name = strings.TrimRight(name, " \t")
		}
		name = strings.ToUpper(name)
		if !validHeaderName(name) {
			return nil, &InvalidHeaderNameErr{Name: name}
		}
		name = strings.Trim(name, wsCutset)

		value := make([]byte, 0, len(curr)-colon)
		value = append(value, bytes.TrimLeft(curr[colon+1:], wsCutset)...)

		// Obsolete line folding: a line starting with SP or HT continues
		// the previous field, terminator and all. The size limit is
		// re-checked after every fold, not just at the end.
		for i < len(lines) && len(lines[i]) > 0 && (lines[i][0] == ' ' || lines[i][0] == '\t') {
			cont := lines[i]
			i++
			fieldLen += len(cont)
			if lim.fieldSize > 0 && fieldLen > lim.fieldSize {
				return nil, HeaderFieldTooLargeErr
			}
			value = append(value, cont...)
		}
		if lim.fieldSize > 0 && fieldLen > lim.fieldSize {
			return nil, HeaderFieldTooLargeErr
		}

		val := string(bytes.TrimRight(value, wsCutset))

		if want, ok := secureSchemeHeaders[name]; ok {
			derived := "http"
			if val == want {
				derived = "https"
			}
			if schemeDerived {
				if derived != m.Scheme {
					return nil, ConflictingSchemeHeadersErr
				}
			} else {
				schemeDerived = true
				m.Scheme = derived
			}
		}

		headers = append(headers, HeaderField{Name: name, Value: val})
	}

	return headers, nil
}

// allowlisted reports whether the peer may use forwarding/proxy features.
// A wildcard entry trusts everyone; a peer without a concrete IP (unix
// socket, in-process pipe) is trusted like the original does for non-tuple
// peer addresses.
func allowlisted(list []string, peer net.Addr) bool {
	for _, e := range list {
		if e == "*" {
			return true
		}
	}
	host, ok := peerIP(peer)
	if !ok {
		return true
	}
	for _, e := range list {
		if e == host {
			return true
		}
	}
	return false
}

// peerIP extracts the peer's IP in canonical string form. ok is false for
// non-IP transports.
func peerIP(a net.Addr) (string, bool) {
	switch t := a.(type) {
	case nil:
		return "", false
	case *net.TCPAddr:
		return t.IP.String(), true
	case *net.UDPAddr:
		return t.IP.String(), true
	}
	if host, _, err := net.SplitHostPort(a.String()); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String(), true
		}
	}
	return "", false
}
