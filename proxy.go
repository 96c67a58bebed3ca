package inhttp

import (
	"net"
	"strconv"
	"strings"
)

// ProxyInfo carries the original endpoint addresses conveyed by a PROXY
// protocol v1 preamble.
type ProxyInfo struct {
	Protocol   string // TCP4 or TCP6
	ClientAddr string
	ClientPort int
	ProxyAddr  string
	ProxyPort  int
}

// maybeProxyLine recognizes a PROXY protocol v1 preamble. It returns true
// when line was a proxy line that has been consumed and the caller should
// read the real request line next. The preamble is only honored on the
// first request of a connection, from an allow-listed peer.
func (r *Request) maybeProxyLine(line []byte) (bool, error) {
	if !r.cfg.ProxyProtocol {
		return false, nil
	}
	if r.ReqNumber != 1 {
		return false, nil
	}
	if !strings.HasPrefix(string(line), "PROXY") {
		return false, nil
	}

	if err := r.proxyAccessCheck(); err != nil {
		return false, err
	}
	info, err := parseProxyLine(string(line))
	if err != nil {
		return false, err
	}
	r.ProxyInfo = info
	stats.proxyLines.Inc()
	r.cfg.Logger.Debug().
		Str("protocol", info.Protocol).
		Str("client", info.ClientAddr).
		Int("client_port", info.ClientPort).
		Msg("proxy protocol preamble accepted")
	return true, nil
}

func (r *Request) proxyAccessCheck() error {
	if allowlisted(r.cfg.ProxyAllowIPs, r.peer) {
		return nil
	}
	host, _ := peerIP(r.peer)
	return &ForbiddenProxyErr{Peer: host}
}

// parseProxyLine validates the six-token v1 form:
// PROXY <TCP4|TCP6> <src-addr> <dst-addr> <src-port> <dst-port>
func parseProxyLine(line string) (*ProxyInfo, error) {
	bits := strings.Fields(line)
	if len(bits) != 6 {
		return nil, &InvalidProxyLineErr{Line: line}
	}

	proto := bits[1]
	srcAddr := bits[2]
	dstAddr := bits[3]

	switch proto {
	case "TCP4":
		if !validIPv4(srcAddr) || !validIPv4(dstAddr) {
			return nil, &InvalidProxyLineErr{Line: line}
		}
	case "TCP6":
		if !validIPv6(srcAddr) || !validIPv6(dstAddr) {
			return nil, &InvalidProxyLineErr{Line: line}
		}
	default:
		return nil, &InvalidProxyLineErr{Line: "protocol '" + proto + "' not supported"}
	}

	srcPort, err := parsePort(bits[4])
	if err != nil {
		return nil, &InvalidProxyLineErr{Line: "invalid port " + line}
	}
	dstPort, err := parsePort(bits[5])
	if err != nil {
		return nil, &InvalidProxyLineErr{Line: "invalid port " + line}
	}

	return &ProxyInfo{
		Protocol:   proto,
		ClientAddr: srcAddr,
		ClientPort: srcPort,
		ProxyAddr:  dstAddr,
		ProxyPort:  dstPort,
	}, nil
}

func validIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
}

func validIPv6(s string) bool {
	return net.ParseIP(s) != nil && strings.Contains(s, ":")
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if p < 0 || p > 65535 {
		return 0, strconv.ErrRange
	}
	return p, nil
}
