package inhttp

import (
	"io"
	"net"
)

// chunkReader feeds a fixed number of bytes per Read call, simulating a
// peer that trickles data.
type chunkReader struct {
	data            string
	numBytesPerRead int
	pos             int
}

func (cr *chunkReader) Read(p []byte) (n int, err error) {
	if cr.pos >= len(cr.data) {
		return 0, io.EOF
	}
	end := cr.pos + cr.numBytesPerRead
	if end > len(cr.data) {
		end = len(cr.data)
	}
	n = copy(p, cr.data[cr.pos:end])
	cr.pos += n
	return n, nil
}

func chunkedSource(data string, per int) *BufferedSource {
	return NewSource(&chunkReader{data: data, numBytesPerRead: per})
}

func tcpPeer(ip string) *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: 40612}
}

var loopback = tcpPeer("127.0.0.1")

// parseOne parses a single request delivered in per-byte sized chunks.
func parseOne(cfg *Config, data string, per int) (*Request, *BufferedSource, error) {
	src := chunkedSource(data, per)
	req, err := NewRequest(cfg, src, loopback, 1)
	return req, src, err
}

// drainSource reads the source dry, pushed-back bytes included.
func drainSource(src Source) string {
	var b []byte
	for {
		d, err := src.Read()
		if err != nil {
			return string(b)
		}
		b = append(b, d...)
	}
}
