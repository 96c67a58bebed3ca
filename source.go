package inhttp

import "io"

// Source supplies the raw byte stream one chunk at a time and accepts
// push-back of bytes the parser did not consume. Read returns io.EOF once
// the stream is exhausted; pushed-back bytes are replayed, in exact order,
// before any further real read.
//
// A Source is owned by a single connection and must not be shared.
type Source interface {
	Read() ([]byte, error)
	Unread(p []byte)
}

const sourceChunkSize = 8192

// BufferedSource adapts an io.Reader (typically a net.Conn) to the Source
// contract.
type BufferedSource struct {
	r       io.Reader
	scratch []byte
	pending []byte
}

func NewSource(r io.Reader) *BufferedSource {
	return &BufferedSource{r: r}
}

// Read returns pushed-back bytes first, then the next chunk from the
// underlying reader. A read that returns data alongside an error delivers
// the data now and the error on the following call.
func (s *BufferedSource) Read() ([]byte, error) {
	if len(s.pending) > 0 {
		d := s.pending
		s.pending = nil
		return d, nil
	}
	if s.scratch == nil {
		s.scratch = make([]byte, sourceChunkSize)
	}
	n, err := s.r.Read(s.scratch)
	if n > 0 {
		d := make([]byte, n)
		copy(d, s.scratch[:n])
		return d, nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

// Unread pushes p back so it is replayed before the next read. Later
// pushes replay before earlier ones, restoring original stream order when
// the parser hands back a tail it over-read.
func (s *BufferedSource) Unread(p []byte) {
	if len(p) == 0 {
		return
	}
	merged := make([]byte, 0, len(p)+len(s.pending))
	merged = append(merged, p...)
	merged = append(merged, s.pending...)
	s.pending = merged
}
