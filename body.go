package inhttp

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var (
	ChunkMissingTerminatorErr = errors.New("chunk data not followed by CRLF")
	InvalidChunkSizeErr       = errors.New("invalid chunk size line")
)

// Body wraps the strategy chosen by the framing resolver. It is a plain
// io.Reader; the connection handler drains it before the next pipelined
// message can be parsed.
type Body struct {
	reader io.Reader
}

func newBody(r io.Reader) *Body {
	return &Body{reader: r}
}

func (b *Body) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

// Discard consumes and drops the remainder of the body, returning the
// number of bytes dropped.
func (b *Body) Discard() (int64, error) {
	return io.Copy(io.Discard, b.reader)
}

// LengthReader consumes exactly n bytes from the source. Bytes past the
// boundary are pushed back for the next message on the connection.
type LengthReader struct {
	src       Source
	remaining int64
}

func newLengthReader(src Source, n int64) *LengthReader {
	return &LengthReader{src: src, remaining: n}
}

func (r *LengthReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	d, err := r.src.Read()
	if err != nil {
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	take := len(d)
	if int64(take) > r.remaining {
		take = int(r.remaining)
	}
	if take > len(p) {
		take = len(p)
	}
	copy(p, d[:take])
	r.src.Unread(d[take:])
	r.remaining -= int64(take)
	return take, nil
}

// EOFReader consumes the source until exhaustion. Only usable when the
// connection will not carry another message.
type EOFReader struct {
	src  Source
	done bool
}

func newEOFReader(src Source) *EOFReader {
	return &EOFReader{src: src}
}

func (r *EOFReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	d, err := r.src.Read()
	if err != nil {
		if err == io.EOF {
			r.done = true
		}
		return 0, err
	}
	take := len(d)
	if take > len(p) {
		take = len(p)
	}
	copy(p, d[:take])
	r.src.Unread(d[take:])
	return take, nil
}

// ChunkedReader decodes chunk-size-prefixed segments: a hexadecimal size
// line (extensions after ';' ignored), that many data bytes, a CRLF, and
// after the zero-size chunk any trailer lines up to a blank line. Bytes
// following the terminal blank line are pushed back to the source.
type ChunkedReader struct {
	src       Source
	buf       []byte
	remaining int64 // bytes left in the current chunk's data
	inChunk   bool
	done      bool
}

func newChunkedReader(src Source) *ChunkedReader {
	return &ChunkedReader{src: src}
}

func (r *ChunkedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if r.done {
			return 0, io.EOF
		}
		if !r.inChunk {
			if err := r.nextChunk(); err != nil {
				return 0, err
			}
			continue
		}
		if r.remaining == 0 {
			if err := r.consumeChunkEnd(); err != nil {
				return 0, err
			}
			r.inChunk = false
			continue
		}
		if len(r.buf) == 0 {
			if err := r.fill(); err != nil {
				return 0, err
			}
		}
		take := len(r.buf)
		if int64(take) > r.remaining {
			take = int(r.remaining)
		}
		if take > len(p) {
			take = len(p)
		}
		copy(p, r.buf[:take])
		r.buf = r.buf[take:]
		r.remaining -= int64(take)
		return take, nil
	}
}

func (r *ChunkedReader) fill() error {
	d, err := r.src.Read()
	if err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	r.buf = append(r.buf, d...)
	return nil
}

// readLine pulls a CRLF-terminated line out of the internal buffer.
func (r *ChunkedReader) readLine() ([]byte, error) {
	for {
		if idx := bytes.Index(r.buf, []byte("\r\n")); idx >= 0 {
			line := r.buf[:idx]
			r.buf = r.buf[idx+2:]
			return line, nil
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

func (r *ChunkedReader) nextChunk() error {
	line, err := r.readLine()
	if err != nil {
		return err
	}
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.Trim(line, " \t")
	size, ok := parseHexUint(line)
	if !ok {
		return InvalidChunkSizeErr
	}
	if size == 0 {
		if err := r.consumeTrailers(); err != nil {
			return err
		}
		// Hand leftover pipelined bytes back for the next message.
		r.src.Unread(r.buf)
		r.buf = nil
		r.done = true
		return nil
	}
	r.remaining = size
	r.inChunk = true
	return nil
}

// consumeChunkEnd eats the CRLF that closes every chunk's data section.
func (r *ChunkedReader) consumeChunkEnd() error {
	for len(r.buf) < 2 {
		if err := r.fill(); err != nil {
			return err
		}
	}
	if r.buf[0] != rChar || r.buf[1] != nChar {
		return ChunkMissingTerminatorErr
	}
	r.buf = r.buf[2:]
	return nil
}

func (r *ChunkedReader) consumeTrailers() error {
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

func parseHexUint(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			return 0, false
		}
		if n > (1<<62)/16 {
			return 0, false
		}
		n = n*16 + d
	}
	return n, true
}
