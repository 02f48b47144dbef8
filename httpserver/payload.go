// Copyright 2026 The Originserver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package httpserver

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// readChunkSize bounds how much a single send() call reads from disk or
// writes from a buffer, so that large files and CGI output stream
// through the connection instead of being buffered in full. 4 KiB
// matches spec.md §4.A's suggested chunk size.
const readChunkSize = 4096

// Payload is a resumable byte-source: callers call send repeatedly,
// across as many scheduling turns as it takes, until isFullySent
// reports true. It is a closed set of implementations (spec.md §9's
// "tagged variant, not a virtual class hierarchy"), enforced in Go by an
// unexported marker method rather than a switch over a type tag.
type Payload interface {
	// send performs one bounded write attempt to w, returning how many
	// bytes were written. It never returns a "short send" error; any
	// non-nil err is a genuine I/O failure.
	send(w io.Writer) (n int, err error)
	isFullySent() bool
	totalSize() int64
	bytesSent() int64
	sealed()
}

// Appendable is implemented by the Payload variants that can receive
// more bytes after creation (in-memory buffers and the CGI output
// buffer). OnDiskFile payloads do not implement it; AppendTo fails
// loudly when called against one, per spec.md §4.A.
type Appendable interface {
	Append(b []byte) error
}

// AppendTo appends b to p if p supports it, or returns a descriptive
// error otherwise.
func AppendTo(p Payload, b []byte) error {
	a, ok := p.(Appendable)
	if !ok {
		return errors.New("httpserver: payload variant does not support append")
	}
	return a.Append(b)
}

// inMemoryPayload sends from a fixed or growable in-memory byte buffer.
type inMemoryPayload struct {
	data []byte
	sent int64
}

// NewInMemoryPayload wraps a byte slice as a Payload.
func NewInMemoryPayload(data []byte) Payload {
	return &inMemoryPayload{data: data}
}

func (p *inMemoryPayload) send(w io.Writer) (int, error) {
	if p.sent >= int64(len(p.data)) {
		return 0, nil
	}
	end := p.sent + readChunkSize
	if end > int64(len(p.data)) {
		end = int64(len(p.data))
	}
	n, err := w.Write(p.data[p.sent:end])
	p.sent += int64(n)
	return n, err
}

func (p *inMemoryPayload) isFullySent() bool { return p.sent >= int64(len(p.data)) }
func (p *inMemoryPayload) totalSize() int64  { return int64(len(p.data)) }
func (p *inMemoryPayload) bytesSent() int64  { return p.sent }
func (p *inMemoryPayload) sealed()           {}

func (p *inMemoryPayload) Append(b []byte) error {
	p.data = append(p.data, b...)
	return nil
}

// filePayload streams a file from disk, reading bounded chunks at the
// current send cursor and closing the handle once fully sent or on
// error, per spec.md §4.A.
type filePayload struct {
	f      *os.File
	size   int64
	sent   int64
	closed bool
}

// NewFilePayload opens path and wraps it as a Payload. The caller does
// not need to close the returned file; the payload closes it once fully
// sent or on error.
func NewFilePayload(path string) (Payload, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return &filePayload{f: f, size: info.Size()}, info.Size(), nil
}

func (p *filePayload) send(w io.Writer) (int, error) {
	if p.closed {
		return 0, nil
	}
	if p.sent >= p.size {
		p.close()
		return 0, nil
	}

	buf := make([]byte, readChunkSize)
	rn, rerr := p.f.ReadAt(buf, p.sent)
	if rn == 0 && rerr != nil && rerr != io.EOF {
		p.close()
		return 0, rerr
	}

	var written int
	if rn > 0 {
		wn, werr := w.Write(buf[:rn])
		p.sent += int64(wn)
		written = wn
		if werr != nil {
			p.close()
			return written, werr
		}
	}

	if p.sent >= p.size {
		p.close()
	}
	return written, nil
}

func (p *filePayload) close() {
	if !p.closed {
		p.f.Close()
		p.closed = true
	}
}

func (p *filePayload) isFullySent() bool { return p.sent >= p.size }
func (p *filePayload) totalSize() int64  { return p.size }
func (p *filePayload) bytesSent() int64  { return p.sent }
func (p *filePayload) sealed()           {}

// cgiHeaderTerminator is the blank line separating a CGI script's header
// block from its body, per the CGI/1.1-style contract in spec.md §6.
var cgiHeaderTerminator = []byte("\r\n\r\n")

// cgiBuffer accumulates a CGI child's stdout, splitting it into a parsed
// header-field map and a body buffer the first time the blank-line
// terminator appears, per spec.md §4.A.
type cgiBuffer struct {
	raw     []byte // bytes not yet classified as header or body
	headers map[string]string
	body    []byte
	sent    int64
	parsed  bool
}

// NewCGIBuffer returns an empty CGI output buffer ready to receive
// appended bytes from a worker's stdout pipe.
func NewCGIBuffer() *cgiBuffer {
	return &cgiBuffer{headers: map[string]string{}}
}

func (p *cgiBuffer) Append(b []byte) error {
	p.raw = append(p.raw, b...)
	if !p.parsed {
		if idx := bytes.Index(p.raw, cgiHeaderTerminator); idx >= 0 {
			headerBlock := p.raw[:idx]
			p.body = append(p.body, p.raw[idx+len(cgiHeaderTerminator):]...)
			p.raw = nil
			p.parsed = true
			parseCGIHeaderBlock(headerBlock, p.headers)
		}
		return nil
	}
	p.body = append(p.body, b...)
	return nil
}

// HeadersParsed reports whether the header/body split has happened yet.
func (p *cgiBuffer) HeadersParsed() bool { return p.parsed }

// Headers returns the parsed CGI response headers. Empty until
// HeadersParsed is true.
func (p *cgiBuffer) Headers() map[string]string { return p.headers }

// Body returns the accumulated body bytes following the header
// terminator.
func (p *cgiBuffer) Body() []byte { return p.body }

func (p *cgiBuffer) send(w io.Writer) (int, error) {
	if p.sent >= int64(len(p.body)) {
		return 0, nil
	}
	end := p.sent + readChunkSize
	if end > int64(len(p.body)) {
		end = int64(len(p.body))
	}
	n, err := w.Write(p.body[p.sent:end])
	p.sent += int64(n)
	return n, err
}

func (p *cgiBuffer) isFullySent() bool { return p.sent >= int64(len(p.body)) }
func (p *cgiBuffer) totalSize() int64  { return int64(len(p.body)) }
func (p *cgiBuffer) bytesSent() int64  { return p.sent }
func (p *cgiBuffer) sealed()           {}

func parseCGIHeaderBlock(block []byte, into map[string]string) {
	lines := bytes.Split(block, []byte("\r\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		name := string(bytes.TrimSpace(line[:idx]))
		value := string(bytes.TrimSpace(line[idx+1:]))
		if name == "" {
			continue
		}
		into[name] = value
	}
}
