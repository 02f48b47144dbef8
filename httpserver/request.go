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
	"fmt"
	"strconv"
	"strings"
)

// RequestState is one point in the Request state machine of spec.md §3:
// PENDING -> HEADER_COMPLETE -> COMPLETE, with BAD reachable from any
// earlier state.
type RequestState int

const (
	StatePending RequestState = iota
	StateHeaderComplete
	StateComplete
	StateBad
)

func (s RequestState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateHeaderComplete:
		return "HEADER_COMPLETE"
	case StateComplete:
		return "COMPLETE"
	case StateBad:
		return "BAD"
	default:
		return "UNKNOWN"
	}
}

// MaxRequestHeaderSize bounds how large the buffered header block may
// grow before a request is declared malformed, per spec.md §4.B step 1.
const MaxRequestHeaderSize = 8 * 1024

// knownMethods is the grammar spec.md §4.B step 2 allows on the request
// line, regardless of which of them the Router actually dispatches.
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "HEAD": true,
	"OPTIONS": true, "PATCH": true, "TRACE": true, "CONNECT": true,
}

// URL is the parsed request-target, reconstructed from the Host header
// and the request-target per spec.md §3.
type URL struct {
	Scheme   string
	User     string
	Password string
	Host     string
	Port     string
	Path     string
	Query    string
	Fragment string
}

// Request is a single HTTP/1.1 request, parsed incrementally from a
// connection's input buffer by the methods in this file (component B in
// spec.md §4.B).
type Request struct {
	State RequestState

	Method  string
	RawURI  string
	URL     URL
	Version string

	Headers          *Headers
	ContentLength    int64
	HasContentLength bool
	Chunked          bool
	MultipartBoundary string
	Body             []byte

	CloseRequested bool

	// internal dechunking cursor, resumable across Consume calls
	chunkAwaitingData bool
	chunkPending      int64
	chunkTerminating  bool
}

// NewRequest returns a fresh Request ready to begin parsing.
func NewRequest() *Request {
	return &Request{State: StatePending, Headers: NewHeaders()}
}

// Consume advances parsing as far as the bytes currently in buf allow,
// consuming (removing) whatever prefix of buf it uses. It may be called
// repeatedly as more bytes arrive; spec.md §4.B's invariant holds: once
// State is COMPLETE or BAD, Consume is a no-op.
func (r *Request) Consume(buf *bytes.Buffer, maxBodySize int64) {
	if r.State == StateComplete || r.State == StateBad {
		return
	}
	if r.State == StatePending {
		if !r.consumeHeaderBlock(buf) {
			return
		}
	}
	if r.State == StateHeaderComplete {
		r.consumeBody(buf, maxBodySize)
	}
}

// consumeHeaderBlock looks for the blank-line header terminator and, if
// found, parses the request line and header fields. Returns true if
// header parsing is finished (State moved to HEADER_COMPLETE or BAD).
func (r *Request) consumeHeaderBlock(buf *bytes.Buffer) bool {
	idx := bytes.Index(buf.Bytes(), []byte("\r\n\r\n"))
	if idx < 0 {
		if buf.Len() > MaxRequestHeaderSize {
			r.State = StateBad
			return true
		}
		return false
	}

	block := make([]byte, idx)
	copy(block, buf.Bytes()[:idx])
	buf.Next(idx + 4)

	lines := strings.Split(string(block), "\r\n")
	if len(lines) == 0 {
		r.State = StateBad
		return true
	}

	if !r.parseRequestLine(lines[0]) {
		r.State = StateBad
		return true
	}

	for _, line := range lines[1:] {
		parseHeaderLine(line, r.Headers)
	}

	r.applyHeaderSemantics()
	return true
}

// parseRequestLine validates "METHOD SP URI SP HTTP/1.1" per spec.md
// §4.B step 2.
func (r *Request) parseRequestLine(line string) bool {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return false
	}
	method, uri, version := parts[0], parts[1], parts[2]
	if !knownMethods[method] {
		return false
	}
	if version != "HTTP/1.1" {
		return false
	}
	if uri == "" {
		return false
	}
	r.Method = method
	r.RawURI = uri
	r.Version = version
	return true
}

// parseHeaderLine parses "name: OWS value OWS" and adds it to h. A
// malformed line (no colon) is dropped silently, per spec.md §4.B step 3
// ("best-effort parsing; justified by origin-server tolerance").
func parseHeaderLine(line string, h *Headers) {
	if line == "" {
		return
	}
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return
	}
	name := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if name == "" {
		return
	}
	h.Add(name, value)
}

// applyHeaderSemantics validates the cross-field rules of spec.md §4.B
// step 3 and, if they hold, transitions to HEADER_COMPLETE; otherwise
// transitions to BAD.
func (r *Request) applyHeaderSemantics() {
	host, hasHost := r.Headers.Get("Host")
	if !hasHost || host == "" {
		r.State = StateBad
		return
	}

	te, hasTE := r.Headers.Get("Transfer-Encoding")
	r.Chunked = hasTE && strings.Contains(strings.ToLower(te), "chunked")

	if (r.Method == "GET" || r.Method == "DELETE") && r.Chunked {
		r.State = StateBad
		return
	}

	if cl, hasCL := r.Headers.Get("Content-Length"); hasCL {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			if r.Method == "POST" && !r.Chunked {
				r.State = StateBad
				return
			}
		} else {
			r.ContentLength = n
			r.HasContentLength = true
		}
	} else if r.Method == "POST" && !r.Chunked {
		r.State = StateBad
		return
	}

	if ct, ok := r.Headers.Get("Content-Type"); ok {
		if boundary, ok := extractMultipartBoundary(ct); ok {
			r.MultipartBoundary = boundary
		}
	}

	if conn, ok := r.Headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(conn), "close") {
		r.CloseRequested = true
	}

	if err := r.buildURL(host); err != nil {
		r.State = StateBad
		return
	}

	r.State = StateHeaderComplete
}

// buildURL reconstructs the request URL from the Host header and
// request-target, per spec.md §4.B step 3.
func (r *Request) buildURL(host string) error {
	u := URL{Scheme: "http"}

	h, port, hasPort := strings.Cut(host, ":")
	u.Host = h
	if hasPort {
		u.Port = port
	}

	target := r.RawURI
	if strings.Contains(target, "://") {
		// absolute-form request-target; strip scheme://host leaving the
		// path (+query/fragment) component only
		if idx := strings.Index(target, "://"); idx >= 0 {
			rest := target[idx+3:]
			if slash := strings.IndexByte(rest, '/'); slash >= 0 {
				target = rest[slash:]
			} else {
				target = "/"
			}
		}
	}

	path := target
	if frag := strings.IndexByte(path, '#'); frag >= 0 {
		u.Fragment = path[frag+1:]
		path = path[:frag]
	}
	if q := strings.IndexByte(path, '?'); q >= 0 {
		u.Query = path[q+1:]
		path = path[:q]
	}
	if path == "" {
		path = "/"
	}
	u.Path = path

	r.URL = u
	return nil
}

// consumeBody advances the body-reading phase: no-op for GET/DELETE
// (they never carry a body, per spec.md §4.B step 4), chunked
// dechunking for chunked POSTs, or a direct Content-Length-bounded
// prefix consumption otherwise.
func (r *Request) consumeBody(buf *bytes.Buffer, maxBodySize int64) {
	if r.Method == "GET" || r.Method == "DELETE" {
		r.State = StateComplete
		return
	}

	if r.Chunked {
		r.consumeChunkedBody(buf, maxBodySize)
		return
	}

	if !r.HasContentLength {
		r.State = StateBad
		return
	}
	if r.ContentLength > maxBodySize {
		r.State = StateBad
		return
	}
	if int64(buf.Len()) < r.ContentLength {
		return
	}
	r.Body = make([]byte, r.ContentLength)
	buf.Read(r.Body) //nolint:errcheck // Buffer.Read never errors here; length was just checked

	if r.MultipartBoundary != "" && !hasClosingBoundary(r.Body, r.MultipartBoundary) {
		r.State = StateBad
		return
	}

	r.State = StateComplete
}

func hasClosingBoundary(body []byte, boundary string) bool {
	closing := []byte("--" + boundary + "--")
	return bytes.Contains(body, closing)
}

func extractMultipartBoundary(contentType string) (string, bool) {
	parts := strings.Split(contentType, ";")
	if len(parts) == 0 || !strings.EqualFold(strings.TrimSpace(parts[0]), "multipart/form-data") {
		return "", false
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if name, val, ok := strings.Cut(p, "="); ok && strings.EqualFold(strings.TrimSpace(name), "boundary") {
			return strings.Trim(strings.TrimSpace(val), `"`), true
		}
	}
	return "", false
}

// Summary is a short diagnostic string for logging.
func (r *Request) Summary() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.RawURI, r.Version)
}
