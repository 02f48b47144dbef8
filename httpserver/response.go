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
	"io"
	"sync"

	"github.com/originserver/originserver/internal/mimetype"
)

// ResponseState is one point in the Response state machine of spec.md
// §3: PENDING -> IN_PROGRESS -> READY.
type ResponseState int

const (
	StatusPending ResponseState = iota
	StatusInProgress
	StatusReady
)

var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// ReasonPhrase returns the standard reason phrase for status, or
// "Unknown" if none is registered.
func ReasonPhrase(status int) string {
	if r, ok := reasonPhrases[status]; ok {
		return r
	}
	return "Unknown"
}

// Response is a single response being built and delivered for one
// request, per spec.md §3/§4.C. Its observer list is not a general
// event bus (spec.md §9) — it is a small, fixed set of callbacks a
// Connection registers once, per response, to start/stop its
// response-handling timer as the state machine advances.
//
// A CGI dispatch (component H) finalizes a Response from its own worker
// goroutine, concurrently with the owning Connection's Serve goroutine
// polling State() on every heartbeat tick to decide whether to write it.
// mu guards every field below against that cross-goroutine access.
type Response struct {
	Status int
	Headers *Headers

	mu         sync.Mutex
	state      ResponseState
	headerBlob []byte
	headerSent int64
	body       Payload
	observers  []func(ResponseState)
}

// NewResponse returns a Response in the PENDING state, ready to be
// populated by one of the set* methods below and then Begin()'d.
func NewResponse() *Response {
	return &Response{Headers: NewHeaders(), state: StatusPending}
}

// State reports the current response state.
func (r *Response) State() ResponseState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnStateChange registers a callback invoked every time the response
// transitions state, most recent transition's target state as its
// argument.
func (r *Response) OnStateChange(fn func(ResponseState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// setState updates the state and notifies observers. Observers are
// invoked after mu is released, since they may themselves call back
// into r.State() (non-reentrant otherwise) or into Connection methods
// that take their own locks.
func (r *Response) setState(s ResponseState) {
	r.mu.Lock()
	r.state = s
	observers := make([]func(ResponseState), len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// Begin transitions PENDING -> IN_PROGRESS, firing observers. It is a
// no-op if already past PENDING.
func (r *Response) Begin() {
	r.mu.Lock()
	pending := r.state == StatusPending
	r.mu.Unlock()
	if pending {
		r.setState(StatusInProgress)
	}
}

// SetFile configures this response to serve a file from disk, per
// spec.md §4.C's setFile: opens an on-disk payload, sets Content-Type
// from the extension, Content-Length from the file size, and
// Cache-Control: no-store.
func (r *Response) SetFile(status int, path string) error {
	payload, size, err := NewFilePayload(path)
	if err != nil {
		return err
	}
	r.Headers.Set("Content-Type", mimetype.ForPath(path))
	r.Headers.Set("Content-Length", fmt.Sprintf("%d", size))
	r.Headers.Set("Cache-Control", "no-store")
	r.mu.Lock()
	r.Status = status
	r.body = payload
	r.mu.Unlock()
	return nil
}

// SetText configures this response with an in-memory plaintext body,
// per spec.md §4.C's setText.
func (r *Response) SetText(status int, body string) {
	r.SetBytes(status, []byte(body), "text/plain")
}

// SetBytes configures this response with an arbitrary in-memory body
// and content type, used by handlers that need more than plain text
// (gzip-encoded static files, directory listings).
func (r *Response) SetBytes(status int, body []byte, contentType string) {
	r.Headers.Set("Content-Type", contentType)
	r.Headers.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	r.mu.Lock()
	r.Status = status
	r.body = NewInMemoryPayload(body)
	r.mu.Unlock()
}

// SetRedirect configures a 3xx redirect response with an empty body,
// per spec.md §4.E step 4.
func (r *Response) SetRedirect(status int, target string) {
	r.Headers.Set("Location", target)
	r.Headers.Set("Content-Length", "0")
	r.mu.Lock()
	r.Status = status
	r.body = NewInMemoryPayload(nil)
	r.mu.Unlock()
}

// Reset clears any previously set status/body/headers so a handler can
// replace a half-built response with an error page, per spec.md §4.E
// step 6 ("Any exception from a handler resets the response").
func (r *Response) Reset() {
	r.Headers = NewHeaders()
	r.mu.Lock()
	r.Status = 0
	r.body = nil
	r.headerBlob = nil
	r.headerSent = 0
	r.mu.Unlock()
}

// build serializes the status line and headers into the header blob and
// transitions to READY, per spec.md §4.C's build(). Must be called
// after exactly one of the set* methods above.
func (r *Response) build() {
	var buf bytes.Buffer
	r.mu.Lock()
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.Status, ReasonPhrase(r.Status))
	r.Headers.Each(func(name, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	})
	buf.WriteString("\r\n")
	r.headerBlob = buf.Bytes()
	r.mu.Unlock()
	r.setState(StatusReady)
}

// Build is the exported entry point a handler calls once the response
// is fully populated; the process is identical to build() but exported
// so method handlers outside this file can finalize their responses.
func (r *Response) Build() { r.build() }

// send writes as much of the header, then body, as a single bounded
// write allows, per spec.md §4.C's send(): header first, body only once
// the header is fully sent. Returns true once both are fully sent.
func (r *Response) send(w io.Writer) (done bool, err error) {
	r.mu.Lock()
	headerBlob := r.headerBlob
	headerSent := r.headerSent
	r.mu.Unlock()

	if headerSent < int64(len(headerBlob)) {
		end := headerSent + readChunkSize
		if end > int64(len(headerBlob)) {
			end = int64(len(headerBlob))
		}
		n, werr := w.Write(headerBlob[headerSent:end])

		r.mu.Lock()
		r.headerSent += int64(n)
		headerSent = r.headerSent
		r.mu.Unlock()

		if werr != nil {
			return false, werr
		}
		if headerSent < int64(len(headerBlob)) {
			return false, nil
		}
	}

	r.mu.Lock()
	body := r.body
	r.mu.Unlock()
	if body == nil {
		return true, nil
	}
	_, err = body.send(w)
	if err != nil {
		return false, err
	}
	return body.isFullySent(), nil
}

// TotalSize reports the combined header+body size, useful for logging.
func (r *Response) TotalSize() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := int64(len(r.headerBlob))
	if r.body != nil {
		size += r.body.totalSize()
	}
	return size
}

// SetBodyPayload installs an arbitrary Payload as the response body
// without touching headers, used by the CGI supervisor which manages
// Content-Type/Content-Length itself from the parsed CGI header block.
func (r *Response) SetBodyPayload(status int, body Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.body = body
}

// BodyPayload exposes the underlying body Payload.
func (r *Response) BodyPayload() Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}
