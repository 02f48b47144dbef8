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
	"strings"
)

// MultipartPart is one decoded section of a multipart/form-data body,
// per spec.md §4.B step 5.
type MultipartPart struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// ErrMultipartPreamble is returned when body bytes precede the first
// boundary. Per spec.md §9's Open Question, this server does not
// tolerate a preamble: the body must begin exactly at the first
// boundary.
var ErrMultipartPreamble = errors.New("httpserver: multipart body has preamble bytes before first boundary")

// ParseMultipart splits a raw multipart/form-data body into its parts.
// Decoding is lazy in the sense that spec.md §4.B describes: the raw
// Body bytes are stored verbatim during parsing, and this function is
// only invoked when a method handler actually needs the decoded parts.
func ParseMultipart(body []byte, boundary string) ([]MultipartPart, error) {
	delim := []byte("--" + boundary)
	if !bytes.HasPrefix(body, delim) {
		return nil, ErrMultipartPreamble
	}

	segments := bytes.Split(body, delim)
	if len(segments) < 2 {
		return nil, errors.New("httpserver: multipart body has no parts")
	}

	var parts []MultipartPart
	// segments[0] is empty (body starts with delim); segments[1:] are
	// each "\r\n" + headers + "\r\n\r\n" + data + "\r\n", except the
	// final closing segment, which begins with "--".
	for _, seg := range segments[1:] {
		if bytes.HasPrefix(seg, []byte("--")) {
			break // closing boundary "--boundary--"
		}
		seg = bytes.TrimPrefix(seg, []byte("\r\n"))
		seg = bytes.TrimSuffix(seg, []byte("\r\n"))

		headerEnd := bytes.Index(seg, []byte("\r\n\r\n"))
		if headerEnd < 0 {
			continue // malformed part, skip
		}
		headerBlock := seg[:headerEnd]
		data := seg[headerEnd+4:]

		part := MultipartPart{Data: data}
		for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
			name, value, ok := bytes.Cut(line, []byte(":"))
			if !ok {
				continue
			}
			headerName := strings.TrimSpace(string(name))
			headerValue := strings.TrimSpace(string(value))
			switch strings.ToLower(headerName) {
			case "content-disposition":
				part.Name, part.Filename = parseContentDisposition(headerValue)
			case "content-type":
				part.ContentType = headerValue
			}
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// parseContentDisposition extracts the quote-stripped name and filename
// parameters from a Content-Disposition: form-data; name=...; filename=...
// header value.
func parseContentDisposition(value string) (name, filename string) {
	fields := strings.Split(value, ";")
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"`)
		switch strings.ToLower(key) {
		case "name":
			name = val
		case "filename":
			filename = val
		}
	}
	return
}
