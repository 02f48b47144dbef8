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
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/originserver/originserver/config"
	"github.com/originserver/originserver/internal/autoindex"
	"github.com/originserver/originserver/internal/mimetype"
)

// gzipMaxFileSize bounds how large a file this server will read into
// memory to opportunistically gzip-compress; larger files stream
// uncompressed via SetFile instead, per SPEC_FULL.md §7's gzip-encoding
// supplement to spec.md §4.F's GET handler.
const gzipMaxFileSize = 8 << 20 // 8 MiB

// handleGet serves a static file or directory listing under fsPath, per
// spec.md §4.F's GET handler (grounded on the directory/serve shape of
// fileserver.FileServer, trimmed to this server's simpler contract: no
// byte-range requests, no template-driven listing, just opportunistic
// gzip for compressible types, mirroring encode/gzip's encoder shape).
func handleGet(rt *Router, req *Request, resp *Response, loc *config.Location, fsPath string) {
	info, err := os.Stat(fsPath)
	if err != nil {
		rt.respondError(resp, 404, nil)
		return
	}

	if info.IsDir() {
		handleGetDirectory(rt, req, resp, loc, fsPath)
		return
	}

	if acceptsGzip(req) && info.Size() <= gzipMaxFileSize {
		contentType := mimetype.ForPath(fsPath)
		if mimetype.Compressible(contentType) {
			if served := serveGzipFile(resp, fsPath, contentType); served {
				resp.Build()
				return
			}
		}
	}

	if err := resp.SetFile(200, fsPath); err != nil {
		rt.respondError(resp, 500, err)
		return
	}
	resp.Build()
}

// acceptsGzip reports whether the client's Accept-Encoding header
// includes gzip.
func acceptsGzip(req *Request) bool {
	ae, ok := req.Headers.Get("Accept-Encoding")
	if !ok {
		return false
	}
	for _, tok := range strings.Split(ae, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "gzip") {
			return true
		}
	}
	return false
}

// serveGzipFile reads fsPath, gzip-compresses it in memory, and installs
// it as resp's body with Content-Encoding: gzip. Returns false (leaving
// resp untouched) on any read error, so the caller falls back to
// streaming the file uncompressed.
func serveGzipFile(resp *Response, fsPath, contentType string) bool {
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return false
	}

	var buf bytes.Buffer
	gw, _ := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if _, err := gw.Write(data); err != nil {
		return false
	}
	if err := gw.Close(); err != nil {
		return false
	}

	resp.SetBytes(200, buf.Bytes(), contentType)
	resp.Headers.Set("Content-Encoding", "gzip")
	return true
}

// handleGetDirectory implements spec.md §4.F's directory branch: serve
// loc.Index if present, else an autoindex listing if enabled, else 403.
func handleGetDirectory(rt *Router, req *Request, resp *Response, loc *config.Location, fsPath string) {
	if loc.Index != "" {
		indexPath := path.Join(fsPath, loc.Index)
		if info, err := os.Stat(indexPath); err == nil && !info.IsDir() {
			if err := resp.SetFile(200, indexPath); err != nil {
				rt.respondError(resp, 500, err)
				return
			}
			resp.Build()
			return
		}
	}

	if !loc.Autoindex {
		rt.respondError(resp, 403, nil)
		return
	}

	entries, err := autoindex.ReadDir(fsPath)
	if err != nil {
		rt.respondError(resp, 500, err)
		return
	}

	var buf bytes.Buffer
	if err := autoindex.Render(&buf, req.URL.Path, entries); err != nil {
		rt.respondError(resp, 500, err)
		return
	}
	resp.SetBytes(200, buf.Bytes(), "text/html")
	resp.Build()
}
