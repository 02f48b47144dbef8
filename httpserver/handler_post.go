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
	"os"
	"path/filepath"
	"strings"

	"github.com/originserver/originserver/config"
	"github.com/originserver/originserver/internal/mimetype"
	"github.com/originserver/originserver/internal/randname"
)

// handlePost writes an uploaded body to disk under fsPath, per spec.md
// §4.F's POST handler: each multipart part that carries a filename is
// decoded into its own file named "<random>_<fileName>" (parts without a
// filename are skipped); a raw body is written whole to
// "<random>.<extFromContentType>". fsPath is the resolved upload
// directory (the directory a Location's root maps the request path to).
func handlePost(rt *Router, req *Request, resp *Response, loc *config.Location, fsPath string) {
	if req.MultipartBoundary != "" {
		handlePostMultipart(rt, req, resp, fsPath)
		return
	}
	handlePostRaw(rt, req, resp, fsPath)
}

func handlePostMultipart(rt *Router, req *Request, resp *Response, uploadDir string) {
	parts, err := ParseMultipart(req.Body, req.MultipartBoundary)
	if err != nil {
		rt.respondError(resp, 400, err)
		return
	}

	for _, part := range parts {
		if part.Filename == "" {
			continue
		}
		name := randname.String() + "_" + filepath.Base(part.Filename)
		dest := filepath.Join(uploadDir, name)
		if err := os.WriteFile(dest, part.Data, 0o644); err != nil {
			rt.respondError(resp, 500, err)
			return
		}
	}

	resp.SetText(200, "File uploaded successfully")
	resp.Build()
}

func handlePostRaw(rt *Router, req *Request, resp *Response, uploadDir string) {
	ext := extFromContentType(req.Headers.GetDefault("Content-Type", ""))
	name := randname.String() + ext
	dest := filepath.Join(uploadDir, name)

	if err := os.WriteFile(dest, req.Body, 0o644); err != nil {
		rt.respondError(resp, 500, err)
		return
	}

	resp.SetText(200, "File uploaded successfully")
	resp.Build()
}

// extFromContentType maps a request's Content-Type to a file extension
// for raw (non-multipart) uploads, per spec.md §4.F's "<extFromContentType>".
func extFromContentType(contentType string) string {
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))
	switch ct {
	case "text/plain":
		return ".txt"
	case "text/html":
		return ".html"
	case "application/json":
		return ".json"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/octet-stream", "":
		return ".bin"
	}
	if exts, err := mimeExtensionsLookup(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// mimeExtensionsLookup is a thin indirection over mime.ExtensionsByType so
// extFromContentType can fall back to the system mime database for
// content types not in the built-in switch above.
func mimeExtensionsLookup(contentType string) ([]string, error) {
	return mimetype.ExtensionsByType(contentType)
}
