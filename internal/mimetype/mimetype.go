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

// Package mimetype maps file extensions to Content-Type values.
//
// A small built-in table is consulted first; it covers the extensions a
// static file server encounters most often and keeps results stable
// across platforms. The standard library's mime.TypeByExtension, which
// reads /etc/mime.types on most platforms, is the fallback for the rest.
package mimetype

import (
	"mime"
	"path/filepath"
	"strings"
)

var builtin = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".wasm": "application/wasm",
	".woff": "font/woff",
	".woff2": "font/woff2",
}

// DefaultType is used when no extension is recognized.
const DefaultType = "application/octet-stream"

// ForPath returns the Content-Type for the given path's extension.
func ForPath(path string) string {
	return ForExt(filepath.Ext(path))
}

// ForExt returns the Content-Type for a file extension (with or without
// the leading dot).
func ForExt(ext string) string {
	if ext == "" {
		return DefaultType
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ext = strings.ToLower(ext)
	if ct, ok := builtin[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return DefaultType
}

// ExtensionsByType returns the file extensions (with leading dot)
// registered for contentType, preferring the system mime database via
// mime.ExtensionsByType. Used by upload handlers choosing a filename
// extension for a raw, non-multipart request body.
func ExtensionsByType(contentType string) ([]string, error) {
	return mime.ExtensionsByType(contentType)
}

// Compressible reports whether content of this type benefits from gzip
// compression. Used by the GET handler's opportunistic encoding path.
func Compressible(contentType string) bool {
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case ct == "application/javascript",
		ct == "application/json",
		ct == "application/xml",
		ct == "image/svg+xml",
		ct == "application/wasm":
		return true
	default:
		return false
	}
}
