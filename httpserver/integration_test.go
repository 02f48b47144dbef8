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

// Integration tests driving a real Server end to end over raw TCP
// connections, one per end-to-end scenario this origin server must
// support: static GET, 404 fallback, raw and chunked POST uploads,
// oversize-body rejection, redirects, idle timeout, and DELETE.
package httpserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
)

// startTestServer launches a Server for cfg on an ephemeral port and
// returns the port plus a shutdown func.
func startTestServer(t *testing.T, cfg *config.ServerConfig) (port int, shutdown func()) {
	t.Helper()
	port = freePort(t)
	cfg.Listen = []int{port}

	srv := NewServer(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()
	waitForListener(t, port)

	return port, func() {
		cancel()
		<-done
	}
}

func baseTimeouts() config.Timeouts {
	return config.Timeouts{
		Idle: time.Minute, Request: time.Minute,
		ResponseHandling: time.Minute, ResponseDelivery: time.Minute,
	}
}

// S1: static GET of a directory serves its index file with status 200
// and an HTML content type.
func TestScenarioStaticGET(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644))

	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 1 << 20,
		Locations: []*config.Location{
			{Prefix: "/", Root: dir, Index: "index.html", Methods: map[string]bool{"GET": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

// S2: a path with no matching file falls through to the 404 error page.
func TestScenarioNotFound(t *testing.T) {
	dir := t.TempDir()
	errDir := t.TempDir()
	errPage := filepath.Join(errDir, "404.html")
	require.NoError(t, os.WriteFile(errPage, []byte("not here"), 0o644))

	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 1 << 20,
		ErrorPages:        map[int]string{404: errPage},
		Locations: []*config.Location{
			{Prefix: "/", Root: dir, Methods: map[string]bool{"GET": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/nope", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

// S3: a raw (non-multipart) POST is written to disk under the upload
// location with an extension derived from Content-Type.
func TestScenarioRawPOSTUpload(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 1 << 20,
		Locations: []*config.Location{
			{Prefix: "/uploads/", Root: dir, Methods: map[string]bool{"POST": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/uploads/", port), "text/plain", strReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".txt", filepath.Ext(entries[0].Name()))
}

// S4: a chunked POST produces the same outcome as an equivalent raw POST.
func TestScenarioChunkedPOSTUpload(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 1 << 20,
		Locations: []*config.Location{
			{Prefix: "/uploads/", Root: dir, Methods: map[string]bool{"POST": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()

	request := "POST /uploads/ HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n0\r\n\r\n"
	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// S5: a body larger than clientMaxBodySize drives the request to BAD,
// returns 400, and closes the socket.
func TestScenarioOversizeBodyIsRejected(t *testing.T) {
	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 4,
		Locations: []*config.Location{
			{Prefix: "/uploads/", Root: t.TempDir(), Methods: map[string]bool{"POST": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()

	request := "POST /uploads/ HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

// S6: a redirect location returns the configured status and Location
// header with an empty body, regardless of matched sub-path.
func TestScenarioRedirect(t *testing.T) {
	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 1 << 20,
		Locations: []*config.Location{
			{Prefix: "/old/", RedirectStatus: 301, RedirectTarget: "https://y/"},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/old/anything", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 301, resp.StatusCode)
	assert.Equal(t, "https://y/", resp.Header.Get("Location"))
	assert.Equal(t, "0", resp.Header.Get("Content-Length"))
}

// S9: DELETE removes an existing file and returns 200; a second DELETE
// of the same path returns 404.
func TestScenarioDeleteThenDeleteAgain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doomed.txt"), []byte("x"), 0o644))

	cfg := &config.ServerConfig{
		Timeouts:          baseTimeouts(),
		ClientMaxBodySize: 1 << 20,
		Locations: []*config.Location{
			{Prefix: "/", Root: dir, Methods: map[string]bool{"DELETE": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("http://127.0.0.1:%d/doomed.txt", port), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	req2, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("http://127.0.0.1:%d/doomed.txt", port), nil)
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, 404, resp2.StatusCode)
}

// S8: a connection that never sends a byte still trips the idle timeout
// and the server closes the socket.
func TestScenarioIdleTimeout(t *testing.T) {
	cfg := &config.ServerConfig{
		Timeouts: config.Timeouts{
			Idle: 100 * time.Millisecond,
			Request: time.Minute, ResponseHandling: time.Minute, ResponseDelivery: time.Minute,
		},
		ClientMaxBodySize: 1 << 20,
		Locations: []*config.Location{
			{Prefix: "/", Root: t.TempDir(), Methods: map[string]bool{"GET": true}},
		},
	}
	port, shutdown := startTestServer(t, cfg)
	defer shutdown()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadAll(conn)
	assert.NoError(t, err) // reaches EOF, not the 2s deadline, once the server closes the idle socket
}

type strReaderImpl struct {
	s   string
	pos int
}

func (r *strReaderImpl) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	if r.pos >= len(r.s) {
		return n, nil
	}
	return n, nil
}

// strReader avoids pulling in strings.NewReader's io.ReadSeeker surface
// just for a one-shot POST body in tests.
func strReader(s string) *strReaderImpl {
	return &strReaderImpl{s: s}
}
