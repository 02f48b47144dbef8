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
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
)

// cgiFileStatus classifies a candidate CGI script path before dispatch.
type cgiFileStatus int

const (
	cgiFileReady cgiFileStatus = iota
	cgiFileMissing
	cgiFileNotExecutable
)

// cgiFileState reports whether fsPath exists, is a regular file, and
// carries the owner-execute bit, per spec.md §4.E step 5's CGI dispatch
// precondition ("exists as a regular file with owner-execute
// permission").
func cgiFileState(fsPath string) cgiFileStatus {
	info, err := os.Stat(fsPath)
	if err != nil || info.IsDir() {
		return cgiFileMissing
	}
	if info.Mode()&0o100 == 0 {
		return cgiFileNotExecutable
	}
	return cgiFileReady
}

// cgiInterpreter is the fixed interpreter used to run CGI scripts, per
// SPEC_FULL.md's resolution of the CGI Open Question: this origin server
// targets Python CGI scripts exclusively and does not sniff a shebang
// line or support other interpreters.
const cgiInterpreter = "/usr/bin/python3"

// execveErrorMarker is the reserved token that marks a failed CGI child:
// if it appears in a worker's stdout, runCGIWorker treats the run as
// failed. Nothing in this server writes it; a failure to start the
// interpreter surfaces as an error from cmd.Start instead. It is never a
// legal prefix of a CGI response, per the CGI/1.1-style contract in
// spec.md §6.
const execveErrorMarker = "EXECVE_ERROR_MARKER"

// dispatchCGI spawns scriptPath under the fixed interpreter and arranges
// for resp to transition to READY once the child's stdout has been fully
// drained and parsed, per spec.md §4.E step 5 / §6 (component H). The
// worker runs on its own goroutine; wake notifies the owning Connection
// once resp becomes READY so tryWrite can deliver it.
func (rt *Router) dispatchCGI(req *Request, resp *Response, loc *config.Location, scriptPath string, wake wakeFunc) error {
	switch cgiFileState(scriptPath) {
	case cgiFileMissing:
		rt.respondError(resp, 404, nil)
		return nil
	case cgiFileNotExecutable:
		rt.respondError(resp, 403, nil)
		return nil
	}

	cmd := exec.Command(cgiInterpreter, scriptPath)
	cmd.Env = buildCGIEnv(req, loc, scriptPath)
	cmd.Dir = loc.Root

	if req.Body != nil {
		cmd.Stdin = strings.NewReader(string(req.Body))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cgi: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cgi: start: %w", err)
	}

	buf := NewCGIBuffer()
	resp.SetBodyPayload(0, buf)
	resp.Begin()

	go runCGIWorker(cmd, stdout, buf, resp, rt, wake)
	return nil
}

// runCGIWorker drains the child's stdout into buf, waits for the process
// to exit, and finalizes resp: on success, the parsed CGI header block
// becomes the response's headers and status 200; on failure (a nonzero
// exit, an execveErrorMarker, or an I/O error), resp is reset and
// replaced with this server's 500 error page, per spec.md §6's worker
// completion handling.
func runCGIWorker(cmd *exec.Cmd, stdout io.ReadCloser, buf *cgiBuffer, resp *Response, rt *Router, wake wakeFunc) {
	chunk := make([]byte, readChunkSize)
	var markerSeen bool
	var readErr error
	for {
		n, rerr := stdout.Read(chunk)
		if n > 0 {
			_ = buf.Append(chunk[:n])
			if !markerSeen && strings.Contains(string(chunk[:n]), execveErrorMarker) {
				markerSeen = true
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				readErr = rerr
			}
			break
		}
	}

	failErr := cmd.Wait()
	if failErr == nil {
		failErr = readErr
	}

	if markerSeen || failErr != nil {
		rt.logger.Error("cgi worker failed", zap.String("script", cmd.Args[len(cmd.Args)-1]), zap.Error(failErr), zap.Bool("marker", markerSeen))
		resp.Reset()
		rt.respondError(resp, 500, failErr)
		wake()
		return
	}

	finalizeCGIResponse(resp, buf)
	wake()
}

// finalizeCGIResponse copies the CGI worker's parsed header block onto
// resp and transitions it to READY, defaulting to status 200 unless the
// script emitted its own "Status:" header per CGI/1.1 convention.
func finalizeCGIResponse(resp *Response, buf *cgiBuffer) {
	status := 200
	for name, value := range buf.Headers() {
		if strings.EqualFold(name, "Status") {
			if code, err := strconv.Atoi(strings.Fields(value)[0]); err == nil {
				status = code
			}
			continue
		}
		resp.Headers.Set(name, value)
	}
	if _, ok := resp.Headers.Get("Content-Length"); !ok {
		resp.Headers.Set("Content-Length", strconv.Itoa(len(buf.Body())))
	}
	resp.Status = status
	resp.Build()
}

// buildCGIEnv constructs the CGI/1.1 environment for one request, per
// spec.md §6, mirroring the shape of a classic getCgiEnvp table.
func buildCGIEnv(req *Request, loc *config.Location, scriptPath string) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_SOFTWARE=originserver",
		"REQUEST_METHOD=" + req.Method,
		"SCRIPT_FILENAME=" + scriptPath,
		"SCRIPT_NAME=" + req.URL.Path,
		"QUERY_STRING=" + req.URL.Query,
		"SERVER_NAME=" + req.URL.Host,
		"SERVER_PORT=" + req.URL.Port,
		"REDIRECT_STATUS=200",
	}
	if ct, ok := req.Headers.Get("Content-Type"); ok {
		env = append(env, "CONTENT_TYPE="+ct)
	}
	if req.HasContentLength {
		env = append(env, "CONTENT_LENGTH="+strconv.FormatInt(req.ContentLength, 10))
	}
	req.Headers.Each(func(name, value string) {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env = append(env, key+"="+value)
	})
	return env
}
