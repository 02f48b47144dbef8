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
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
)

// wakeFunc lets a handler (including an asynchronous CGI worker) signal
// its Connection once a response becomes READY, without the Router or
// handlers importing the Connection type directly.
type wakeFunc func()

// Router picks the Location that owns a request's path, within the
// ServerConfig the Connection was accepted under, and dispatches to the
// matching method handler, per spec.md §4.E (component E).
type Router struct {
	cfg    *config.ServerConfig
	logger *zap.Logger
}

// NewRouter returns a Router scoped to a single virtual server.
func NewRouter(cfg *config.ServerConfig, logger *zap.Logger) *Router {
	return &Router{cfg: cfg, logger: logger}
}

// Route resolves req against the configured locations and dispatches to
// the matching handler, populating resp in place. Dispatch never blocks
// the caller past its own synchronous handler's return; a CGI dispatch
// starts an external worker and calls wake once resp transitions to
// READY asynchronously.
func (rt *Router) Route(req *Request, resp *Response, wake wakeFunc) {
	if req.State == StateBad {
		rt.respondError(resp, 400, nil)
		return
	}

	cleanPath, ok := normalizePath(req.URL.Path)
	if !ok {
		rt.respondError(resp, 400, nil)
		return
	}
	req.URL.Path = cleanPath

	loc := rt.match(cleanPath)
	if loc == nil {
		rt.respondError(resp, 404, nil)
		return
	}

	if loc.IsRedirect() {
		resp.SetRedirect(loc.RedirectStatus, loc.RedirectTarget)
		resp.Build()
		return
	}

	rt.dispatch(req, resp, loc, wake)
}

// match finds the Location whose Prefix is the longest match for p, per
// spec.md §4.E step 1 (longest-prefix routing, grounded on the matching
// shape of fileserver.MatchFile.strictFileExists's path-convention
// checks, adapted here to prefix selection rather than file existence).
func (rt *Router) match(p string) *config.Location {
	var best *config.Location
	for _, loc := range rt.cfg.Locations {
		if !strings.HasPrefix(p, loc.Prefix) {
			continue
		}
		if best == nil || len(loc.Prefix) > len(best.Prefix) {
			best = loc
		}
	}
	return best
}

// dispatch recovers from a handler panic (turning it into a 500 and
// resetting any half-built response, per spec.md §4.E step 6) and then
// hands off to the method- and extension-appropriate handler.
func (rt *Router) dispatch(req *Request, resp *Response, loc *config.Location, wake wakeFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			rt.logger.Error("handler panic", zap.Any("recover", rec), zap.String("path", req.URL.Path))
			resp.Reset()
			rt.respondError(resp, 500, nil)
		}
	}()

	fsPath := rt.resolveFSPath(loc, req.URL.Path)
	ext := path.Ext(fsPath)

	// CGI dispatch is checked before the method whitelist, per spec.md
	// §4.E's ordering: a CGI script is handed off to the interpreter
	// regardless of the location's configured method whitelist.
	if loc.IsCGIExtension(ext) {
		if err := rt.dispatchCGI(req, resp, loc, fsPath, wake); err != nil {
			rt.respondError(resp, 500, err)
		}
		return
	}

	if !loc.AllowsMethod(req.Method) {
		rt.respondError(resp, 405, nil)
		return
	}

	switch req.Method {
	case "GET", "HEAD":
		handleGet(rt, req, resp, loc, fsPath)
	case "POST":
		handlePost(rt, req, resp, loc, fsPath)
	case "DELETE":
		handleDelete(rt, req, resp, loc, fsPath)
	default:
		rt.respondError(resp, 405, nil)
	}
}

// resolveFSPath maps a request path under loc.Prefix to a path on disk
// under loc.Root, per spec.md §4.E step 2.
func (rt *Router) resolveFSPath(loc *config.Location, urlPath string) string {
	rel := strings.TrimPrefix(urlPath, loc.Prefix)
	return path.Join(loc.Root, rel)
}

// normalizePath lowercases p, rejects embedded NUL bytes and any literal
// ".." path-traversal segment, collapses the rest via path.Clean, and
// appends a trailing slash when the final segment has no extension, per
// spec.md §4.E step 2.
func normalizePath(p string) (string, bool) {
	if strings.ContainsRune(p, 0) {
		return "", false
	}
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.ToLower(p)
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		clean = "/"
	}
	if path.Ext(clean) == "" && !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	return clean, true
}

// respondError builds a response for statusCode, preferring a
// configured error page for this server if one exists, per spec.md §7.
func (rt *Router) respondError(resp *Response, statusCode int, err error) {
	if page, ok := rt.cfg.ErrorPage(statusCode); ok {
		if ferr := resp.SetFile(statusCode, page); ferr == nil {
			resp.Build()
			return
		}
	}
	he := Error(statusCode, err)
	if err != nil {
		rt.logger.Error("request failed", zap.Int("status", statusCode), zap.Error(he))
	}
	resp.SetText(statusCode, ReasonPhrase(statusCode))
	resp.Build()
}
