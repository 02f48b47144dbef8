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

// Package config holds the frozen configuration value the server runs
// against; config/originfile.Parse produces it from an on-disk file. Once
// Parse returns, a Config is never mutated again; every goroutine in the
// process only ever reads it.
package config

import "time"

// Config is the top-level, immutable configuration for the whole
// process: one or more virtual servers. Each server binds its own
// listeners; requests are not routed between servers by Host header or
// server_name.
type Config struct {
	Servers []*ServerConfig
}

// ServerConfig is one `server { ... }` block.
type ServerConfig struct {
	Host              string
	Listen            []int
	ServerName        string
	ErrorPages        map[int]string
	ClientMaxBodySize int64
	Timeouts          Timeouts
	Locations         []*Location
}

// Timeouts holds the four independent millisecond timeouts spec.md §3
// assigns to every ServerConfig.
type Timeouts struct {
	Request          time.Duration
	ResponseHandling time.Duration
	ResponseDelivery time.Duration
	Idle             time.Duration
}

// Location is one `location <prefix> { ... }` block, scoped to a single
// ServerConfig. Prefix is always canonicalized with a trailing slash.
type Location struct {
	Prefix        string
	Root          string
	Index         string
	Autoindex     bool
	Methods       map[string]bool
	CGIExtensions map[string]bool

	// RedirectStatus is non-zero when this location is a `return` block;
	// RedirectTarget is the Location header value to emit.
	RedirectStatus int
	RedirectTarget string
}

// IsRedirect reports whether this location is a pure redirect, per
// spec.md §4.E step 4.
func (l *Location) IsRedirect() bool {
	return l.RedirectStatus != 0
}

// AllowsMethod reports whether method is in this location's whitelist.
// An empty whitelist (no `methods` directive given) allows GET only, the
// safest default.
func (l *Location) AllowsMethod(method string) bool {
	if len(l.Methods) == 0 {
		return method == "GET"
	}
	return l.Methods[method]
}

// IsCGIExtension reports whether ext (including the leading dot) is
// registered as a CGI extension for this location.
func (l *Location) IsCGIExtension(ext string) bool {
	return l.CGIExtensions[ext]
}

// ErrorPage returns the configured error page path for a status code,
// and whether one was configured.
func (sc *ServerConfig) ErrorPage(status int) (string, bool) {
	p, ok := sc.ErrorPages[status]
	return p, ok
}

// ListensOnPort reports whether this server is bound to port.
func (sc *ServerConfig) ListensOnPort(port int) bool {
	for _, p := range sc.Listen {
		if p == port {
			return true
		}
	}
	return false
}
