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
package originfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/originserver/originserver/config"
)

// Parse reads and parses a configuration file from disk into a frozen
// config.Config. This is the only entry point external callers need;
// Tokenize/Dispenser are exported for tests.
func Parse(path string) (*config.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	tokens, err := Tokenize(raw, path)
	if err != nil {
		return nil, fmt.Errorf("tokenizing config: %w", err)
	}
	d := NewDispenser(tokens)
	cfg, err := parseTop(d)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseTop(d *Dispenser) (*config.Config, error) {
	cfg := &config.Config{}
	for d.Next() {
		switch d.Val() {
		case "http":
			if err := parseHTTP(d, cfg); err != nil {
				return nil, err
			}
		default:
			return nil, d.Err(fmt.Sprintf("unexpected top-level directive %q, expected 'http'", d.Val()))
		}
	}
	return cfg, nil
}

func parseHTTP(d *Dispenser, cfg *config.Config) error {
	for nesting := d.Nesting(); d.NextBlock(nesting); {
		switch d.Val() {
		case "server":
			sc, err := parseServer(d)
			if err != nil {
				return err
			}
			cfg.Servers = append(cfg.Servers, sc)
		default:
			return d.Err(fmt.Sprintf("unexpected directive %q inside http block", d.Val()))
		}
	}
	return nil
}

func defaultTimeouts() config.Timeouts {
	return config.Timeouts{
		Request:          60 * time.Second,
		ResponseHandling: 60 * time.Second,
		ResponseDelivery: 60 * time.Second,
		Idle:             75 * time.Second,
	}
}

func parseServer(d *Dispenser) (*config.ServerConfig, error) {
	sc := &config.ServerConfig{
		ErrorPages:        map[int]string{},
		ClientMaxBodySize: 1 << 20, // 1M default
		Timeouts:          defaultTimeouts(),
	}
	for nesting := d.Nesting(); d.NextBlock(nesting); {
		directive := d.Val()
		switch directive {
		case "listen":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid listen port %q: %w", d.File(), d.Line(), args[0], err)
			}
			sc.Listen = append(sc.Listen, port)
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "host":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			sc.Host = args[0]
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "server_name":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			sc.ServerName = args[0]
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "error_page":
			args := d.RemainingArgs()
			if len(args) != 2 {
				return nil, d.ArgErr()
			}
			code, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid error_page status %q: %w", d.File(), d.Line(), args[0], err)
			}
			sc.ErrorPages[code] = args[1]
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "client_max_body_size":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			n, err := humanize.ParseBytes(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid client_max_body_size %q: %w", d.File(), d.Line(), args[0], err)
			}
			sc.ClientMaxBodySize = int64(n)
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "location":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			loc, err := parseLocation(d, args[0])
			if err != nil {
				return nil, err
			}
			sc.Locations = append(sc.Locations, loc)
		default:
			return nil, d.Err(fmt.Sprintf("unexpected directive %q inside server block", directive))
		}
	}
	return sc, nil
}

func parseLocation(d *Dispenser, prefix string) (*config.Location, error) {
	loc := &config.Location{
		Prefix:        canonicalPrefix(prefix),
		Methods:       map[string]bool{},
		CGIExtensions: map[string]bool{},
	}
	for nesting := d.Nesting(); d.NextBlock(nesting); {
		directive := d.Val()
		switch directive {
		case "root":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			loc.Root = args[0]
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "index":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			loc.Index = args[0]
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "autoindex":
			args := d.RemainingArgs()
			if len(args) != 1 {
				return nil, d.ArgErr()
			}
			loc.Autoindex = args[0] == "on"
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "methods":
			args := d.RemainingArgs()
			if len(args) == 0 {
				return nil, d.ArgErr()
			}
			for _, m := range args {
				loc.Methods[strings.ToUpper(m)] = true
			}
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "cgi_extension":
			args := d.RemainingArgs()
			if len(args) == 0 {
				return nil, d.ArgErr()
			}
			for _, ext := range args {
				if !strings.HasPrefix(ext, ".") {
					ext = "." + ext
				}
				loc.CGIExtensions[ext] = true
			}
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		case "return":
			args := d.RemainingArgs()
			if len(args) != 2 {
				return nil, d.ArgErr()
			}
			code, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid return status %q: %w", d.File(), d.Line(), args[0], err)
			}
			loc.RedirectStatus = code
			loc.RedirectTarget = args[1]
			if err := d.ExpectSemicolon(); err != nil {
				return nil, err
			}
		default:
			return nil, d.Err(fmt.Sprintf("unexpected directive %q inside location block", directive))
		}
	}
	return loc, nil
}

// canonicalPrefix ensures the location prefix ends with exactly one
// trailing slash, per spec.md §3's Location data model.
func canonicalPrefix(prefix string) string {
	if prefix == "" {
		return "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

func validate(cfg *config.Config) error {
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("config: no server blocks defined")
	}
	for i, sc := range cfg.Servers {
		if len(sc.Listen) == 0 {
			return fmt.Errorf("config: server #%d has no listen directive", i)
		}
		if len(sc.Locations) == 0 {
			return fmt.Errorf("config: server #%d has no location blocks", i)
		}
	}
	return nil
}
