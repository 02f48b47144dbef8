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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
)

func TestNormalizePathLowercasesAndAppendsTrailingSlash(t *testing.T) {
	p, ok := normalizePath("/Foo/Bar")
	require.True(t, ok)
	assert.Equal(t, "/foo/bar/", p)
}

func TestNormalizePathKeepsExtension(t *testing.T) {
	p, ok := normalizePath("/Images/Pic.PNG")
	require.True(t, ok)
	assert.Equal(t, "/images/pic.png", p)
}

func TestNormalizePathRejectsTraversal(t *testing.T) {
	_, ok := normalizePath("/a/../../etc/passwd")
	assert.False(t, ok)
}

func TestNormalizePathRejectsEmbeddedNUL(t *testing.T) {
	_, ok := normalizePath("/a\x00b")
	assert.False(t, ok)
}

func TestNormalizePathRoot(t *testing.T) {
	p, ok := normalizePath("")
	require.True(t, ok)
	assert.Equal(t, "/", p)
}

func TestRouterMatchLongestPrefixWins(t *testing.T) {
	cfg := &config.ServerConfig{
		Locations: []*config.Location{
			{Prefix: "/", Root: "/var/www"},
			{Prefix: "/images/", Root: "/var/www/images"},
			{Prefix: "/images/thumbs/", Root: "/var/www/images/thumbs"},
		},
	}
	rt := NewRouter(cfg, zap.NewNop())

	loc := rt.match("/images/thumbs/cat.png")
	require.NotNil(t, loc)
	assert.Equal(t, "/images/thumbs/", loc.Prefix)

	loc = rt.match("/images/cat.png")
	require.NotNil(t, loc)
	assert.Equal(t, "/images/", loc.Prefix)

	loc = rt.match("/other.html")
	require.NotNil(t, loc)
	assert.Equal(t, "/", loc.Prefix)
}

func TestRouterRouteNoMatchingLocationIs404(t *testing.T) {
	cfg := &config.ServerConfig{}
	rt := NewRouter(cfg, zap.NewNop())

	req := NewRequest()
	req.State = StateComplete
	req.Method = "GET"
	req.URL.Path = "/nope"

	resp := NewResponse()
	rt.Route(req, resp, func() {})

	require.Equal(t, StatusReady, resp.State())
	assert.Equal(t, 404, resp.Status)
}

func TestRouterRouteMethodNotAllowedIs405(t *testing.T) {
	cfg := &config.ServerConfig{
		Locations: []*config.Location{
			{Prefix: "/", Root: "/var/www", Methods: map[string]bool{"GET": true}},
		},
	}
	rt := NewRouter(cfg, zap.NewNop())

	req := NewRequest()
	req.State = StateComplete
	req.Method = "POST"
	req.URL.Path = "/x"

	resp := NewResponse()
	rt.Route(req, resp, func() {})

	assert.Equal(t, 405, resp.Status)
}

func TestRouterRouteBadRequestIs400(t *testing.T) {
	cfg := &config.ServerConfig{}
	rt := NewRouter(cfg, zap.NewNop())

	req := NewRequest()
	req.State = StateBad

	resp := NewResponse()
	rt.Route(req, resp, func() {})

	assert.Equal(t, 400, resp.Status)
}

func TestRouterRouteRedirect(t *testing.T) {
	cfg := &config.ServerConfig{
		Locations: []*config.Location{
			{Prefix: "/old/", RedirectStatus: 301, RedirectTarget: "/new/"},
		},
	}
	rt := NewRouter(cfg, zap.NewNop())

	req := NewRequest()
	req.State = StateComplete
	req.Method = "GET"
	req.URL.Path = "/old/page"

	resp := NewResponse()
	rt.Route(req, resp, func() {})

	assert.Equal(t, 301, resp.Status)
	loc, ok := resp.Headers.Get("Location")
	require.True(t, ok)
	assert.Equal(t, "/new/", loc)
}

func TestRouterDispatchServesStaticFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644))

	cfg := &config.ServerConfig{
		Locations: []*config.Location{
			{Prefix: "/", Root: dir, Methods: map[string]bool{"GET": true}},
		},
	}
	rt := NewRouter(cfg, zap.NewNop())

	req := NewRequest()
	req.State = StateComplete
	req.Method = "GET"
	req.URL.Path = "/hello.txt"

	resp := NewResponse()
	rt.Route(req, resp, func() {})

	assert.Equal(t, 200, resp.Status)
}

func TestRouterRespondErrorUsesConfiguredErrorPage(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "404.html")
	require.NoError(t, os.WriteFile(pagePath, []byte("<h1>not found</h1>"), 0o644))

	cfg := &config.ServerConfig{
		ErrorPages: map[int]string{404: pagePath},
	}
	rt := NewRouter(cfg, zap.NewNop())

	resp := NewResponse()
	rt.respondError(resp, 404, nil)

	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, StatusReady, resp.State())
}
