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
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/originserver/originserver/config"
)

// ServerManager supervises one Server per ServerConfig in a loaded
// Config, starting and stopping them together, per spec.md §4.G/§4.I
// (component I). It is the Go-idiomatic replacement for spec.md's single
// shared poll loop across every listening socket, worker pipe, and
// client connection: each Server runs its own accept loop and each
// Connection its own goroutine, and errgroup.Group fans them back in so
// one failing Server's error surfaces without the others leaking.
type ServerManager struct {
	servers []*Server
	logger  *zap.Logger
}

// NewServerManager builds one Server per virtual-server block in cfg.
func NewServerManager(cfg *config.Config, logger *zap.Logger) *ServerManager {
	m := &ServerManager{logger: logger}
	for _, sc := range cfg.Servers {
		m.servers = append(m.servers, NewServer(sc, logger))
	}
	return m
}

// Run starts every Server and blocks until all of them have returned.
// They all shut down together when ctx is canceled (typically by
// internal/signals.WatchContext) or when any Server returns an error,
// since the first error cancels the errgroup context every Server runs
// under.
func (m *ServerManager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.servers {
		s := s
		g.Go(func() error {
			return s.Run(gctx)
		})
	}
	m.logger.Info("server manager started", zap.Int("servers", len(m.servers)))
	err := g.Wait()
	m.logger.Info("server manager stopped")
	return err
}
