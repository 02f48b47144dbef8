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
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
	"github.com/originserver/originserver/internal/randname"
)

// Server owns every listener for one ServerConfig and the live set of
// Connections accepted on them, per spec.md §4.G (component G). Where
// spec.md's reference design keeps one passive socket per port in a
// single poll table, this adaptation gives each listener its own accept
// goroutine and each accepted connection its own Connection.Serve
// goroutine, per SPEC_FULL.md §1's concurrency-model note.
type Server struct {
	cfg    *config.ServerConfig
	router *Router
	logger *zap.Logger

	mu          sync.Mutex
	connections map[string]*Connection
}

// NewServer builds a Server for one virtual-server configuration block.
func NewServer(cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		cfg:         cfg,
		router:      NewRouter(cfg, logger),
		logger:      logger,
		connections: make(map[string]*Connection),
	}
}

// Run opens a listener for every configured port and accepts connections
// until ctx is canceled, per spec.md §4.G's listening-socket and accept
// bullets. It returns once every listener has been closed.
func (s *Server) Run(ctx context.Context) error {
	listeners := make([]net.Listener, 0, len(s.cfg.Listen))
	for _, port := range s.cfg.Listen {
		ln, err := listenReusable(ctx, port)
		if err != nil {
			for _, open := range listeners {
				open.Close()
			}
			return fmt.Errorf("httpserver: listen on port %d: %w", port, err)
		}
		listeners = append(listeners, ln)
		s.logger.Info("listening", zap.Int("port", port), zap.String("server_name", s.cfg.ServerName))
	}

	var wg sync.WaitGroup
	for _, ln := range listeners {
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			s.acceptLoop(ctx, ln)
		}(ln)
	}

	<-ctx.Done()
	for _, ln := range listeners {
		ln.Close()
	}
	s.closeAllConnections()
	wg.Wait()
	return nil
}

// acceptLoop accepts client connections on ln until it is closed (which
// happens when ctx is canceled by the caller), spawning one Connection
// goroutine per accepted socket.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("accept failed", zap.Error(err))
				return
			}
		}
		s.handleAccepted(ctx, conn)
	}
}

// handleAccepted registers conn in the live connection table and starts
// serving it, removing it from the table once Serve returns, per spec.md
// §4.G's accept bullet.
func (s *Server) handleAccepted(ctx context.Context, conn net.Conn) {
	id := randname.Short()
	c := NewConnection(id, conn, s.cfg, s.router, s.logger, s.onConnectionClosed)

	s.mu.Lock()
	s.connections[id] = c
	s.mu.Unlock()

	go c.Serve(ctx)
}

func (s *Server) onConnectionClosed(c *Connection) {
	s.mu.Lock()
	delete(s.connections, c.id)
	s.mu.Unlock()
}

// closeAllConnections force-closes every live connection, used during
// shutdown per spec.md §4.G's closeConnection bullet. The snapshot is
// taken under s.mu and released before any c.close() call, since close
// reaches back into onConnectionClosed, which re-locks s.mu itself.
func (s *Server) closeAllConnections() {
	s.mu.Lock()
	snapshot := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		snapshot = append(snapshot, c)
	}
	s.mu.Unlock()

	for _, c := range snapshot {
		c.close()
	}
}
