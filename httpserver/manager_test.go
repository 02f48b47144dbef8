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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
)

func TestServerManagerRunsAllServersAndStopsOnCancel(t *testing.T) {
	cfg := &config.Config{
		Servers: []*config.ServerConfig{
			{
				Listen: []int{freePort(t)},
				Timeouts: config.Timeouts{
					Idle: time.Minute, Request: time.Minute,
					ResponseHandling: time.Minute, ResponseDelivery: time.Minute,
				},
			},
			{
				Listen: []int{freePort(t)},
				Timeouts: config.Timeouts{
					Idle: time.Minute, Request: time.Minute,
					ResponseHandling: time.Minute, ResponseDelivery: time.Minute,
				},
			},
		},
	}

	mgr := NewServerManager(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server manager did not stop after context cancellation")
	}
}
