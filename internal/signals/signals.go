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

// Package signals exposes the process-wide interrupt flag and the
// context cancellation that SIGINT/SIGTERM drive. It is the one piece of
// process-global mutable state in this program besides logging, and it
// is written only from the signal handler and read everywhere else.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

var interrupted atomic.Bool

// Interrupted reports whether SIGINT or SIGTERM has been received. Safe
// to call from any goroutine.
func Interrupted() bool {
	return interrupted.Load()
}

// WatchContext returns a context that is canceled the first time SIGINT
// or SIGTERM arrives, and a stop function that must be called to release
// the underlying signal notification. It also flips the process-wide
// Interrupted() flag for any code that polls it instead of selecting on
// a context.
func WatchContext(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			interrupted.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}
