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
//go:build unix

package httpserver

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenReusable opens a TCP listener on port with SO_REUSEADDR set via
// the listener's Control hook, per spec.md §4.G's "passive non-blocking
// listening socket ... (SO_REUSEADDR)" requirement (grounded on
// listen_linux.go's reusePort, adapted from SO_REUSEPORT to SO_REUSEADDR
// since this server runs one listener per port rather than one per
// worker process).
func listenReusable(ctx context.Context, port int) (net.Listener, error) {
	lc := net.ListenConfig{Control: setReuseAddr}
	return lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
}

func setReuseAddr(network, address string, conn syscall.RawConn) error {
	var setErr error
	err := conn.Control(func(descriptor uintptr) {
		setErr = unix.SetsockoptInt(int(descriptor), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}
