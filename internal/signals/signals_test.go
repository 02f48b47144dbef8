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
package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchContextNotDoneBeforeAnySignal(t *testing.T) {
	ctx, stop := WatchContext(context.Background())
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be done before a signal arrives")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchContextStopCancelsReturnedContext(t *testing.T) {
	ctx, stop := WatchContext(context.Background())
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop() should cancel the returned context")
	}
	assert.Error(t, ctx.Err())
}
