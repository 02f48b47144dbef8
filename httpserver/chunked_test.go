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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeChunkedBodyFullMessage(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nHello\r\n" +
		"6\r\n World\r\n" +
		"0\r\n\r\n"
	buf := bytes.NewBufferString(raw)
	r := NewRequest()
	r.Consume(buf, 1<<20)

	require.Equal(t, StateComplete, r.State)
	assert.Equal(t, "Hello World", string(r.Body))
}

func TestConsumeChunkedBodySplitAcrossCalls(t *testing.T) {
	r := NewRequest()
	buf := bytes.NewBufferString("POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nHel")
	r.Consume(buf, 1<<20)
	assert.Equal(t, StateHeaderComplete, r.State)

	buf.WriteString("lo\r\n0\r\n\r\n")
	r.Consume(buf, 1<<20)
	require.Equal(t, StateComplete, r.State)
	assert.Equal(t, "Hello", string(r.Body))
}

func TestConsumeChunkedBodyIgnoresChunkExtension(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3;ignored-extension=1\r\nabc\r\n0\r\n\r\n"
	buf := bytes.NewBufferString(raw)
	r := NewRequest()
	r.Consume(buf, 1<<20)

	require.Equal(t, StateComplete, r.State)
	assert.Equal(t, "abc", string(r.Body))
}

func TestConsumeChunkedBodyExceedingMaxIsBad(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"a\r\n0123456789\r\n0\r\n\r\n"
	buf := bytes.NewBufferString(raw)
	r := NewRequest()
	r.Consume(buf, 5)

	assert.Equal(t, StateBad, r.State)
}

func TestConsumeChunkedBodyMalformedTrailerIsBad(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nabcXX"
	buf := bytes.NewBufferString(raw)
	r := NewRequest()
	r.Consume(buf, 1<<20)

	assert.Equal(t, StateBad, r.State)
}
