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
	"strconv"
	"strings"
)

// consumeChunkedBody decodes Transfer-Encoding: chunked per spec.md
// §4.B step 4: a hex size line (with an optional ";ext" that is
// ignored), CRLF, that many bytes of payload, CRLF, repeated until a
// terminating "0\r\n\r\n". It is resumable: whatever it cannot fully
// decode from buf yet, it leaves untouched for the next Consume call.
func (r *Request) consumeChunkedBody(buf *bytes.Buffer, maxBodySize int64) {
	for {
		if r.chunkTerminating {
			if buf.Len() < 2 {
				return
			}
			final := make([]byte, 2)
			buf.Read(final) //nolint:errcheck
			if !bytes.Equal(final, []byte("\r\n")) {
				r.State = StateBad
				return
			}
			r.State = StateComplete
			return
		}

		if r.chunkAwaitingData {
			need := r.chunkPending + 2 // chunk data + trailing CRLF
			if int64(buf.Len()) < need {
				return
			}
			chunk := make([]byte, r.chunkPending)
			buf.Read(chunk) //nolint:errcheck
			trailer := make([]byte, 2)
			buf.Read(trailer) //nolint:errcheck
			if !bytes.Equal(trailer, []byte("\r\n")) {
				r.State = StateBad
				return
			}
			if int64(len(r.Body))+int64(len(chunk)) > maxBodySize {
				r.State = StateBad
				return
			}
			r.Body = append(r.Body, chunk...)
			r.chunkAwaitingData = false
			continue
		}

		idx := bytes.Index(buf.Bytes(), []byte("\r\n"))
		if idx < 0 {
			if buf.Len() > MaxRequestHeaderSize {
				r.State = StateBad
			}
			return
		}
		sizeLine := string(buf.Bytes()[:idx])
		buf.Next(idx + 2)

		sizeText := sizeLine
		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeText = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeText), 16, 64)
		if err != nil || size < 0 {
			r.State = StateBad
			return
		}

		if size == 0 {
			// terminating chunk: spec.md §4.B expects "0\r\n\r\n"; the
			// "0\r\n" is already consumed above, so only the final CRLF
			// remains (any trailer headers are not supported).
			r.chunkTerminating = true
			continue
		}

		r.chunkPending = size
		r.chunkAwaitingData = true
	}
}
