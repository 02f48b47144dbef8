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
	"errors"
	"os"

	"github.com/originserver/originserver/config"
)

// handleDelete removes fsPath from disk, per spec.md §4.F's DELETE
// handler: 404 if the target does not exist, 200 on success, 500 on any
// other failure.
func handleDelete(rt *Router, req *Request, resp *Response, loc *config.Location, fsPath string) {
	err := os.Remove(fsPath)
	switch {
	case err == nil:
		resp.SetText(200, "Deleted")
		resp.Build()
	case errors.Is(err, os.ErrNotExist):
		rt.respondError(resp, 404, nil)
	default:
		rt.respondError(resp, 500, err)
	}
}
