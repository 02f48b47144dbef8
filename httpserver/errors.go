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
	"fmt"
	"path"
	"runtime"
	"strings"

	"github.com/originserver/originserver/internal/randname"
)

// Error builds a HandlerError for statusCode from err, populating any
// essential fields err itself didn't already carry (grounded on
// caddyhttp.Error / caddyhttp.HandlerError in modules/caddyhttp/errors.go).
func Error(statusCode int, err error) HandlerError {
	var he HandlerError
	if errors.As(err, &he) {
		if he.ID == "" {
			he.ID = randname.Short()
		}
		if he.Trace == "" {
			he.Trace = trace()
		}
		if he.StatusCode == 0 {
			he.StatusCode = statusCode
		}
		return he
	}
	return HandlerError{
		ID:         randname.Short(),
		StatusCode: statusCode,
		Err:        err,
		Trace:      trace(),
	}
}

// HandlerError is a serializable representation of an error raised while
// handling a request, carrying enough context to log it and to pick the
// right error page, per spec.md §7's error taxonomy.
type HandlerError struct {
	Err        error
	StatusCode int
	ID         string
	Trace      string
}

func (e HandlerError) Error() string {
	var s string
	if e.ID != "" {
		s += fmt.Sprintf("{id=%s}", e.ID)
	}
	if e.Trace != "" {
		s += " " + e.Trace
	}
	if e.StatusCode != 0 {
		s += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return strings.TrimSpace(s)
}

func (e HandlerError) Unwrap() error { return e.Err }

func trace() string {
	if pc, file, line, ok := runtime.Caller(2); ok {
		filename := path.Base(file)
		pkgAndFuncName := path.Base(runtime.FuncForPC(pc).Name())
		return fmt.Sprintf("%s (%s:%d)", pkgAndFuncName, filename, line)
	}
	return ""
}
