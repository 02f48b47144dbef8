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
package randname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringIsUniqueAcrossCalls(t *testing.T) {
	a := String()
	b := String()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36) // canonical UUID string form
}

func TestShortIsFirstUUIDSegment(t *testing.T) {
	s := Short()
	assert.Len(t, s, 8)

	a := Short()
	b := Short()
	assert.NotEqual(t, a, b)
}
