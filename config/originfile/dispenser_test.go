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
package originfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokensFor(t *testing.T, input string) []Token {
	t.Helper()
	tokens, err := Tokenize([]byte(input), "Originfile")
	require.NoError(t, err)
	return tokens
}

func TestDispenserNextWalksTokenStream(t *testing.T) {
	d := NewDispenser(tokensFor(t, "listen 8080;"))

	require.True(t, d.Next())
	assert.Equal(t, "listen", d.Val())
	require.True(t, d.Next())
	assert.Equal(t, "8080", d.Val())
	require.True(t, d.Next())
	assert.Equal(t, ";", d.Val())
	assert.False(t, d.Next())
}

func TestDispenserRemainingArgsStopsAtSemicolon(t *testing.T) {
	d := NewDispenser(tokensFor(t, "methods GET POST DELETE;"))
	require.True(t, d.Next())
	assert.Equal(t, "methods", d.Val())

	args := d.RemainingArgs()
	assert.Equal(t, []string{"GET", "POST", "DELETE"}, args)

	require.NoError(t, d.ExpectSemicolon())
}

func TestDispenserRemainingArgsStopsAtOpenBrace(t *testing.T) {
	d := NewDispenser(tokensFor(t, "location / {\nroot ./www;\n}"))
	require.True(t, d.Next())
	assert.Equal(t, "location", d.Val())

	args := d.RemainingArgs()
	assert.Equal(t, []string{"/"}, args)
}

func TestDispenserNextBlockEntersAndExitsNesting(t *testing.T) {
	d := NewDispenser(tokensFor(t, "server {\nlisten 8080;\n}"))
	require.True(t, d.Next()) // "server"

	require.True(t, d.NextBlock(0)) // consumes "{", nesting -> 1, loads "listen"
	assert.Equal(t, "listen", d.Val())

	require.True(t, d.NextBlock(0)) // "8080"
	assert.Equal(t, "8080", d.Val())
	require.True(t, d.NextBlock(0)) // ";"
	assert.Equal(t, ";", d.Val())

	assert.False(t, d.NextBlock(0)) // "}" closes nesting back to 0
}

func TestDispenserSkipDirectiveSkipsSimpleDirective(t *testing.T) {
	d := NewDispenser(tokensFor(t, "listen 8080; host example.com;"))
	require.True(t, d.Next())
	assert.Equal(t, "listen", d.Val())

	d.SkipDirective()

	require.True(t, d.Next())
	assert.Equal(t, "host", d.Val())
}

func TestDispenserSkipDirectiveSkipsNestedBlock(t *testing.T) {
	d := NewDispenser(tokensFor(t, "location / {\nroot ./www;\n}\nhost example.com;"))
	require.True(t, d.Next())
	assert.Equal(t, "location", d.Val())

	d.SkipDirective()

	require.True(t, d.Next())
	assert.Equal(t, "host", d.Val())
}

func TestDispenserExpectSemicolonErrorsWithoutOne(t *testing.T) {
	d := NewDispenser(tokensFor(t, "listen 8080"))
	require.True(t, d.Next()) // "listen"
	require.True(t, d.Next()) // "8080"
	assert.Error(t, d.ExpectSemicolon())
}
