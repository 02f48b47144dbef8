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

// Package originfile implements the nested directive-block configuration
// grammar used by this server (http { server { location /x { ... } } }).
// The lexer and dispenser below follow the same two-stage shape as the
// teacher's caddyconfig/caddyfile lexer/dispenser: a character scanner
// produces a flat token stream, and a cursor-based dispenser lets parse
// functions walk that stream directive by directive without hand-tracking
// indices themselves.
package originfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode"
)

// Token is a single lexical unit: a bare word, a quoted string, or one of
// the structural characters '{', '}', ';'.
type Token struct {
	File string
	Line int
	Text string
}

// Special token texts that are always lexed as their own token even when
// not surrounded by whitespace, e.g. "listen 8080;" or "location / {".
const (
	openBrace  = "{"
	closeBrace = "}"
	semicolon  = ";"
)

type lexer struct {
	reader *bufio.Reader
	line   int
}

func (l *lexer) load(r io.Reader) {
	l.reader = bufio.NewReader(r)
	l.line = 1
}

// next reads the next token, returning false at EOF.
func (l *lexer) next() (Token, bool) {
	var val []rune
	var quoted, escaped, comment bool
	startLine := l.line

	emit := func() (Token, bool) {
		return Token{Line: startLine, Text: string(val)}, true
	}

	isStructural := func(ch rune) bool {
		return ch == '{' || ch == '}' || ch == ';'
	}

	for {
		ch, _, err := l.reader.ReadRune()
		if err != nil {
			if len(val) > 0 {
				return emit()
			}
			return Token{}, false
		}

		if ch == '\n' {
			l.line++
			comment = false
			if quoted {
				val = append(val, ch)
				continue
			}
			if len(val) > 0 {
				_ = l.reader.UnreadRune()
				l.line--
				return emit()
			}
			continue
		}

		if comment {
			continue
		}

		if quoted {
			if escaped {
				val = append(val, ch)
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				return emit()
			}
			val = append(val, ch)
			continue
		}

		if ch == '"' && len(val) == 0 {
			quoted = true
			startLine = l.line
			continue
		}

		if ch == '#' && len(val) == 0 {
			comment = true
			continue
		}

		if unicode.IsSpace(ch) {
			if len(val) > 0 {
				return emit()
			}
			continue
		}

		if isStructural(ch) {
			if len(val) > 0 {
				_ = l.reader.UnreadRune()
				return emit()
			}
			val = append(val, ch)
			startLine = l.line
			return emit()
		}

		if len(val) == 0 {
			startLine = l.line
		}
		val = append(val, ch)
	}
}

// Tokenize lexes the full input into a flat token slice.
func Tokenize(input []byte, filename string) ([]Token, error) {
	l := &lexer{}
	l.load(bytes.NewReader(input))
	var tokens []Token
	for {
		tok, ok := l.next()
		if !ok {
			break
		}
		tok.File = filename
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func errAt(file string, line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if file == "" {
		return fmt.Errorf("line %d: %s", line, msg)
	}
	return fmt.Errorf("%s:%d: %s", file, line, msg)
}
