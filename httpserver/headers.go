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

import "strings"

// headerField is one case-preserved header line.
type headerField struct {
	Name  string
	Value string
}

// Headers is a case-preserving, case-insensitive-lookup header-field
// mapping, per spec.md §3's Request data model ("case-preserving;
// lookup case-insensitive for recognized headers").
type Headers struct {
	fields []headerField
}

// NewHeaders returns an empty Headers map.
func NewHeaders() *Headers {
	return &Headers{}
}

// Add appends a header field, preserving its original casing.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, headerField{Name: name, Value: value})
}

// Set replaces all fields named name (case-insensitively) with a single
// field carrying name's casing as given here.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every field matching name, case-insensitively.
func (h *Headers) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Get returns the first value for name (case-insensitive), and whether
// it was present at all.
func (h *Headers) Get(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// GetDefault returns the first value for name, or def if absent.
func (h *Headers) GetDefault(name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

// Values returns every value for name, in the order they were added.
func (h *Headers) Values(name string) []string {
	var vals []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Each calls fn for every field, in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.Name, f.Value)
	}
}

// Len reports the number of fields stored.
func (h *Headers) Len() int { return len(h.fields) }
