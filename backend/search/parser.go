// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package search parses leaderboard scope queries of the form
// "game:<id> year:2025 league:<id>". Values may be quoted, years may be
// open or closed ranges (year:2024..2025, year:>=2024), and anything
// that is not a key:value pair is collected as free text.
package search

import (
	"strings"
	"unicode"
)

// Operator is the comparison attached to a filter value.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // year:2024..2025
)

// Filter is one key:value criterion from the query string.
type Filter struct {
	Key      string
	Value    string
	MaxValue string // set only for OpRange
	Operator Operator
}

// Query is the structured form of a scope query.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Filter returns the first filter with the given key, if any.
func (q Query) Filter(key string) (Filter, bool) {
	for _, f := range q.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return Filter{}, false
}

// Parse turns a scope query string into a Query. Malformed tokens
// (empty keys, dangling colons, values with stray colons) degrade to
// free text instead of failing the whole query.
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}

	for _, token := range tokenize(input) {
		parts := strings.SplitN(token, ":", 2)
		if len(parts) != 2 {
			q.FreeText = append(q.FreeText, removeQuotes(token))
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.TrimSpace(parts[1])
		if key == "" || val == "" {
			q.FreeText = append(q.FreeText, token)
			continue
		}
		// A second unquoted colon makes the token ambiguous.
		if strings.Contains(val, ":") && !strings.HasPrefix(val, "\"") && !strings.HasPrefix(val, "'") {
			q.FreeText = append(q.FreeText, token)
			continue
		}
		q.Filters = append(q.Filters, parseFilter(key, val))
	}

	return q
}

func parseFilter(key, val string) Filter {
	if min, max, ok := strings.Cut(val, ".."); ok {
		return Filter{
			Key:      key,
			Value:    removeQuotes(min),
			MaxValue: removeQuotes(max),
			Operator: OpRange,
		}
	}
	for _, op := range []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess} {
		if strings.HasPrefix(val, string(op)) {
			return Filter{
				Key:      key,
				Value:    removeQuotes(strings.TrimPrefix(val, string(op))),
				Operator: op,
			}
		}
	}
	return Filter{
		Key:      key,
		Value:    removeQuotes(val),
		Operator: OpEqual,
	}
}

// tokenize splits on whitespace while keeping quoted spans intact.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range input {
		switch {
		case inQuote:
			cur.WriteRune(r)
			if r == quoteChar {
				inQuote = false
			}
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		case r == '"' || r == '\'':
			inQuote = true
			quoteChar = r
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
