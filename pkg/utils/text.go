// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Truncate returns s truncated to at most maxLen bytes, with "..." appended if truncated.
// The cut never splits a multi-byte character. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// FormatValues renders values as a bracketed, comma-separated list, keeping at most max entries
// (all when max <= 0). A trailing "..." marks omitted values.
func FormatValues(values []string, max int) string {
	shown := values
	if max > 0 && len(values) > max {
		shown = values[:max]
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range shown {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", v)
	}
	if len(shown) < len(values) {
		b.WriteString(", ...")
	}
	b.WriteByte(']')
	return b.String()
}
