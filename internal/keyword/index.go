// Package keyword provides lexical lookup over canonical feature names.
package keyword

import (
	"strings"
	"unicode"
)

// SearchOptions optional parameters for Search. Nil means exact term matching.
type SearchOptions struct {
	// Fuzzy matches terms within Fuzziness edits of a query term.
	Fuzzy bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default is 1.
	Fuzziness int
	// Limit caps the number of hits. Default is 20.
	Limit int
}

// Hit is a single lexical match.
type Hit struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// SplitTerms breaks a feature name into lowercase terms at separators, letter/digit changes and
// camelCase boundaries: "studentName_2" yields [student name 2].
func SplitTerms(name string) []string {
	var (
		terms []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			terms = append(terms, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				// "HTTPServer" splits before the S.
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return terms
}
