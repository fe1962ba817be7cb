package sentiment

import (
	"strings"
	"unicode/utf8"
)

func isCyrillicLower(r rune) bool {
	return (r >= 'а' && r <= 'я') || r == 'ё'
}

// matchKeyword reports whether kw occurs in the lowercased text s starting
// at a word boundary. A single word may continue with further Cyrillic
// letters (so "учител" matches "учителями"); a phrase must also end at a
// boundary.
func matchKeyword(s, kw string) bool {
	if kw == "" {
		return false
	}
	phrase := strings.Contains(kw, " ")

	for off := 0; off < len(s); {
		i := strings.Index(s[off:], kw)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(kw)

		before, _ := utf8.DecodeLastRuneInString(s[:start])
		if start == 0 || !isCyrillicLower(before) {
			if !phrase {
				return true
			}
			after, _ := utf8.DecodeRuneInString(s[end:])
			if end == len(s) || !isCyrillicLower(after) {
				return true
			}
		}
		off = start + 1
	}
	return false
}

// countSubstrings counts how many of words occur anywhere in s.
func countSubstrings(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}
