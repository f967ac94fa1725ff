// Package text provides Unicode-aware counting and truncation helpers shared
// by the scoring prompts and reading-time estimates.
package text

import "unicode"

// CountRunes counts Unicode characters rather than bytes, so multi-byte
// scripts and emoji are counted correctly.
func CountRunes(s string) int {
	return len([]rune(s))
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	words := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return words
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut. Truncation happens on rune boundaries so multi-byte
// characters are never split.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
