package inkwell

import "unicode/utf8"

// Clip truncates s to at most n bytes. The cut lands on a rune boundary so a
// clipped string is always valid UTF-8 and safe to embed in a prompt.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ClipTail returns at most the last n bytes of s, starting on a rune boundary.
func ClipTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
