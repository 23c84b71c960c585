package continuation

import "fmt"

// Fallback returns count deterministic placeholder sentences for userText,
// numbered from 1. It is used when live generation is unavailable.
func Fallback(userText string, count int) []string {
	return FallbackFrom(userText, 1, count)
}

// FallbackFrom is Fallback with numbering starting at start.
func FallbackFrom(userText string, start, count int) []string {
	if count <= 0 {
		return nil
	}
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("（mock AI）基于：%s 的续写（第%d句）", userText, start+i)
	}
	return out
}
