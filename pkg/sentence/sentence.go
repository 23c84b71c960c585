// Package sentence segments generated text into complete sentences.
//
// The extractor scans an accumulating buffer for boundaries. A boundary is a
// run of one or more terminators (。！？.!?); the text from the previous
// boundary up to and including the run is a candidate sentence. Candidates are
// normalized (trimmed, whitespace runs collapsed) and dropped when they carry
// no content, e.g. "……" or "”。".
//
// # Incrementality
//
// Extract is safe to drive from a delta stream: calling Extract on A, keeping
// the remainder, then calling Extract on remainder+B yields the same sentences
// as a single call on A+B. To keep this exact, a terminator run that touches
// the end of the buffer is not yet a boundary, since the next delta may extend
// it ("好!" followed by "!"). Such a run stays in the remainder until more text
// arrives, or until Flush closes the buffer.
//
//	var sc sentence.Scanner
//	for delta := range deltas {
//	    for _, s := range sc.Feed(delta) {
//	        emit(s)
//	    }
//	}
//	for _, s := range sc.Flush() {
//	    emit(s)
//	}
//	tail := sc.Remainder() // unterminated text, possibly a salvageable sentence
package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extract returns the complete, valid sentences found in buffer and the
// unconsumed remainder. The remainder is normalized with leading whitespace
// removed; a trailing whitespace run is kept as a single space so that
// re-feeding it as a prefix does not glue words together.
func Extract(buffer string) (sentences []string, remainder string) {
	return scan(buffer, false)
}

// Flush is like Extract but treats the buffer as final: a terminator run at
// the very end counts as a boundary.
func Flush(buffer string) (sentences []string, remainder string) {
	return scan(buffer, true)
}

// Normalize trims s and collapses internal whitespace runs to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Valid reports whether s, once normalized, is non-empty and has at least
// one rune that is neither whitespace nor punctuation-only.
func Valid(s string) bool {
	s = Normalize(s)
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, isContent) >= 0
}

func scan(buf string, final bool) ([]string, string) {
	var (
		out   []string
		start int
		// open is where an unfinished tail begins: a terminator run that
		// reaches it may still grow.
		open = len(buf)
	)
	if !final {
		open -= partialTail(buf)
	}
	for i := 0; i < len(buf); {
		r, size := utf8.DecodeRuneInString(buf[i:])
		if !IsTerminator(r) {
			i += size
			continue
		}
		end := i + size
		for end < len(buf) {
			r, size := utf8.DecodeRuneInString(buf[end:])
			if !IsTerminator(r) {
				break
			}
			end += size
		}
		if end == open && !final {
			break
		}
		if s := Normalize(buf[start:end]); Valid(s) {
			out = append(out, s)
		}
		start, i = end, end
	}
	return out, normalizeRemainder(buf[start:])
}

// partialTail returns the length of an incomplete UTF-8 sequence at the end
// of s, which the next delta may complete.
func partialTail(s string) int {
	for n := 1; n < utf8.UTFMax && n <= len(s); n++ {
		if !utf8.RuneStart(s[len(s)-n]) {
			continue
		}
		if utf8.FullRuneInString(s[len(s)-n:]) {
			return 0
		}
		return n
	}
	return 0
}

func normalizeRemainder(s string) string {
	n := Normalize(s)
	if n == "" {
		return ""
	}
	if r, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(r) {
		n += " "
	}
	return n
}
