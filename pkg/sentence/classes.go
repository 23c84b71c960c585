package sentence

import "unicode"

// terminators are the sentence-final marks. A run of consecutive
// terminators forms a single boundary.
var terminators = runeSet("。！？.!?")

// punctuationOnly is the class of runes that do not count as content. A
// candidate made only of these (and whitespace) is rejected.
var punctuationOnly = runeSet(
	"\"“”‘’'" + // quotes
		"，,、" + // commas
		"。.！？!?" + // terminators
		":：;；" + // colons
		"…" + // ellipsis
		"-—" + // dashes
		"（）()[]【】", // brackets
)

func runeSet(s string) map[rune]struct{} {
	m := make(map[rune]struct{}, len(s))
	for _, r := range s {
		m[r] = struct{}{}
	}
	return m
}

// IsTerminator reports whether r ends a sentence.
func IsTerminator(r rune) bool {
	_, ok := terminators[r]
	return ok
}

// IsPunctuation reports whether r belongs to the punctuation-only class.
func IsPunctuation(r rune) bool {
	_, ok := punctuationOnly[r]
	return ok
}

// isContent reports whether r carries content, i.e. it is neither
// whitespace nor punctuation-only.
func isContent(r rune) bool {
	return !unicode.IsSpace(r) && !IsPunctuation(r)
}
