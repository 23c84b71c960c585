package sentence

// Scanner is a rolling buffer over a stream of text deltas. The zero value
// is ready to use. A Scanner is not safe for concurrent use.
type Scanner struct {
	buf string
}

// Feed appends delta to the buffer and returns the sentences it completes.
func (sc *Scanner) Feed(delta string) []string {
	out, rem := Extract(sc.buf + delta)
	sc.buf = rem
	return out
}

// Flush closes the buffer and returns the sentences completed by a trailing
// terminator run. The unterminated tail stays available via Remainder.
func (sc *Scanner) Flush() []string {
	out, rem := Flush(sc.buf)
	sc.buf = rem
	return out
}

// Remainder returns the normalized unconsumed text.
func (sc *Scanner) Remainder() string {
	return Normalize(sc.buf)
}

// Reset discards the buffer.
func (sc *Scanner) Reset() {
	sc.buf = ""
}
