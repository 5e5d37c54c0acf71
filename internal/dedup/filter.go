package dedup

import "strings"

// DefaultMinPhraseLength is the minimum number of characters a transcript
// must exceed to be considered a valid phrase
const DefaultMinPhraseLength = 10

// Filter decides whether a transcript candidate is novel enough to emit.
// The check is containment, not equality: a candidate whose lowercase form
// appears anywhere inside the lowercase last-accepted text is suppressed, so
// a shorter re-recognition of the same utterance never surfaces twice.
// Paraphrases and reordered repeats pass through; that is a known limit of
// the policy.
//
// The filter is owned by the pipeline driver and is not safe for concurrent
// use.
type Filter struct {
	minPhraseLength int
	last            string
}

// NewFilter creates a filter with the given minimum phrase length. Values
// below 1 fall back to the default.
func NewFilter(minPhraseLength int) *Filter {
	if minPhraseLength < 1 {
		minPhraseLength = DefaultMinPhraseLength
	}
	return &Filter{minPhraseLength: minPhraseLength}
}

// Accept reports whether the candidate should be emitted. A candidate is
// accepted only if it is longer than the minimum phrase length and its
// case-insensitive text is not a substring of the last accepted transcript.
// On accept the candidate becomes the new last-accepted transcript.
func (f *Filter) Accept(candidate string) bool {
	if len(candidate) <= f.minPhraseLength {
		return false
	}
	if strings.Contains(strings.ToLower(f.last), strings.ToLower(candidate)) {
		return false
	}

	f.last = candidate
	return true
}

// Last returns the most recently accepted transcript, or the empty string if
// nothing has been accepted yet
func (f *Filter) Last() string {
	return f.last
}

// Reset clears the dedup history. Called when a new session starts.
func (f *Filter) Reset() {
	f.last = ""
}
