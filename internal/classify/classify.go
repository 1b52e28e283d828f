// Package classify decides whether a speech-to-text transcript is a real
// interview answer or recognition noise (silence misheard as filler,
// leaked video captions, music descriptions). The policy is an ordered
// table of named rules evaluated in fixed precedence; the first matching
// rule wins.
//
// The rule order and thresholds are deliberately frozen: they were tuned
// against observed transcripts, and changing them changes product
// behaviour, not correctness.
package classify

import "strings"

// Sentinel is the placeholder stored and submitted in place of a
// transcript that is not a real answer. It is itself a valid, storable
// answer value, distinct from empty input.
const Sentinel = "No Answer"

// Result is the outcome of classifying one transcript.
type Result struct {
	// IsAnswer is true when the transcript looks like a genuine answer.
	IsAnswer bool

	// Rule names the rule that rejected the transcript. Empty for real
	// answers. Intended for logs only, never for display.
	Rule string
}

// candidate is a transcript prepared for rule evaluation. All rules
// operate on the same normalized views, computed once.
type candidate struct {
	raw   string   // original transcript
	norm  string   // trimmed, lowercased
	clean string   // norm with trailing punctuation stripped
	words []string // norm split on whitespace, each stripped of punctuation
}

func prepare(transcript string) candidate {
	norm := strings.ToLower(strings.TrimSpace(transcript))
	clean := strings.TrimRight(norm, ".,!? ")
	fields := strings.Fields(norm)
	words := make([]string, len(fields))
	for i, w := range fields {
		words[i] = strings.Trim(w, ".,!?\"'")
	}
	return candidate{raw: transcript, norm: norm, clean: clean, words: words}
}

// hasWord reports whether w appears as a whole token in the candidate.
func (c candidate) hasWord(w string) bool {
	for _, got := range c.words {
		if got == w {
			return true
		}
	}
	return false
}

// countPhrases counts how many distinct phrases from vocab occur in the
// candidate. Single short words are matched on token boundaries; longer
// phrases by substring.
func (c candidate) countPhrases(vocab []string) int {
	n := 0
	for _, p := range vocab {
		if c.containsPhrase(p) {
			n++
		}
	}
	return n
}

func (c candidate) containsPhrase(p string) bool {
	if !strings.Contains(p, " ") && len(p) <= 4 {
		return c.hasWord(p)
	}
	return strings.Contains(c.norm, p)
}

// Classify evaluates the rule table against transcript. It is pure,
// deterministic, and total: every input yields a Result and no input
// panics.
func Classify(transcript string) Result {
	c := prepare(transcript)
	for _, r := range rules {
		if r.match(c) {
			return Result{IsAnswer: false, Rule: r.name}
		}
	}
	return Result{IsAnswer: true}
}

// Apply classifies transcript and returns the text that should be stored
// and submitted: the trimmed transcript for real answers, [Sentinel]
// otherwise.
func Apply(transcript string) (string, Result) {
	res := Classify(transcript)
	if !res.IsAnswer {
		return Sentinel, res
	}
	return strings.TrimSpace(transcript), res
}
