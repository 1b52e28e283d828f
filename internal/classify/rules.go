package classify

import "regexp"

// minAnswerLength is the minimum number of characters (after trailing
// punctuation is stripped) a transcript must have to count as an answer.
const minAnswerLength = 10

// longTranscriptLength is the length past which rule 12 requires at least
// one professional or personal marker.
const longTranscriptLength = 80

var (
	// stageDirectionRe matches parenthetical, bracketed or
	// asterisk-delimited stage directions such as "(music playing)",
	// "[applause]" or "*laughs*".
	stageDirectionRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|\*[^*]*\*`)

	// urlRe matches URL-like substrings that leak out of video captions.
	urlRe = regexp.MustCompile(`https?://|www\.|\w+\.(com|org|net|io)\b`)

	// playingBoundaryRe matches "playing" standing alone at a sentence
	// boundary, a common caption fragment.
	playingBoundaryRe = regexp.MustCompile(`(^|[.!?]\s*)playing\s*([.!?]|$)`)
)

// rule pairs a diagnostic name with a predicate over a prepared candidate.
type rule struct {
	name  string
	match func(c candidate) bool
}

// rules is the classifier policy, in evaluation order. First match wins.
// Reordering entries changes product behaviour; do not sort.
var rules = []rule{
	{
		name:  "empty",
		match: func(c candidate) bool { return c.norm == "" },
	},
	{
		name: "closing-credits",
		match: func(c candidate) bool {
			for _, p := range closingCredits {
				if c.clean == p || c.containsPhrase(p) {
					return true
				}
			}
			return false
		},
	},
	{
		name: "filler",
		match: func(c candidate) bool {
			if len(c.words) != 1 {
				return false
			}
			for _, f := range fillerWords {
				if c.words[0] == f {
					return true
				}
			}
			return false
		},
	},
	{
		name:  "too-short",
		match: func(c candidate) bool { return len(c.clean) < minAnswerLength },
	},
	{
		name: "farewell",
		match: func(c candidate) bool {
			for _, p := range farewells {
				if c.containsPhrase(p) {
					return true
				}
			}
			return false
		},
	},
	{
		name: "caption-artifact",
		match: func(c candidate) bool {
			if urlRe.MatchString(c.norm) {
				return true
			}
			for _, p := range captionArtifacts {
				if c.containsPhrase(p) {
					return true
				}
			}
			return false
		},
	},
	{
		name:  "irrelevant-phrases",
		match: func(c candidate) bool { return c.countPhrases(irrelevantPhrases) >= 2 },
	},
	{
		name:  "stage-direction",
		match: func(c candidate) bool { return stageDirectionRe.MatchString(c.norm) },
	},
	{
		name:  "audio-description",
		match: func(c candidate) bool { return c.countPhrases(audioVocabulary) >= 2 },
	},
	{
		name: "playing-music",
		match: func(c candidate) bool {
			if c.hasWord("playing") && c.countPhrases(audioVocabulary) >= 1 {
				return true
			}
			return playingBoundaryRe.MatchString(c.norm)
		},
	},
	{
		name: "song-title",
		match: func(c candidate) bool {
			for _, p := range songTitles {
				if c.containsPhrase(p) {
					return true
				}
			}
			return false
		},
	},
	{
		name: "descriptive-no-pronouns",
		match: func(c candidate) bool {
			if len(c.clean) <= longTranscriptLength {
				return false
			}
			if c.countPhrases(professionalMarkers) > 0 {
				return false
			}
			return c.countPhrases(descriptiveVocabulary) >= 1
		},
	},
}
