package classify

// Vocabulary lists for the rule table. Entries are lowercase; single words
// of four characters or fewer are matched on token boundaries, everything
// else by substring (see candidate.containsPhrase).
//
// The seed lists come from observed Whisper hallucinations on silent or
// noisy recordings. Extend with care: additions shift the
// answer/no-answer boundary for every interview variant.

// closingCredits are phrases leaked from video outros and subtitle
// credits.
var closingCredits = []string{
	"thank you for watching",
	"thanks for watching",
	"thank you so much for watching",
	"see you in the next video",
	"don't forget to subscribe",
	"like and subscribe",
	"subtitles by",
	"captions by",
	"amara.org",
	"copyright",
	"all rights reserved",
}

// fillerWords are single-token acknowledgement interjections.
var fillerWords = []string{
	"um", "umm", "uh", "uhh", "er", "erm", "hmm", "hm", "mhm", "mm-hmm",
	"ah", "oh", "huh", "okay", "ok", "yeah", "yep",
}

// farewells are sign-off phrases with no answer content.
var farewells = []string{
	"goodbye",
	"bye bye",
	"see you later",
	"see you soon",
	"see you next time",
	"take care",
	"good night",
	"have a great day",
}

// captionArtifacts are subtitle and caption markers that sometimes leak
// into transcripts verbatim.
var captionArtifacts = []string{
	"(silence)",
	"[silence]",
	"(noise)",
	"[noise]",
	"(background noise)",
	"subtitle",
	"closed caption",
	"transcribed by",
}

// irrelevantPhrases is the broader vocabulary of polite noise; two or
// more hits reject the transcript.
var irrelevantPhrases = []string{
	"thank you",
	"thanks",
	"i love you",
	"please subscribe",
	"welcome back",
	"my channel",
	"in this video",
	"hit the bell",
	"see you",
	"bye",
}

// audioVocabulary describes music and ambient sound; two or more hits
// reject the transcript, one hit combines with "playing".
var audioVocabulary = []string{
	"music",
	"song",
	"sound",
	"audio",
	"noise",
	"melody",
	"instrumental",
	"singing",
	"humming",
	"applause",
	"clapping",
	"beat",
}

// songTitles are fragments of songs Whisper is known to hallucinate over
// hold music and background audio.
var songTitles = []string{
	"never gonna give you up",
	"happy birthday to you",
	"twinkle twinkle little star",
	"jingle bells",
	"we wish you a merry christmas",
	"auld lang syne",
}

// professionalMarkers indicate first-person professional content; any hit
// exempts a long transcript from rule 12.
var professionalMarkers = []string{
	"i", "my", "me", "we", "our",
	"team", "project", "work", "job", "role",
	"experience", "company", "skill",
	"developed", "designed", "built", "led", "managed", "implemented",
}

// descriptiveVocabulary marks third-person scene description; long
// transcripts made of it (with no professional markers) are caption
// leakage, not answers.
var descriptiveVocabulary = []string{
	"music",
	"sound",
	"audio",
	"playing",
	"scene",
	"camera",
	"footage",
	"video",
	"screen",
	"background",
}
