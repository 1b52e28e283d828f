package session

import (
	"fmt"
	"strings"

	"github.com/intervox/intervox/internal/classify"
	"github.com/intervox/intervox/internal/interview"
)

// localEstimate produces an approximate feedback result from the turn
// history alone. It is used when the server's evaluation is unavailable
// or empty, and is explicitly labeled as reduced-confidence output.
func localEstimate(turns []Turn) interview.Feedback {
	var answered, skipped int
	var totalWords int
	for _, t := range turns {
		if t.Role != RoleCandidate {
			continue
		}
		if strings.HasPrefix(t.Content, classify.Sentinel) {
			skipped++
			continue
		}
		answered++
		totalWords += len(strings.Fields(t.Content))
	}

	if answered == 0 {
		return interview.Feedback{
			OverallScore: 0,
			Improvements: []string{"Answer the questions out loud; skipped questions cannot be evaluated."},
			Summary:      "No answers were recorded, so no evaluation is possible. This is a local estimate produced without server evaluation.",
			Source:       interview.FeedbackSourceLocalEstimate,
		}
	}

	avgWords := float64(totalWords) / float64(answered)
	answerRate := float64(answered) / float64(answered+skipped)

	communication := clamp(30+avgWords, 30, 85)
	relevance := clamp(40+50*answerRate, 40, 90)
	technical := clamp((communication+relevance)/2-5, 25, 80)
	overall := clamp(0.3*relevance+0.3*technical+0.4*communication, 0, 100)

	fb := interview.Feedback{
		OverallScore: round1(overall),
		ComponentScores: interview.Scores{
			Relevance:         round1(relevance),
			TechnicalAccuracy: round1(technical),
			Communication:     round1(communication),
		},
		Strengths: []string{
			fmt.Sprintf("Answered %d of %d questions.", answered, answered+skipped),
		},
		Recommendations: []string{
			"Request detailed feedback again later for a full evaluation.",
		},
		Summary: "Approximate result computed locally from answer length and completion rate; the evaluation service was unavailable.",
		Source:  interview.FeedbackSourceLocalEstimate,
	}
	if avgWords >= 40 {
		fb.Strengths = append(fb.Strengths, "Answers were substantive in length.")
	} else {
		fb.Improvements = append(fb.Improvements, "Expand answers with concrete examples and outcomes.")
	}
	if skipped > 0 {
		fb.Improvements = append(fb.Improvements,
			fmt.Sprintf("%d question(s) went unanswered; practice speaking through uncertainty.", skipped))
	}
	return fb
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
