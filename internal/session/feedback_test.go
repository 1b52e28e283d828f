package session

import (
	"strings"
	"testing"

	"github.com/intervox/intervox/internal/classify"
	"github.com/intervox/intervox/internal/interview"
)

func TestLocalEstimateNoAnswers(t *testing.T) {
	turns := []Turn{
		{Role: RoleInterviewer, Content: "Tell me about yourself.", QuestionNumber: 1},
		{Role: RoleCandidate, Content: classify.Sentinel, QuestionNumber: 1},
	}
	fb := localEstimate(turns)

	if fb.OverallScore != 0 {
		t.Errorf("OverallScore = %v, want 0", fb.OverallScore)
	}
	if fb.Source != interview.FeedbackSourceLocalEstimate {
		t.Errorf("Source = %q, want local estimate", fb.Source)
	}
}

func TestLocalEstimateScoresAnsweredSession(t *testing.T) {
	answer := strings.Repeat("word ", 50)
	turns := []Turn{
		{Role: RoleInterviewer, Content: "Q1", QuestionNumber: 1},
		{Role: RoleCandidate, Content: answer, QuestionNumber: 1},
		{Role: RoleInterviewer, Content: "Q2", QuestionNumber: 2},
		{Role: RoleCandidate, Content: classify.Sentinel + " (time expired)", QuestionNumber: 2},
	}
	fb := localEstimate(turns)

	if fb.OverallScore <= 0 || fb.OverallScore > 100 {
		t.Errorf("OverallScore = %v, want in (0, 100]", fb.OverallScore)
	}
	if fb.ComponentScores.Communication < 30 || fb.ComponentScores.Communication > 85 {
		t.Errorf("Communication = %v, out of expected band", fb.ComponentScores.Communication)
	}
	var mentionsSkip bool
	for _, imp := range fb.Improvements {
		if strings.Contains(imp, "unanswered") {
			mentionsSkip = true
		}
	}
	if !mentionsSkip {
		t.Errorf("Improvements = %v, want a note about the skipped question", fb.Improvements)
	}
}

func TestLocalEstimateDeterministic(t *testing.T) {
	turns := []Turn{
		{Role: RoleInterviewer, Content: "Q1", QuestionNumber: 1},
		{Role: RoleCandidate, Content: "I shipped the billing rewrite on time.", QuestionNumber: 1},
	}
	first := localEstimate(turns)
	for i := 0; i < 10; i++ {
		if got := localEstimate(turns); got.OverallScore != first.OverallScore {
			t.Fatalf("iteration %d: score %v != %v", i, got.OverallScore, first.OverallScore)
		}
	}
}
