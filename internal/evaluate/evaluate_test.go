package evaluate

import (
	"testing"

	"github.com/prepsync/practice-sync/internal/question"
)

func mcqQuestion() *question.CleanedQuestion {
	return &question.CleanedQuestion{
		ExternalID:    "q-1",
		Type:          "mcq",
		CorrectAnswer: []string{"B"},
		AnswerOptions: []question.AnswerOption{
			{ID: "x1", Content: "one"},
			{ID: "x2", Content: "two"},
			{ID: "x3", Content: "three"},
		},
	}
}

func TestCheckAnswerMCQ(t *testing.T) {
	q := mcqQuestion()
	if !CheckAnswer(q, "x2") {
		t.Fatal("expected x2 to match correct letter B")
	}
	if CheckAnswer(q, "x1") {
		t.Fatal("x1 should not match")
	}
	if CheckAnswer(q, "") {
		t.Fatal("empty selection must be false")
	}
}

func TestCheckAnswerMCQOutOfRangeLetter(t *testing.T) {
	q := mcqQuestion()
	q.CorrectAnswer = []string{"D"} // only three options
	if CheckAnswer(q, "x1") {
		t.Fatal("out-of-range correct letter must not match")
	}
}

func TestCheckAnswerSPR(t *testing.T) {
	q := &question.CleanedQuestion{
		Type:          "spr",
		CorrectAnswer: []string{"3.0", "three"},
	}
	cases := []struct {
		in   string
		want bool
	}{
		{"3", true},   // numeric equivalence
		{"3.0", true}, // exact
		{" THREE ", true},
		{"four", false},
		{"NaN", false},
	}
	for _, c := range cases {
		if got := CheckAnswer(q, c.in); got != c.want {
			t.Fatalf("CheckAnswer(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCheckAnswerUnknownType(t *testing.T) {
	q := &question.CleanedQuestion{Type: "essay", CorrectAnswer: []string{"A"}}
	if CheckAnswer(q, "anything") {
		t.Fatal("unknown type must be false")
	}
	if CheckAnswer(nil, "x") {
		t.Fatal("nil question must be false")
	}
}

func TestSelectedLetter(t *testing.T) {
	opts := mcqQuestion().AnswerOptions
	if got := SelectedLetter("x3", opts); got != "C" {
		t.Fatalf("expected C, got %q", got)
	}
	if got := SelectedLetter("missing", opts); got != "" {
		t.Fatalf("expected empty letter, got %q", got)
	}
}

func TestComputeSessionStats(t *testing.T) {
	progress := []question.Progress{
		{QuestionID: "1", Answered: true, IsCorrect: true},
		{QuestionID: "2", Answered: true, IsCorrect: false},
		{QuestionID: "3", Answered: false},
	}
	s := ComputeSessionStats(progress)
	if s.TotalQuestions != 3 || s.Answered != 2 || s.CorrectAnswers != 1 || s.IncorrectAnswers != 1 {
		t.Fatalf("bad stats: %+v", s)
	}
	if s.Accuracy != 50 {
		t.Fatalf("expected 50%% accuracy, got %v", s.Accuracy)
	}
}
