package evaluate

import (
	"math"
	"strconv"
	"strings"

	"github.com/prepsync/practice-sync/internal/question"
)

// CheckAnswer reports whether selected matches the question's correct answer.
//
// mcq: the first letter of correct_answer maps to a zero-based option index
// (A=0, B=1, ...) and the selected option id is compared against that option.
// spr: normalized string match against any candidate, or numeric equality of
// both sides parsed as floats. Unknown types and empty selections are false.
func CheckAnswer(q *question.CleanedQuestion, selected string) bool {
	if q == nil || selected == "" {
		return false
	}
	switch q.Type {
	case "mcq":
		return checkChoice(q, selected)
	case "spr":
		return checkFreeResponse(q.CorrectAnswer, selected)
	}
	return false
}

func checkChoice(q *question.CleanedQuestion, selected string) bool {
	if len(q.CorrectAnswer) == 0 || q.CorrectAnswer[0] == "" {
		return false
	}
	idx := int(q.CorrectAnswer[0][0]) - 'A'
	if idx < 0 || idx >= len(q.AnswerOptions) {
		return false
	}
	return selected == q.AnswerOptions[idx].ID
}

func checkFreeResponse(candidates []string, selected string) bool {
	user := strings.ToLower(strings.TrimSpace(selected))
	uv, uerr := strconv.ParseFloat(user, 64)
	numericUser := uerr == nil && !math.IsNaN(uv)

	for _, cand := range candidates {
		c := strings.ToLower(strings.TrimSpace(cand))
		if user == c {
			return true
		}
		if !numericUser {
			continue
		}
		if cv, err := strconv.ParseFloat(c, 64); err == nil && !math.IsNaN(cv) && uv == cv {
			return true
		}
	}
	return false
}

// SelectedLetter maps a selected option id to its choice letter (index 0 -> A).
// Returns "" when the id is not among the options.
func SelectedLetter(selected string, options []question.AnswerOption) string {
	if selected == "" {
		return ""
	}
	for i, opt := range options {
		if opt.ID == selected {
			return string(rune('A' + i))
		}
	}
	return ""
}
