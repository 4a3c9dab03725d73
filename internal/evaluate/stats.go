package evaluate

import "github.com/prepsync/practice-sync/internal/question"

// SessionStats aggregates per-question progress for a practice session.
type SessionStats struct {
	TotalQuestions   int     `json:"totalQuestions"`
	Answered         int     `json:"answeredQuestions"`
	CorrectAnswers   int     `json:"correctAnswers"`
	IncorrectAnswers int     `json:"incorrectAnswers"`
	Accuracy         float64 `json:"accuracy"` // percent over answered
}

func ComputeSessionStats(progress []question.Progress) SessionStats {
	s := SessionStats{TotalQuestions: len(progress)}
	for _, p := range progress {
		if !p.Answered {
			continue
		}
		s.Answered++
		if p.IsCorrect {
			s.CorrectAnswers++
		}
	}
	s.IncorrectAnswers = s.Answered - s.CorrectAnswers
	if s.Answered > 0 {
		s.Accuracy = float64(s.CorrectAnswers) / float64(s.Answered) * 100
	}
	return s
}
