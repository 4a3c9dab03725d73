package http

import (
	"encoding/json"
	"net/http"

	"github.com/prepsync/practice-sync/internal/evaluate"
	"github.com/prepsync/practice-sync/internal/localstore"
	"github.com/prepsync/practice-sync/internal/question"
	"github.com/prepsync/practice-sync/internal/syncsvc"
)

// SubmitAnswerHandler records one answered question: the answer is scored,
// progress is saved, and a miss is added to the wrong-question cache and
// pushed to the cloud best effort.
func SubmitAnswerHandler(store *localstore.Store, syncer *syncsvc.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question map[string]any `json:"question"`
			Answer   string         `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		q := question.Clean(req.Question)
		if q == nil || q.ExternalID == "" {
			http.Error(w, "question with external_id required", 400)
			return
		}

		correct := evaluate.CheckAnswer(q, req.Answer)
		now := syncer.Now().UnixMilli()
		store.SaveProgress(r.Context(), question.Progress{
			QuestionID: q.ExternalID,
			Answered:   true,
			IsCorrect:  correct,
			UserAnswer: req.Answer,
			Timestamp:  now,
			Checked:    true,
		})

		out := struct {
			Correct       bool                    `json:"correct"`
			CorrectAnswer []string                `json:"correctAnswer"`
			Record        *question.WrongQuestion `json:"record,omitempty"`
			CloudSynced   bool                    `json:"cloudSynced"`
		}{Correct: correct, CorrectAnswer: q.CorrectAnswer}

		if !correct {
			out.Record = store.SaveWrongQuestion(r.Context(), req.Question, req.Answer)
			out.CloudSynced = syncer.SyncSingleImmediately(r.Context(), req.Question, req.Answer)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// ExplanationHandler splits a question rationale into per-choice fragments.
func ExplanationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question       map[string]any `json:"question"`
			SelectedAnswer string         `json:"selectedAnswer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		q := question.Clean(req.Question)
		if q == nil {
			http.Error(w, "question required", 400)
			return
		}
		correct := ""
		if len(q.CorrectAnswer) > 0 {
			correct = q.CorrectAnswer[0]
		}
		entries := evaluate.ParseExplanation(q.Rationale, correct, req.SelectedAnswer, q.AnswerOptions)
		_ = json.NewEncoder(w).Encode(entries)
	}
}

// ProgressHandler returns the per-question progress map.
func ProgressHandler(store *localstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(store.Progress(r.Context()))
	}
}

// SaveProgressHandler upserts one progress record directly, for answers
// checked client-side.
func SaveProgressHandler(store *localstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p question.Progress
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if p.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		store.SaveProgress(r.Context(), p)
		w.WriteHeader(204)
	}
}

// SessionStatsHandler aggregates progress into session accuracy numbers.
func SessionStatsHandler(store *localstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress := store.Progress(r.Context())
		list := make([]question.Progress, 0, len(progress))
		for _, p := range progress {
			list = append(list, p)
		}
		_ = json.NewEncoder(w).Encode(evaluate.ComputeSessionStats(list))
	}
}
