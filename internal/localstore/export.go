package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prepsync/practice-sync/internal/question"
)

// exportVersion tags the interchange envelope.
const exportVersion = "2.0"

// Envelope is the plain-text interchange format for backup and transfer
// between devices.
type Envelope struct {
	WrongQuestions []question.WrongQuestion     `json:"wrongQuestions"`
	Progress       map[string]question.Progress `json:"progress"`
	ExportDate     string                       `json:"exportDate"`
	Version        string                       `json:"version"`
}

// Export serializes both collections. It always succeeds with best-effort
// data: on internal failure the corresponding collection is empty.
func (s *Store) Export(ctx context.Context) []byte {
	env := Envelope{
		WrongQuestions: s.WrongQuestions(ctx),
		Progress:       s.Progress(ctx),
		ExportDate:     s.now().UTC().Format(time.RFC3339),
		Version:        exportVersion,
	}
	if env.WrongQuestions == nil {
		env.WrongQuestions = []question.WrongQuestion{}
	}
	buf, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		s.log.WithError(err).Warn("export marshal failed")
		empty := Envelope{
			WrongQuestions: []question.WrongQuestion{},
			Progress:       map[string]question.Progress{},
			ExportDate:     s.now().UTC().Format(time.RFC3339),
			Version:        exportVersion,
		}
		buf, _ = json.Marshal(empty)
	}
	return buf
}

// Import parses an interchange envelope and writes its records. Unknown or
// missing top-level keys are treated as empty. Each wrong-question entry is
// re-sanitized before storage; subscribers are notified exactly once at the
// end, not per record.
func (s *Store) Import(ctx context.Context, data []byte) error {
	if !s.ready() {
		return errors.New("store not open")
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse import payload: %w", err)
	}

	for _, wq := range env.WrongQuestions {
		if wq.Question != nil {
			wq.Question = question.Clean(questionToMap(wq.Question))
		}
		if wq.CorrectAnswer == "" && wq.Question != nil && len(wq.Question.CorrectAnswer) > 0 {
			wq.CorrectAnswer = wq.Question.CorrectAnswer[0]
		}
		if wq.ExternalID == "" {
			continue
		}
		if err := s.putWrongQuestion(ctx, wq); err != nil {
			s.log.WithError(err).WithField("external_id", wq.ExternalID).Warn("import wrong question failed")
		}
	}
	for id, p := range env.Progress {
		if p.QuestionID == "" {
			p.QuestionID = id
		}
		s.SaveProgress(ctx, p)
	}
	s.bus.NotifyAll()
	return nil
}

// questionToMap feeds an already-typed snapshot back through the sanitizer.
func questionToMap(cq *question.CleanedQuestion) map[string]any {
	buf, err := json.Marshal(cq)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil
	}
	return m
}

// legacyWrongEntry mirrors the pre-collection record shape.
type legacyWrongEntry struct {
	ExternalID    string          `json:"externalId"`
	Question      json.RawMessage `json:"question"`
	UserAnswer    string          `json:"userAnswer"`
	CorrectAnswer string          `json:"correctAnswer"`
	Timestamp     int64           `json:"timestamp"`
	Attempts      int             `json:"attempts"`
	IsSynced      bool            `json:"is_synced"`
	SyncTime      string          `json:"sync_time"`
}

func (e legacyWrongEntry) toRecord() *question.WrongQuestion {
	var rawQ map[string]any
	_ = json.Unmarshal(e.Question, &rawQ)
	cleaned := question.Clean(rawQ)
	if cleaned == nil {
		cleaned = question.Clean(map[string]any{"external_id": e.ExternalID})
	}
	if e.ExternalID == "" {
		e.ExternalID = cleaned.ExternalID
	}
	if e.ExternalID == "" {
		return nil
	}
	correct := e.CorrectAnswer
	if correct == "" && len(cleaned.CorrectAnswer) > 0 {
		correct = cleaned.CorrectAnswer[0]
	}
	attempts := e.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &question.WrongQuestion{
		ExternalID:    e.ExternalID,
		Question:      cleaned,
		UserAnswer:    e.UserAnswer,
		CorrectAnswer: correct,
		Timestamp:     e.Timestamp,
		Attempts:      attempts,
		IsSynced:      e.IsSynced,
		SyncTime:      e.SyncTime,
	}
}

type legacyProgressEntry struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	IsCorrect  bool   `json:"isCorrect"`
	UserAnswer string `json:"userAnswer"`
	Timestamp  int64  `json:"timestamp"`
	Checked    bool   `json:"checked"`
}

func (e legacyProgressEntry) toRecord(id string) question.Progress {
	if e.QuestionID == "" {
		e.QuestionID = id
	}
	return question.Progress{
		QuestionID: e.QuestionID,
		Answered:   e.Answered,
		IsCorrect:  e.IsCorrect,
		UserAnswer: e.UserAnswer,
		Timestamp:  e.Timestamp,
		Checked:    e.Checked,
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
