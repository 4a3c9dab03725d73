// Package localstore is the embedded cache for wrong-answer and progress
// records. It favors availability over strict error propagation: a failing
// read degrades to an empty result and a failing write to a logged no-op, so
// UI callers never see a storage fault from this layer.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepsync/practice-sync/internal/notify"
	"github.com/prepsync/practice-sync/internal/question"
)

type lifecycle int

const (
	stateUnopened lifecycle = iota
	stateSchemaCheck
	stateLegacyMigration
	stateReady
)

type Store struct {
	db    *sql.DB
	bus   *notify.Bus
	log   logrus.FieldLogger
	now   func() time.Time
	state lifecycle
}

// New wraps an already-connected local database. Open must be called before
// any record operation.
func New(db *sql.DB, bus *notify.Bus, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if bus == nil {
		bus = notify.NewBus()
	}
	return &Store{db: db, bus: bus, log: log, now: time.Now, state: stateUnopened}
}

// Bus exposes the mutation-notification bus for subscribers.
func (s *Store) Bus() *notify.Bus { return s.bus }

// Open runs the lifecycle state machine: schema check, then the one-time
// legacy flat-key migration, then Ready. Reopening is idempotent; the
// migration is a no-op once the legacy keys are gone.
func (s *Store) Open(ctx context.Context) error {
	s.state = stateSchemaCheck
	if err := s.checkSchema(ctx); err != nil {
		s.state = stateUnopened
		return err
	}
	s.state = stateLegacyMigration
	if err := s.migrateLegacy(ctx); err != nil {
		// Migration failure leaves current data untouched; the store still
		// comes up and migration retries on the next open.
		s.log.WithError(err).Warn("legacy migration failed")
	}
	s.state = stateReady
	return nil
}

func (s *Store) ready() bool { return s.state == stateReady }

// WrongQuestions returns every wrong-answer record, empty on storage failure.
func (s *Store) WrongQuestions(ctx context.Context) []question.WrongQuestion {
	if !s.ready() {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, question_json, user_answer, correct_answer, attempts, wrong_at, is_synced, COALESCE(sync_time,'')
		FROM wrong_questions`)
	if err != nil {
		s.log.WithError(err).Warn("load wrong questions failed")
		return nil
	}
	defer rows.Close()

	var out []question.WrongQuestion
	for rows.Next() {
		wq, err := scanWrongQuestion(rows)
		if err != nil {
			s.log.WithError(err).Warn("scan wrong question failed")
			continue
		}
		out = append(out, wq)
	}
	return out
}

// UnsyncedWrongQuestions returns records not yet confirmed on the remote side.
func (s *Store) UnsyncedWrongQuestions(ctx context.Context) []question.WrongQuestion {
	var out []question.WrongQuestion
	for _, wq := range s.WrongQuestions(ctx) {
		if !wq.IsSynced {
			out = append(out, wq)
		}
	}
	return out
}

// WrongQuestion fetches one record by its external id.
func (s *Store) WrongQuestion(ctx context.Context, externalID string) (question.WrongQuestion, bool) {
	if !s.ready() {
		return question.WrongQuestion{}, false
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT external_id, question_json, user_answer, correct_answer, attempts, wrong_at, is_synced, COALESCE(sync_time,'')
		FROM wrong_questions WHERE external_id=$1`, externalID)
	wq, err := scanWrongQuestion(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.WithError(err).Warn("load wrong question failed")
		}
		return question.WrongQuestion{}, false
	}
	return wq, true
}

// SaveWrongQuestion sanitizes raw, upserts the record under its external id
// with attempts incremented, and notifies subscribers after commit. Returns
// nil only when the input is nil or the write ultimately failed; sanitization
// problems degrade to a minimal record instead of failing.
func (s *Store) SaveWrongQuestion(ctx context.Context, raw any, userAnswer string) *question.WrongQuestion {
	cleaned := question.Clean(raw)
	if cleaned == nil {
		return nil
	}

	wq := question.WrongQuestion{
		ExternalID:    cleaned.ExternalID,
		Question:      cleaned,
		UserAnswer:    userAnswer,
		CorrectAnswer: cleaned.CorrectAnswer[0],
		Timestamp:     s.now().UnixMilli(),
		Attempts:      1,
	}
	if existing, ok := s.WrongQuestion(ctx, cleaned.ExternalID); ok {
		wq.Attempts = existing.Attempts + 1
	}
	if err := s.putWrongQuestion(ctx, wq); err != nil {
		s.log.WithError(err).WithField("external_id", wq.ExternalID).Warn("save wrong question failed")
		return nil
	}
	s.bus.NotifyAll()
	return &wq
}

// PutWrongQuestion upserts a fully-formed record. Used by import and by the
// sync download path; fires the bus only when notifyAfter is set so imports
// can batch a single notification.
func (s *Store) PutWrongQuestion(ctx context.Context, wq question.WrongQuestion, notifyAfter bool) error {
	if err := s.putWrongQuestion(ctx, wq); err != nil {
		s.log.WithError(err).WithField("external_id", wq.ExternalID).Warn("put wrong question failed")
		return err
	}
	if notifyAfter {
		s.bus.NotifyAll()
	}
	return nil
}

func (s *Store) putWrongQuestion(ctx context.Context, wq question.WrongQuestion) error {
	if s.state == stateUnopened {
		return errors.New("store not open")
	}
	qj, err := json.Marshal(wq.Question)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wrong_questions (external_id, question_json, user_answer, correct_answer, attempts, wrong_at, is_synced, sync_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (external_id) DO UPDATE SET
			question_json=excluded.question_json,
			user_answer=excluded.user_answer,
			correct_answer=excluded.correct_answer,
			attempts=excluded.attempts,
			wrong_at=excluded.wrong_at,
			is_synced=excluded.is_synced,
			sync_time=excluded.sync_time`,
		wq.ExternalID, string(qj), wq.UserAnswer, wq.CorrectAnswer, wq.Attempts, wq.Timestamp, wq.IsSynced, nullable(wq.SyncTime))
	return err
}

// MarkSynced records a confirmed remote write for one record.
func (s *Store) MarkSynced(ctx context.Context, externalID string) {
	if !s.ready() {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE wrong_questions SET is_synced=1, sync_time=$1 WHERE external_id=$2`,
		s.now().UTC().Format(time.RFC3339), externalID)
	if err != nil {
		s.log.WithError(err).WithField("external_id", externalID).Warn("mark synced failed")
		return
	}
	s.bus.NotifyAll()
}

func (s *Store) DeleteWrongQuestion(ctx context.Context, externalID string) {
	if !s.ready() {
		return
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wrong_questions WHERE external_id=$1`, externalID); err != nil {
		s.log.WithError(err).Warn("delete wrong question failed")
		return
	}
	s.bus.NotifyAll()
}

func (s *Store) ClearWrongQuestions(ctx context.Context) {
	if !s.ready() {
		return
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wrong_questions`); err != nil {
		s.log.WithError(err).Warn("clear wrong questions failed")
		return
	}
	s.bus.NotifyAll()
}

// SaveProgress upserts one per-question progress record.
func (s *Store) SaveProgress(ctx context.Context, p question.Progress) {
	if s.state == stateUnopened {
		return
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_progress (question_id, answered, is_correct, user_answer, ts, checked)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (question_id) DO UPDATE SET
			answered=excluded.answered,
			is_correct=excluded.is_correct,
			user_answer=excluded.user_answer,
			ts=excluded.ts,
			checked=excluded.checked`,
		p.QuestionID, p.Answered, p.IsCorrect, p.UserAnswer, p.Timestamp, p.Checked)
	if err != nil {
		s.log.WithError(err).WithField("question_id", p.QuestionID).Warn("save progress failed")
	}
}

// Progress returns all progress records keyed by question id, empty on failure.
func (s *Store) Progress(ctx context.Context) map[string]question.Progress {
	out := map[string]question.Progress{}
	if !s.ready() {
		return out
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, answered, is_correct, user_answer, ts, checked FROM question_progress`)
	if err != nil {
		s.log.WithError(err).Warn("load progress failed")
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var p question.Progress
		if err := rows.Scan(&p.QuestionID, &p.Answered, &p.IsCorrect, &p.UserAnswer, &p.Timestamp, &p.Checked); err != nil {
			s.log.WithError(err).Warn("scan progress failed")
			continue
		}
		out[p.QuestionID] = p
	}
	return out
}

// AppendSyncLog records the outcome of one sync pass for the status endpoint.
func (s *Store) AppendSyncLog(ctx context.Context, kind string, synced, conflicts int, errMsg string) {
	if !s.ready() {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (kind, synced, conflicts, error, created_at) VALUES ($1,$2,$3,$4,$5)`,
		kind, synced, conflicts, errMsg, s.now().Unix())
	if err != nil {
		s.log.WithError(err).Warn("append sync log failed")
	}
}

// SyncLogEntry is one recorded sync pass.
type SyncLogEntry struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Synced    int    `json:"synced"`
	Conflicts int    `json:"conflicts"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func (s *Store) RecentSyncLog(ctx context.Context, limit int) []SyncLogEntry {
	if !s.ready() {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, synced, conflicts, error, created_at FROM sync_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		s.log.WithError(err).Warn("load sync log failed")
		return nil
	}
	defer rows.Close()
	var out []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Synced, &e.Conflicts, &e.Error, &e.CreatedAt); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWrongQuestion(row rowScanner) (question.WrongQuestion, error) {
	var wq question.WrongQuestion
	var qjson string
	if err := row.Scan(&wq.ExternalID, &qjson, &wq.UserAnswer, &wq.CorrectAnswer, &wq.Attempts, &wq.Timestamp, &wq.IsSynced, &wq.SyncTime); err != nil {
		return question.WrongQuestion{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &wq.Question); err != nil {
		wq.Question = &question.CleanedQuestion{ExternalID: wq.ExternalID, CorrectAnswer: []string{wq.CorrectAnswer}}
	}
	return wq, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
