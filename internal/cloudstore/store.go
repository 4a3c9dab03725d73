// Package cloudstore is the only writer path from this subsystem into the
// shared remote tables. SQL stays dialect-portable ($N binds, ON CONFLICT)
// so integration tests run against sqlite while production uses postgres.
package cloudstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WrongAnswersByUser returns every wrong-answer row for one user.
func (s *Store) WrongAnswersByUser(ctx context.Context, userID string) ([]UserWrongAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, question_external_id, user_answer, correct_answer, attempts,
		       first_wrong_at, last_wrong_at, is_synced, COALESCE(sync_time, 0)
		FROM user_wrong_answers WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("select wrong answers: %w", err)
	}
	defer rows.Close()

	var out []UserWrongAnswer
	for rows.Next() {
		var a UserWrongAnswer
		if err := rows.Scan(&a.UserID, &a.QuestionExternalID, &a.UserAnswer, &a.CorrectAnswer,
			&a.Attempts, &a.FirstWrongAt, &a.LastWrongAt, &a.IsSynced, &a.SyncTime); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WrongAnswer fetches one row by its composite key.
func (s *Store) WrongAnswer(ctx context.Context, userID, questionID string) (UserWrongAnswer, bool, error) {
	var a UserWrongAnswer
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, question_external_id, user_answer, correct_answer, attempts,
		       first_wrong_at, last_wrong_at, is_synced, COALESCE(sync_time, 0)
		FROM user_wrong_answers WHERE user_id=$1 AND question_external_id=$2`,
		userID, questionID).
		Scan(&a.UserID, &a.QuestionExternalID, &a.UserAnswer, &a.CorrectAnswer,
			&a.Attempts, &a.FirstWrongAt, &a.LastWrongAt, &a.IsSynced, &a.SyncTime)
	if errors.Is(err, sql.ErrNoRows) {
		return UserWrongAnswer{}, false, nil
	}
	if err != nil {
		return UserWrongAnswer{}, false, err
	}
	return a, true, nil
}

// UpsertWrongAnswers writes a batch keyed on (user_id, question_external_id).
// Conflicting rows are overwritten, which keeps re-sync safe against the
// unique constraint even when another device synced first.
func (s *Store) UpsertWrongAnswers(ctx context.Context, answers []UserWrongAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO user_wrong_answers
		(user_id, question_external_id, user_answer, correct_answer, attempts, first_wrong_at, last_wrong_at, is_synced, sync_time)
		VALUES `)
	for i, a := range answers {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args, a.UserID, a.QuestionExternalID, a.UserAnswer, a.CorrectAnswer,
			a.Attempts, a.FirstWrongAt, a.LastWrongAt, a.IsSynced, a.SyncTime)
	}
	sb.WriteString(` ON CONFLICT (user_id, question_external_id) DO UPDATE SET
		user_answer=excluded.user_answer,
		correct_answer=excluded.correct_answer,
		attempts=excluded.attempts,
		first_wrong_at=excluded.first_wrong_at,
		last_wrong_at=excluded.last_wrong_at,
		is_synced=excluded.is_synced,
		sync_time=excluded.sync_time`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upsert wrong answers: %w", err)
	}
	return nil
}

// UpdateWrongAnswer applies merged data to an existing row via a targeted
// update. Deliberately not an upsert: it must not resurrect a row another
// device deleted between diff and execution.
func (s *Store) UpdateWrongAnswer(ctx context.Context, a UserWrongAnswer) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_wrong_answers SET
			user_answer=$1, correct_answer=$2, attempts=$3,
			first_wrong_at=$4, last_wrong_at=$5, is_synced=$6, sync_time=$7
		WHERE user_id=$8 AND question_external_id=$9`,
		a.UserAnswer, a.CorrectAnswer, a.Attempts, a.FirstWrongAt, a.LastWrongAt,
		a.IsSynced, a.SyncTime, a.UserID, a.QuestionExternalID)
	if err != nil {
		return fmt.Errorf("update wrong answer: %w", err)
	}
	return nil
}

func (s *Store) DeleteWrongAnswer(ctx context.Context, userID, questionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_wrong_answers WHERE user_id=$1 AND question_external_id=$2`,
		userID, questionID)
	return err
}

// ExistingMasterIDs reports which of the given external ids already have
// canonical content, in a single batched query.
func (s *Store) ExistingMasterIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id FROM questions_master WHERE external_id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("select master ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// InsertMasters batch-inserts canonical question content. Callers filter out
// existing ids first (ExistingMasterIDs); rows that raced in anyway are left
// untouched rather than overwritten.
func (s *Store) InsertMasters(ctx context.Context, masters []QuestionMaster) error {
	if len(masters) == 0 {
		return nil
	}
	nowUnix := s.now().Unix()
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO questions_master
		(external_id, question_data, domain, type, difficulty_level, created_at, updated_at) VALUES `)
	for i, m := range masters {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, m.ExternalID, m.QuestionData, m.Domain, m.Type, m.DifficultyLevel, nowUnix, nowUnix)
	}
	sb.WriteString(` ON CONFLICT (external_id) DO NOTHING`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert masters: %w", err)
	}
	return nil
}

// UpdateMaster fills in fields for an incomplete master row (ingest path).
func (s *Store) UpdateMaster(ctx context.Context, m QuestionMaster) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions_master SET question_data=$1, domain=$2, type=$3, difficulty_level=$4, updated_at=$5
		WHERE external_id=$6`,
		m.QuestionData, m.Domain, m.Type, m.DifficultyLevel, s.now().Unix(), m.ExternalID)
	return err
}

// MasterByID fetches one canonical question row.
func (s *Store) MasterByID(ctx context.Context, externalID string) (QuestionMaster, bool, error) {
	var m QuestionMaster
	err := s.db.QueryRowContext(ctx, `
		SELECT external_id, question_data, domain, type, difficulty_level, created_at, updated_at
		FROM questions_master WHERE external_id=$1`, externalID).
		Scan(&m.ExternalID, &m.QuestionData, &m.Domain, &m.Type, &m.DifficultyLevel, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return QuestionMaster{}, false, nil
	}
	if err != nil {
		return QuestionMaster{}, false, err
	}
	return m, true, nil
}

// WrongAnswersWithQuestions pulls a user's wrong answers joined with their
// master content in one round trip, for the batch download path.
func (s *Store) WrongAnswersWithQuestions(ctx context.Context, userID string) ([]DownloadedAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.user_id, w.question_external_id, w.user_answer, w.correct_answer, w.attempts,
		       w.first_wrong_at, w.last_wrong_at, w.is_synced, COALESCE(w.sync_time, 0),
		       m.external_id, m.question_data, m.domain, m.type, m.difficulty_level, m.created_at, m.updated_at
		FROM user_wrong_answers w
		JOIN questions_master m ON m.external_id = w.question_external_id
		WHERE w.user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("select joined wrong answers: %w", err)
	}
	defer rows.Close()

	var out []DownloadedAnswer
	for rows.Next() {
		var d DownloadedAnswer
		if err := rows.Scan(
			&d.Answer.UserID, &d.Answer.QuestionExternalID, &d.Answer.UserAnswer, &d.Answer.CorrectAnswer,
			&d.Answer.Attempts, &d.Answer.FirstWrongAt, &d.Answer.LastWrongAt, &d.Answer.IsSynced, &d.Answer.SyncTime,
			&d.Question.ExternalID, &d.Question.QuestionData, &d.Question.Domain, &d.Question.Type,
			&d.Question.DifficultyLevel, &d.Question.CreatedAt, &d.Question.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
