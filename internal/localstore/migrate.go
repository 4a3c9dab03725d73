package localstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// schemaVersion increments on structural change to the local collections.
const schemaVersion = 2

// Legacy flat keys from the pre-collection storage format.
const (
	legacyWrongKey    = "sat_wrong_questions"
	legacyProgressKey = "sat_question_progress"
)

func (s *Store) checkSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version < schemaVersion {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version=%d`, schemaVersion)); err != nil {
			return fmt.Errorf("bump schema version: %w", err)
		}
	}
	return nil
}

// migrateLegacy consumes the flat-key blobs exactly once: each embedded
// question is re-sanitized, written through the collection upsert, and the
// legacy key deleted afterwards. Absent keys make this a no-op.
func (s *Store) migrateLegacy(ctx context.Context) error {
	if err := s.migrateLegacyWrong(ctx); err != nil {
		return err
	}
	return s.migrateLegacyProgress(ctx)
}

func (s *Store) migrateLegacyWrong(ctx context.Context) error {
	blob, ok, err := s.legacyValue(ctx, legacyWrongKey)
	if err != nil || !ok {
		return err
	}

	var entries []legacyWrongEntry
	if err := json.Unmarshal([]byte(blob), &entries); err != nil {
		return fmt.Errorf("parse legacy wrong questions: %w", err)
	}
	migrated := 0
	for _, e := range entries {
		wq := e.toRecord()
		if wq == nil {
			continue
		}
		if err := s.putWrongQuestion(ctx, *wq); err != nil {
			s.log.WithError(err).WithField("external_id", wq.ExternalID).Warn("migrate wrong question failed")
			continue
		}
		migrated++
	}
	s.log.WithField("migrated", migrated).Info("legacy wrong questions migrated")
	return s.deleteLegacyKey(ctx, legacyWrongKey)
}

func (s *Store) migrateLegacyProgress(ctx context.Context) error {
	blob, ok, err := s.legacyValue(ctx, legacyProgressKey)
	if err != nil || !ok {
		return err
	}

	var byID map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &byID); err != nil {
		return fmt.Errorf("parse legacy progress: %w", err)
	}
	for id, raw := range byID {
		var p legacyProgressEntry
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		s.SaveProgress(ctx, p.toRecord(id))
	}
	return s.deleteLegacyKey(ctx, legacyProgressKey)
}

func (s *Store) legacyValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM legacy_store WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read legacy key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) deleteLegacyKey(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM legacy_store WHERE key=$1`, key)
	return err
}
