package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// OpenLocal opens the embedded cache database and ensures its schema exists.
// The local side is always sqlite.
func OpenLocal(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:practice.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaLocal); err != nil {
		return nil, fmt.Errorf("ensure local schema: %w", err)
	}
	return db, nil
}

// OpenRemote opens the shared multi-tenant store and ensures its schema exists.
// Production is postgres; tests run the same SQL against sqlite.
func OpenRemote(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:remote.db?cache=shared&mode=rwc"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/practice?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaRemote); err != nil {
		return nil, fmt.Errorf("ensure remote schema: %w", err)
	}
	return db, nil
}

const schemaLocal = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS wrong_questions (
  external_id TEXT PRIMARY KEY,
  question_json TEXT NOT NULL,       -- sanitized question snapshot
  user_answer TEXT NOT NULL,
  correct_answer TEXT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 1,
  wrong_at INTEGER NOT NULL,         -- epoch millis of last miss
  is_synced INTEGER NOT NULL DEFAULT 0,
  sync_time TEXT
);

CREATE TABLE IF NOT EXISTS question_progress (
  question_id TEXT PRIMARY KEY,
  answered INTEGER NOT NULL DEFAULT 0,
  is_correct INTEGER NOT NULL DEFAULT 0,
  user_answer TEXT NOT NULL DEFAULT '',
  ts INTEGER NOT NULL,
  checked INTEGER NOT NULL DEFAULT 0
);

-- Flat-key blobs from the pre-collection storage format, consumed once by the
-- legacy migration and then deleted.
CREATE TABLE IF NOT EXISTS legacy_store (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,                -- full|immediate|download|resolve
  synced INTEGER NOT NULL DEFAULT 0,
  conflicts INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
`

const schemaRemote = `
CREATE TABLE IF NOT EXISTS questions_master (
  external_id TEXT PRIMARY KEY,
  question_data TEXT NOT NULL,
  domain TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT 'mcq',
  difficulty_level INTEGER,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_wrong_answers (
  user_id TEXT NOT NULL,
  question_external_id TEXT NOT NULL,
  user_answer TEXT NOT NULL,
  correct_answer TEXT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 1,
  first_wrong_at BIGINT NOT NULL,
  last_wrong_at BIGINT NOT NULL,
  is_synced BOOLEAN NOT NULL DEFAULT FALSE,
  sync_time BIGINT,
  PRIMARY KEY (user_id, question_external_id)
);

CREATE TABLE IF NOT EXISTS rate_limits (
  identifier TEXT NOT NULL,
  action TEXT NOT NULL,
  count INTEGER NOT NULL DEFAULT 1,
  window_start BIGINT NOT NULL,
  PRIMARY KEY (identifier, action)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  login_attempts INTEGER NOT NULL DEFAULT 0,
  locked_until BIGINT,
  last_login BIGINT,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  device_id TEXT NOT NULL,
  browser_ua TEXT NOT NULL DEFAULT '',
  ip_address TEXT NOT NULL DEFAULT '',
  login_time BIGINT NOT NULL,
  last_activity BIGINT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);
`
