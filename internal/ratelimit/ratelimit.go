// Package ratelimit implements a table-backed fixed-window limiter shared
// by every device of a user. Unknown actions are never limited, and any
// storage failure fails open so a degraded limiter cannot block syncing.
package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Config bounds one named action.
type Config struct {
	MaxAttempts   int
	WindowMinutes int
}

// DefaultLimits covers the actions the sync service performs.
var DefaultLimits = map[string]Config{
	"login":    {MaxAttempts: 5, WindowMinutes: 15},
	"register": {MaxAttempts: 3, WindowMinutes: 60},
	"sync":     {MaxAttempts: 10, WindowMinutes: 5},
	"api_call": {MaxAttempts: 100, WindowMinutes: 1},
}

// Decision is the outcome of a single Check call.
type Decision struct {
	Allowed bool
	// ResetAt is set only when the request was denied.
	ResetAt time.Time
}

// Limiter counts attempts per (identifier, action) in the shared rate_limits
// table.
type Limiter struct {
	db     *sql.DB
	limits map[string]Config
	log    logrus.FieldLogger
	now    func() time.Time
}

func New(db *sql.DB, limits map[string]Config, log logrus.FieldLogger) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Limiter{db: db, limits: limits, log: log, now: time.Now}
}

// SetClock overrides the time source. Tests use it to step through windows.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// Check records one attempt and reports whether it is allowed. Attempts for
// unknown actions always pass, and storage errors pass with a logged warning.
func (l *Limiter) Check(ctx context.Context, identifier, action string) Decision {
	cfg, ok := l.limits[action]
	if !ok {
		return Decision{Allowed: true}
	}

	now := l.now()
	windowStart := now.Add(-time.Duration(cfg.WindowMinutes) * time.Minute)

	d, err := l.check(ctx, identifier, action, cfg, now, windowStart)
	if err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"identifier": identifier,
			"action":     action,
		}).Warn("rate limit check failed, allowing request")
		return Decision{Allowed: true}
	}
	return d
}

func (l *Limiter) check(ctx context.Context, identifier, action string, cfg Config, now, windowStart time.Time) (Decision, error) {
	// Drop windows that ended before the current one could have started.
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE window_start < $1`, windowStart.UnixMilli()); err != nil {
		return Decision{}, err
	}

	var count int
	var startMillis int64
	err := l.db.QueryRowContext(ctx,
		`SELECT count, window_start FROM rate_limits
		 WHERE identifier = $1 AND action = $2 AND window_start >= $3`,
		identifier, action, windowStart.UnixMilli()).Scan(&count, &startMillis)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = l.db.ExecContext(ctx,
			`INSERT INTO rate_limits (identifier, action, count, window_start)
			 VALUES ($1, $2, 1, $3)
			 ON CONFLICT (identifier, action) DO UPDATE SET count = 1, window_start = excluded.window_start`,
			identifier, action, now.UnixMilli())
		if err != nil {
			return Decision{}, err
		}
		return Decision{Allowed: true}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	if count >= cfg.MaxAttempts {
		reset := time.UnixMilli(startMillis).Add(time.Duration(cfg.WindowMinutes) * time.Minute)
		return Decision{Allowed: false, ResetAt: reset}, nil
	}

	if _, err := l.db.ExecContext(ctx,
		`UPDATE rate_limits SET count = count + 1 WHERE identifier = $1 AND action = $2`,
		identifier, action); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}

// Reset clears the window for one (identifier, action), for example after a
// successful re-authentication.
func (l *Limiter) Reset(ctx context.Context, identifier, action string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE identifier = $1 AND action = $2`,
		identifier, action)
	return err
}
