// Package session manages user accounts and device sessions for the sync
// service. Accounts live in the shared store; each device gets a uuid
// identity and a row in user_sessions so stale devices can be expired.
package session

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/prepsync/practice-sync/internal/ratelimit"
)

const (
	maxLoginAttempts = 5
	lockDuration     = 30 * time.Minute
	sessionIdleLimit = 24 * time.Hour
	sessionMaxAge    = 7 * 24 * time.Hour
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrRateLimited        = errors.New("too many attempts")
	ErrUserExists         = errors.New("username or email already registered")
)

// Limiter is the slice of the rate limiter the session service needs.
type Limiter interface {
	Check(ctx context.Context, identifier, action string) ratelimit.Decision
	Reset(ctx context.Context, identifier, action string) error
}

type User struct {
	ID       string
	Username string
	Email    string
}

// Session is an authenticated (user, device) pair plus its bearer token.
type Session struct {
	User     User
	DeviceID string
	Token    string
}

type Service struct {
	db      *sql.DB
	tokens  *TokenService
	limiter Limiter
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(db *sql.DB, tokens *TokenService, limiter Limiter, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{db: db, tokens: tokens, limiter: limiter, log: log, now: time.Now}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Register creates an account and opens a session for the calling device.
// callerID is the rate-limit identifier, normally the client address.
func (s *Service) Register(ctx context.Context, callerID, username, email, password string) (*Session, error) {
	if s.limiter != nil {
		if d := s.limiter.Check(ctx, callerID, "register"); !d.Allowed {
			return nil, ErrRateLimited
		}
	}
	if !emailRe.MatchString(email) {
		return nil, errors.New("invalid email format")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters long")
	}
	if !usernameRe.MatchString(username) {
		return nil, errors.New("username must be 3-50 characters of letters, numbers, and underscores")
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2`, username, email).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, err
	}

	u := User{ID: uuid.NewString(), Username: username, Email: email}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, string(hash), s.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, u, "")
}

// Login verifies credentials and opens a session. After five consecutive
// failures the account locks for thirty minutes.
func (s *Service) Login(ctx context.Context, callerID, email, password, deviceID string) (*Session, error) {
	if s.limiter != nil {
		if d := s.limiter.Check(ctx, callerID, "login"); !d.Allowed {
			return nil, ErrRateLimited
		}
	}

	var (
		u           User
		hash        string
		attempts    int
		lockedUntil sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, login_attempts, locked_until
		 FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Username, &u.Email, &hash, &attempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if lockedUntil.Valid && time.UnixMilli(lockedUntil.Int64).After(now) {
		return nil, ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		attempts++
		var lockUntil any
		if attempts >= maxLoginAttempts {
			lockUntil = now.Add(lockDuration).UnixMilli()
		}
		if _, uerr := s.db.ExecContext(ctx,
			`UPDATE users SET login_attempts = $1, locked_until = $2 WHERE id = $3`,
			attempts, lockUntil, u.ID); uerr != nil {
			s.log.WithError(uerr).Warn("record failed login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET login_attempts = 0, locked_until = NULL, last_login = $1 WHERE id = $2`,
		now.UnixMilli(), u.ID); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, callerID, "login"); err != nil {
			s.log.WithError(err).Warn("reset login rate limit")
		}
	}

	sess, err := s.openSession(ctx, u, deviceID)
	if err != nil {
		return nil, err
	}
	s.cleanupOldSessions(ctx)
	return sess, nil
}

func (s *Service) openSession(ctx context.Context, u User, deviceID string) (*Session, error) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	now := s.now().UnixMilli()

	// One active session per device: returning devices replace their row.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND device_id = $2`,
		u.ID, deviceID); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, device_id, login_time, last_activity, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)`,
		uuid.NewString(), u.ID, deviceID, now, now); err != nil {
		return nil, err
	}

	tok, err := s.tokens.Issue(u.ID, deviceID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, DeviceID: deviceID, Token: tok}, nil
}

// Validate reports whether the (user, device) pair still has an active
// session row. Storage errors count as invalid.
func (s *Service) Validate(ctx context.Context, userID, deviceID string) bool {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_sessions
		 WHERE user_id = $1 AND device_id = $2 AND is_active = TRUE`,
		userID, deviceID).Scan(&n)
	if err != nil {
		s.log.WithError(err).Warn("session validation failed")
		return false
	}
	return n > 0
}

// Touch bumps the device's last-activity time.
func (s *Service) Touch(ctx context.Context, userID, deviceID string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET last_activity = $1
		 WHERE user_id = $2 AND device_id = $3 AND is_active = TRUE`,
		s.now().UnixMilli(), userID, deviceID); err != nil {
		s.log.WithError(err).Warn("update session activity")
	}
}

// Logout deactivates the device's session.
func (s *Service) Logout(ctx context.Context, userID, deviceID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND device_id = $2`,
		userID, deviceID)
	return err
}

// cleanupOldSessions deletes long-dead rows and deactivates idle ones.
// Best effort; failures are logged and ignored.
func (s *Service) cleanupOldSessions(ctx context.Context) {
	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE is_active = FALSE AND last_activity < $1`,
		now.Add(-sessionMaxAge).UnixMilli()); err != nil {
		s.log.WithError(err).Warn("delete stale sessions")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE is_active = TRUE AND last_activity < $1`,
		now.Add(-sessionIdleLimit).UnixMilli()); err != nil {
		s.log.WithError(err).Warn("deactivate idle sessions")
	}
}
