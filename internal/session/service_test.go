package session_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepsync/practice-sync/internal/db"
	"github.com/prepsync/practice-sync/internal/ratelimit"
	"github.com/prepsync/practice-sync/internal/session"
)

type openLimiter struct{ denied bool }

func (l *openLimiter) Check(ctx context.Context, identifier, action string) ratelimit.Decision {
	return ratelimit.Decision{Allowed: !l.denied}
}
func (l *openLimiter) Reset(ctx context.Context, identifier, action string) error { return nil }

func newTestService(t *testing.T) (*session.Service, *session.TokenService, context.Context) {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenRemote(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	tokens := session.NewTokenService("test-secret")
	return session.NewService(conn, tokens, &openLimiter{}, log), tokens, ctx
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens, ctx := newTestService(t)

	sess, err := svc.Register(ctx, "1.2.3.4", "alice_01", "alice@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Token == "" || sess.DeviceID == "" {
		t.Fatal("register must produce a token and device id")
	}

	claims, err := tokens.Parse(sess.Token)
	if err != nil || claims.Sub != sess.User.ID || claims.Device != sess.DeviceID {
		t.Fatalf("token claims mismatch: %+v err=%v", claims, err)
	}

	got, err := svc.Login(ctx, "1.2.3.4", "alice@example.com", "hunter2hunter2", sess.DeviceID)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.User.ID != sess.User.ID {
		t.Fatal("login resolved a different user")
	}
	if !svc.Validate(ctx, got.User.ID, got.DeviceID) {
		t.Fatal("fresh session should validate")
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.Register(ctx, "ip", "bob_01", "bob@example.com", "longenough"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "ip", "bob_01", "other@example.com", "longenough"); err != session.ErrUserExists {
		t.Fatalf("duplicate username: got %v", err)
	}
	if _, err := svc.Register(ctx, "ip", "ok_name", "not-an-email", "longenough"); err == nil {
		t.Fatal("invalid email accepted")
	}
	if _, err := svc.Register(ctx, "ip", "ok_name", "ok@example.com", "short"); err == nil {
		t.Fatal("short password accepted")
	}
	if _, err := svc.Register(ctx, "ip", "x", "ok@example.com", "longenough"); err == nil {
		t.Fatal("too-short username accepted")
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.Register(ctx, "ip", "carol_01", "carol@example.com", "correcthorse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.Login(ctx, "ip", "carol@example.com", "wrong-password", ""); err != session.ErrInvalidCredentials {
			t.Fatalf("failure %d: got %v", i+1, err)
		}
	}
	// Sixth attempt hits the lock even with the right password.
	if _, err := svc.Login(ctx, "ip", "carol@example.com", "correcthorse", ""); err != session.ErrAccountLocked {
		t.Fatalf("expected lock, got %v", err)
	}

	// Lock expires after thirty minutes.
	svc.SetClock(func() time.Time { return time.Now().Add(31 * time.Minute) })
	if _, err := svc.Login(ctx, "ip", "carol@example.com", "correcthorse", ""); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
}

func TestRateLimitedLogin(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenRemote(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	svc := session.NewService(conn, session.NewTokenService("s"), &openLimiter{denied: true}, log)

	if _, err := svc.Login(ctx, "ip", "a@example.com", "pw", ""); err != session.ErrRateLimited {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if _, err := svc.Register(ctx, "ip", "erin_01", "erin@example.com", "longenough"); err != session.ErrRateLimited {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _, ctx := newTestService(t)

	sess, err := svc.Register(ctx, "ip", "dave_01", "dave@example.com", "longenough")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Logout(ctx, sess.User.ID, sess.DeviceID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if svc.Validate(ctx, sess.User.ID, sess.DeviceID) {
		t.Fatal("session still valid after logout")
	}
}
