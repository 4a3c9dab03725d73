package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService signs and verifies the bearer tokens handed to devices.
type TokenService struct{ hmac []byte }

func NewTokenService(secret string) *TokenService {
	return &TokenService{hmac: []byte(secret)}
}

type Claims struct {
	Sub    string `json:"sub"`
	Device string `json:"device"`
	jwt.RegisteredClaims
}

func (t *TokenService) Issue(userID, deviceID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:    userID,
		Device: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "practice-sync",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(7 * 24 * time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.hmac)
}

func (t *TokenService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.hmac, nil
	})
	if err != nil || !token.Valid {
		return nil, err
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}

type ctxKey string

const (
	ctxKeySub    ctxKey = "sub"
	ctxKeyDevice ctxKey = "device"
)

func WithIdentity(ctx context.Context, userID, deviceID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeySub, userID)
	return context.WithValue(ctx, ctxKeyDevice, deviceID)
}

// CurrentUserID returns the authenticated user id, or "" when the request
// carried no valid token.
func CurrentUserID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySub).(string); ok {
		return s
	}
	return ""
}

func CurrentDeviceID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyDevice).(string); ok {
		return s
	}
	return ""
}

// Middleware rejects requests without a valid bearer token and attaches the
// token's identity to the request context.
func Middleware(t *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := t.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil || c == nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), c.Sub, c.Device)))
		})
	}
}
