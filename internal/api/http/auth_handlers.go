package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/prepsync/practice-sync/internal/session"
)

type sessionOut struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DeviceID    string `json:"device_id"`
}

func sessionResponse(s *session.Session) sessionOut {
	return sessionOut{
		AccessToken: s.Token,
		UserID:      s.User.ID,
		Username:    s.User.Username,
		DeviceID:    s.DeviceID,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrRateLimited):
		return 429
	case errors.Is(err, session.ErrAccountLocked):
		return 403
	case errors.Is(err, session.ErrInvalidCredentials):
		return 401
	case errors.Is(err, session.ErrUserExists):
		return 409
	default:
		return 400
	}
}

func RegisterHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		s, err := svc.Register(r.Context(), clientIP(r), req.Username, req.Email, req.Password)
		if err != nil {
			http.Error(w, err.Error(), authStatus(err))
			return
		}
		_ = json.NewEncoder(w).Encode(sessionResponse(s))
	}
}

func LoginHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			DeviceID string `json:"device_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		s, err := svc.Login(r.Context(), clientIP(r), req.Email, req.Password, req.DeviceID)
		if err != nil {
			http.Error(w, err.Error(), authStatus(err))
			return
		}
		_ = json.NewEncoder(w).Encode(sessionResponse(s))
	}
}

func LogoutHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := session.CurrentUserID(r.Context())
		if userID == "" {
			http.Error(w, "not authenticated", 401)
			return
		}
		if err := svc.Logout(r.Context(), userID, session.CurrentDeviceID(r.Context())); err != nil {
			http.Error(w, "logout failed", 500)
			return
		}
		w.WriteHeader(204)
	}
}
