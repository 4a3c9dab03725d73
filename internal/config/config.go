package config

import (
	"os"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// Local cache database (always sqlite).
	LocalDSN string

	// Shared store the devices reconcile against.
	RemoteDriver string // sqlite|postgres
	RemoteDSN    string

	JWTSecret string

	// Conflict detection windows. Local records newer than the cloud copy by
	// more than AutoResolveWindow win automatically; contradictory answers
	// within ConflictWindow of each other need user input.
	AutoResolveWindow time.Duration
	ConflictWindow    time.Duration

	// Periodic background reconciliation.
	SyncInterval time.Duration

	// Directory for export snapshots.
	ExportDir string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		LocalDSN:           envOr("LOCAL_DSN", ""),
		RemoteDriver:       envOr("REMOTE_DRIVER", "sqlite"),
		RemoteDSN:          envOr("REMOTE_DSN", ""),
		JWTSecret:          envOr("JWT_SECRET", "dev-secret-change-me"),
		AutoResolveWindow:  envDuration("AUTO_RESOLVE_WINDOW", time.Minute),
		ConflictWindow:     envDuration("CONFLICT_WINDOW", 5*time.Minute),
		SyncInterval:       envDuration("SYNC_INTERVAL", 10*time.Minute),
		ExportDir:          envOr("EXPORT_DIR", "./data/exports"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://practice.prepsync.app"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
