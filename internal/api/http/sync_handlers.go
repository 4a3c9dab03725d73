package http

import (
	"encoding/json"
	"net/http"

	"github.com/prepsync/practice-sync/internal/localstore"
	"github.com/prepsync/practice-sync/internal/syncsvc"
)

// TriggerSyncHandler runs one sync pass. The mode selects between the full
// bidirectional reconciliation, a plain upload, a batch download, and a
// force upload of everything.
func TriggerSyncHandler(syncer *syncsvc.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}

		var res syncsvc.SyncResult
		switch req.Mode {
		case "", "bidirectional":
			res = syncer.BidirectionalSync(r.Context())
		case "upload":
			res = syncer.SyncToCloud(r.Context())
		case "force_upload":
			res = syncer.ForceUploadAll(r.Context())
		case "download":
			ok := syncer.SyncFromCloud(r.Context())
			res = syncsvc.SyncResult{Success: ok}
			if !ok {
				res.Errors = []string{"download failed"}
			}
		default:
			http.Error(w, "unknown sync mode", 400)
			return
		}

		status := 200
		if res.RateLimited {
			status = 429
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(res)
	}
}

// SyncStatusHandler reports cloud/local counts and the recent sync history.
func SyncStatusHandler(store *localstore.Store, syncer *syncsvc.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := struct {
			syncsvc.CloudStatus
			History []localstore.SyncLogEntry `json:"history"`
		}{
			CloudStatus: syncer.CheckCloudStatus(r.Context()),
			History:     store.RecentSyncLog(r.Context(), 20),
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// ResolveConflictsHandler applies the user's per-question decisions.
func ResolveConflictsHandler(syncer *syncsvc.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Resolutions []syncsvc.ConflictResolution `json:"resolutions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if len(req.Resolutions) == 0 {
			http.Error(w, "resolutions required", 400)
			return
		}
		ok := syncer.ResolveConflicts(r.Context(), req.Resolutions)
		_ = json.NewEncoder(w).Encode(map[string]bool{"resolved": ok})
	}
}
