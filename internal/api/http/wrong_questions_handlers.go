package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepsync/practice-sync/internal/localstore"
	"github.com/prepsync/practice-sync/internal/storage"
	"github.com/prepsync/practice-sync/internal/syncsvc"
)

func ListWrongQuestionsHandler(store *localstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(store.WrongQuestions(r.Context()))
	}
}

// DeleteWrongQuestionHandler removes a record locally and from the cloud.
// Cloud failures are reported but do not block the local delete.
func DeleteWrongQuestionHandler(store *localstore.Store, syncer *syncsvc.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "externalID")
		if id == "" {
			http.Error(w, "externalID required", 400)
			return
		}
		store.DeleteWrongQuestion(r.Context(), id)
		cloudDeleted := syncer.DeleteCloudWrongAnswer(r.Context(), id)
		_ = json.NewEncoder(w).Encode(map[string]bool{"deleted": true, "cloudDeleted": cloudDeleted})
	}
}

func ClearWrongQuestionsHandler(store *localstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store.ClearWrongQuestions(r.Context())
		w.WriteHeader(204)
	}
}

// ExportHandler streams the backup envelope. With ?snapshot=1 a copy is also
// kept in the snapshot store and its key returned in a header.
func ExportHandler(store *localstore.Store, snapshots storage.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := store.Export(r.Context())
		if r.URL.Query().Get("snapshot") == "1" && snapshots != nil {
			key := storage.SnapshotKey(time.Now())
			if _, err := snapshots.Put(key, bytes.NewReader(data)); err == nil {
				w.Header().Set("X-Snapshot-Key", key)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="practice-backup.json"`)
		_, _ = w.Write(data)
	}
}

// ImportHandler merges an uploaded backup envelope into the local cache.
func ImportHandler(store *localstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
		if err != nil {
			http.Error(w, "read body", 400)
			return
		}
		if err := store.Import(r.Context(), data); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		w.WriteHeader(204)
	}
}

// ListSnapshotsHandler returns stored snapshot keys, oldest first.
func ListSnapshotsHandler(snapshots storage.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := snapshots.List()
		if err != nil {
			http.Error(w, "list snapshots", 500)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		_ = json.NewEncoder(w).Encode(keys)
	}
}

// RestoreSnapshotHandler imports a previously stored snapshot by key.
func RestoreSnapshotHandler(store *localstore.Store, snapshots storage.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		rc, err := snapshots.Get(key)
		if err != nil {
			http.Error(w, "snapshot not found", 404)
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			http.Error(w, "read snapshot", 500)
			return
		}
		if err := store.Import(r.Context(), data); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		w.WriteHeader(204)
	}
}
