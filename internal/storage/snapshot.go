// Package storage keeps export snapshots so a wiped local cache can be
// restored from a known-good backup.
package storage

import (
	"io"
	"time"
)

type SnapshotStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	List() ([]string, error)
}

// SnapshotKey names a snapshot by capture time, newest-sorting last.
func SnapshotKey(t time.Time) string {
	return "backup-" + t.UTC().Format("20060102T150405") + ".json"
}
