// Package ledger provides the durable per-fingerprint processing record used
// for deduplication across runs.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

// FileLedger keeps entries in a single JSON file, read fully at open and
// flushed after every write. A mutex enforces the single-writer discipline;
// concurrent pipeline writes queue on it and apply in arrival order.
type FileLedger struct {
	path      string
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]domain.LedgerEntry
}

var _ ports.Ledger = (*FileLedger)(nil)

type fileSnapshot struct {
	Entries map[string]domain.LedgerEntry `json:"entries"`
}

// OpenFile loads the ledger file, expiring entries older than retention.
// A missing file starts an empty ledger; an unreadable or corrupt one is a
// StorageError, since dedup cannot be guaranteed without it.
func OpenFile(path string, retention time.Duration) (*FileLedger, error) {
	l := &FileLedger{
		path:      path,
		retention: retention,
		now:       time.Now,
		entries:   map[string]domain.LedgerEntry{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, &domain.StorageError{Op: "read", Err: err}
		}
		return l, nil
	}

	var snap fileSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &domain.StorageError{Op: "parse", Err: err}
	}
	if snap.Entries != nil {
		l.entries = snap.Entries
	}

	if expired := l.expire(); expired > 0 {
		if err := l.flush(); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Has reports whether the fingerprint is known to the ledger.
func (l *FileLedger) Has(_ context.Context, fingerprint string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[fingerprint]
	return ok, nil
}

// Get returns the entry for a fingerprint, if any.
func (l *FileLedger) Get(_ context.Context, fingerprint string) (domain.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[fingerprint]
	return entry, ok, nil
}

// Record upserts an entry and flushes it to disk. A succeeded entry is
// terminal: attempts to regress it to pending or failed are rejected.
func (l *FileLedger) Record(_ context.Context, entry domain.LedgerEntry) error {
	if entry.Fingerprint == "" {
		return &domain.StorageError{Op: "record", Err: fmt.Errorf("empty fingerprint")}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.entries[entry.Fingerprint]; ok {
		if prev.Status == domain.StatusSucceeded && entry.Status != domain.StatusSucceeded {
			return &domain.StorageError{
				Op:  "record",
				Err: fmt.Errorf("fingerprint %s already succeeded, refusing to regress to %s", entry.Fingerprint, entry.Status),
			}
		}
	}

	l.entries[entry.Fingerprint] = entry
	return l.flush()
}

// expire drops entries whose last attempt is older than the retention window.
// Caller must hold the lock or have exclusive access.
func (l *FileLedger) expire() int {
	if l.retention <= 0 {
		return 0
	}
	cutoff := l.now().Add(-l.retention)
	expired := 0
	for fp, entry := range l.entries {
		if entry.LastAttemptAt.Before(cutoff) {
			delete(l.entries, fp)
			expired++
		}
	}
	return expired
}

// flush writes the snapshot atomically via a temp file and rename.
func (l *FileLedger) flush() error {
	data, err := json.MarshalIndent(fileSnapshot{Entries: l.entries}, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "marshal", Err: err}
	}

	tmp := l.path + ".tmp"
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.StorageError{Op: "mkdir", Err: err}
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &domain.StorageError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return &domain.StorageError{Op: "rename", Err: err}
	}
	return nil
}
