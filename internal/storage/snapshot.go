package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"btcarena/internal/domain"
)

// ErrSaveFailed wraps persistence I/O errors. A failed save never rolls
// back the in-memory mutation; callers surface it as a retryable condition.
var ErrSaveFailed = errors.New("failed to persist state")

// Snapshot is a whole point-in-time capture of engine state. Load and Save
// always move the full snapshot; there are no partial writes.
type Snapshot struct {
	SavedAtUnix int64                               `json:"saved_at"`
	Accounts    map[string]*domain.Account          `json:"accounts"`
	Orders      map[string]*domain.ConditionalOrder `json:"orders"`
	Winner      domain.WinnerState                  `json:"winner"`
	LastQuote   *domain.Quote                       `json:"last_quote,omitempty"`
}

// NewSnapshot returns an empty snapshot with maps initialized.
func NewSnapshot() Snapshot {
	return Snapshot{
		Accounts: make(map[string]*domain.Account),
		Orders:   make(map[string]*domain.ConditionalOrder),
	}
}

// Store persists engine snapshots.
type Store interface {
	// Load returns the last saved snapshot, or an empty one if nothing has
	// been saved yet.
	Load() (Snapshot, error)
	// Save writes the whole snapshot synchronously.
	Save(Snapshot) error
}

// FileStore keeps the snapshot in a single JSON file. Writes go through a
// temp file and rename so a crash mid-save never leaves a torn snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path. The parent directory must
// already exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

/// Load reads the snapshot file. A missing file is not an error: the engine
// starts fresh.
func (s *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no snapshot file, starting fresh", slog.String("path", s.path))
			return NewSnapshot(), nil
		}
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Accounts == nil {
		snap.Accounts = make(map[string]*domain.Account)
	}
	if snap.Orders == nil {
		snap.Orders = make(map[string]*domain.ConditionalOrder)
	}

	slog.Info("snapshot loaded",
		slog.String("path", s.path),
		slog.Int("accounts", len(snap.Accounts)),
		slog.Int("orders", len(snap.Orders)))
	return snap, nil
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(snap Snapshot) error {
	snap.SavedAtUnix = time.Now().Unix()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrSaveFailed, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: write: %v", ErrSaveFailed, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename: %v", ErrSaveFailed, err)
	}
	return nil
}

// Path returns the snapshot file location (for logging).
func (s *FileStore) Path() string {
	return filepath.Clean(s.path)
}
