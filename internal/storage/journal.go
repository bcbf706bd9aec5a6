package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"btcarena/internal/event"
)

// Journal is an append-only SQLite audit log of engine events. It is never
// the source of truth — the JSON snapshot is — but it survives snapshot
// overwrites and gives ops a queryable history of fills, skips and claims.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database with WAL mode enabled.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type INTEGER NOT NULL,
			account_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append stores one event.
func (j *Journal) Append(ctx context.Context, ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		"INSERT INTO events (type, account_id, ts, payload) VALUES (?, ?, ?, ?)",
		uint16(ev.GetType()), ev.GetAccountID(), ev.GetTs().UnixMicro(), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// JournalEntry is one row read back from the journal.
type JournalEntry struct {
	ID        int64
	Type      event.Type
	AccountID string
	Ts        time.Time
	Payload   []byte
}

// Recent returns the newest n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, type, account_id, ts, payload FROM events ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var typ uint16
		var ts int64
		if err := rows.Scan(&e.ID, &typ, &e.AccountID, &ts, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = event.Type(typ)
		e.Ts = time.UnixMicro(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (j *Journal) UpsertMetadata(ctx context.Context, key, value string) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, time.Now().Unix(),
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys
// return the empty string.
func (j *Journal) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := j.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Notifier adapts the journal to the engine's notifier interface. Append
// failures are logged, never propagated: the audit trail must not block or
// fail trading.
func (j *Journal) Notifier() event.Notifier {
	return journalNotifier{j: j}
}

type journalNotifier struct {
	j *Journal
}

func (n journalNotifier) Notify(ev event.Event) {
	if err := n.j.Append(context.Background(), ev); err != nil {
		slog.Warn("journal append failed",
			slog.String("type", ev.GetType().String()),
			slog.Any("error", err))
	}
}
