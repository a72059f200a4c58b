package spool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Spool configuration constants.
const (
	// dirPermissions is the permission mode for the spool directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the spool file.
	filePermissions = 0600

	// busyTimeout is the maximum time to wait for a database lock.
	busyTimeout = 5 * time.Second

	// connectionTimeout is the timeout for verifying connectivity at open.
	connectionTimeout = 5 * time.Second

	// DefaultMaxEntries bounds the queue when Config.MaxEntries is zero.
	DefaultMaxEntries = 10000
)

const schema = `
CREATE TABLE IF NOT EXISTS telemetry (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	payload    BLOB NOT NULL,
	properties TEXT NOT NULL DEFAULT '',
	queued_at  INTEGER NOT NULL
);
`

// Entry is one spooled telemetry event.
type Entry struct {
	// ID is the stable queue identity, used to remove the entry after a
	// successful publish.
	ID int64

	// Payload is the telemetry body exactly as it would have been
	// published.
	Payload []byte

	// Properties is the already URL-encoded property bag for the event
	// topic (may be empty).
	Properties string

	// QueuedAt is the epoch second the event entered the spool.
	QueuedAt int64
}

// Config contains spool configuration options.
// These map to the spool section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite spool file.
	// The directory will be created if it doesn't exist.
	Path string

	// MaxEntries bounds the queue; the oldest entries are dropped when
	// the bound is reached. Zero uses DefaultMaxEntries.
	MaxEntries int
}

// Spool is a durable bounded FIFO of unsent telemetry.
type Spool struct {
	db         *sql.DB
	path       string
	maxEntries int
}

// Open creates the spool, creating the file and schema on first run.
//
// Parameters:
//   - cfg: Spool configuration
//
// Returns:
//   - *Spool: Ready spool
//   - error: If the file cannot be opened or the schema applied
func Open(cfg Config) (*Spool, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}

	// WAL keeps enqueue cheap while a drain is reading.
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening spool: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying spool connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("applying spool schema: %w", err)
	}

	// Ignore error - file might not exist yet on first run, will be set after first write
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	return &Spool{
		db:         db,
		path:       cfg.Path,
		maxEntries: cfg.MaxEntries,
	}, nil
}

// Enqueue stores one telemetry event, evicting the oldest entries when
// the queue is at capacity.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - payload: Telemetry body
//   - properties: Already URL-encoded property bag (may be empty)
//
// Returns:
//   - error: If the insert or eviction fails
func (s *Spool) Enqueue(ctx context.Context, payload []byte, properties string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting spool transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	_, err = tx.ExecContext(ctx,
		"INSERT INTO telemetry (payload, properties, queued_at) VALUES (?, ?, ?)",
		payload, properties, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("enqueueing telemetry: %w", err)
	}

	// Evict oldest entries past the bound.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM telemetry WHERE id IN (
			SELECT id FROM telemetry ORDER BY id DESC LIMIT -1 OFFSET ?
		)`,
		s.maxEntries,
	)
	if err != nil {
		return fmt.Errorf("evicting old telemetry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing spool transaction: %w", err)
	}
	return nil
}

// Peek returns up to limit entries in queue order without removing
// them. The caller removes each entry after its publish succeeds.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - limit: Maximum entries to return
//
// Returns:
//   - []Entry: Oldest-first batch, empty when the spool is empty
//   - error: If the query fails
func (s *Spool) Peek(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, payload, properties, queued_at FROM telemetry ORDER BY id ASC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading spool: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Payload, &e.Properties, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scanning spool entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spool: %w", err)
	}
	return entries, nil
}

// Remove deletes one entry by ID after it was successfully published.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - id: Entry identity from Peek
//
// Returns:
//   - error: If the delete fails
func (s *Spool) Remove(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM telemetry WHERE id = ?", id); err != nil {
		return fmt.Errorf("removing spool entry %d: %w", id, err)
	}
	return nil
}

// Len returns the number of queued entries.
func (s *Spool) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM telemetry").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting spool entries: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the spool is accessible and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Spool) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("spool health check failed: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the spool file.
func (s *Spool) Path() string {
	return s.path
}

// Close closes the spool gracefully.
// It should be called when the application shuts down.
func (s *Spool) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing spool: %w", err)
	}
	return nil
}
