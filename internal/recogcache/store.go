// Package recogcache keeps PlantNet answers in a local SQLite database keyed
// by image digest, so re-running identification over an unchanged directory
// does not spend service quota.
package recogcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"flora/internal/species"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists recognition answers.
type Store struct {
	db   *sql.DB
	path string
}

// Stats summarizes cache contents.
type Stats struct {
	Path    string    `json:"path"`
	Entries int       `json:"entries"`
	Oldest  time.Time `json:"oldest,omitempty"`
	Newest  time.Time `json:"newest,omitempty"`
}

// Scope holds the request settings that shape a service answer. Answers
// cached under one scope are never served for another.
type Scope struct {
	Project    string
	Organ      string
	Language   string
	MaxResults int
}

func (s Scope) normalized() Scope {
	return Scope{
		Project:    strings.ToLower(strings.TrimSpace(s.Project)),
		Organ:      strings.ToLower(strings.TrimSpace(s.Organ)),
		Language:   strings.ToLower(strings.TrimSpace(s.Language)),
		MaxResults: s.MaxResults,
	}
}

// Key derives the cache key for an image submitted under scope.
func Key(data []byte, scope Scope) string {
	scope = scope.normalized()
	h := sha256.New()
	h.Write(data)
	for _, part := range []string{scope.Project, scope.Organ, scope.Language, strconv.Itoa(scope.MaxResults)} {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("recognition cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS recognitions (
		digest TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		organ TEXT NOT NULL,
		results TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`
	if err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	}); err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached answer for key.
func (s *Store) Get(ctx context.Context, key string) ([]species.Result, bool, error) {
	var raw string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT results FROM recognitions WHERE digest = ?`, key).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	var results []species.Result
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if results == nil {
		results = []species.Result{}
	}
	return results, true, nil
}

// Put stores results under key, replacing any earlier answer.
func (s *Store) Put(ctx context.Context, key string, scope Scope, results []species.Result) error {
	stored := make([]species.Result, len(results))
	for i, r := range results {
		r.ImageFilename = ""
		stored[i] = r
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO recognitions (digest, project, organ, results, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(digest) DO UPDATE SET results = excluded.results, created_at = excluded.created_at`,
			key, scope.Project, scope.Organ, string(encoded), now)
		return err
	})
}

// Stats reports entry count and age range.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.path}
	var oldest, newest sql.NullString
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM recognitions`).
			Scan(&stats.Entries, &oldest, &newest)
	})
	if err != nil {
		return stats, fmt.Errorf("read cache stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(time.RFC3339Nano, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(time.RFC3339Nano, newest.String)
	}
	return stats, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM recognitions`)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return res.RowsAffected()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
