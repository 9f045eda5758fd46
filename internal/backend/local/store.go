// Package local is a Backend on an embedded SQLite database. It mirrors the
// hosted backend's behavior closely enough for offline use and tests: the
// same tables, the same select embedding, per-user row visibility and the
// same error statuses.
package local

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so stored times order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements backend.Backend on SQLite.
type Store struct {
	db       *sql.DB
	path     string
	sessions backend.SessionStore
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *domain.Session
	loaded  bool
}

var _ backend.Backend = (*Store)(nil)

// Open opens or creates the database at path. sessions may be nil, in which
// case sign-in lasts as long as the Store.
func Open(path string, sessions backend.SessionStore, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Connection-scoped pragmas go in the DSN so every pooled connection
	// gets them, not just the first.
	db, err := sql.Open("sqlite", path+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == MemoryPath {
		// Every connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger = logger.With(slog.String("component", "local"))
	logger.Debug("sqlite database opened", slog.String("path", path))

	return &Store{
		db:       db,
		path:     path,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

// record is one row as column name to value, ready for JSON.
type record map[string]any

func scanRecords(rows *sql.Rows) ([]record, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(record, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = vals[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// decodeInto hands records to the caller the way an HTTP body would.
func decodeInto(records []record, dest any) error {
	if dest == nil {
		return nil
	}
	if records == nil {
		records = []record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}
