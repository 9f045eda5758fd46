// Package session persists the signed-in backend session between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
)

// currentKey holds the one session this client keeps.
var currentKey = []byte("session:current")

// Store is a Badger-backed backend.SessionStore.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ backend.SessionStore = (*Store)(nil)

// Open opens (or creates) the session database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	logger.Debug("session store opened", slog.String("path", dir))
	return &Store{db: db, logger: logger}, nil
}

// Load returns the saved session, or nil when there is none.
func (s *Store) Load(_ context.Context) (*domain.Session, error) {
	var sess domain.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(currentKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

// Save replaces the saved session.
func (s *Store) Save(_ context.Context, sess *domain.Session) error {
	if sess == nil {
		return s.Clear(context.Background())
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(currentKey, data)
	})
}

// Clear forgets the saved session.
func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(currentKey)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Memory is an in-process SessionStore.
type Memory struct {
	mu   sync.Mutex
	sess *domain.Session
}

var _ backend.SessionStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Load returns a copy of the stored session.
func (m *Memory) Load(_ context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	cp := *m.sess
	return &cp, nil
}

// Save stores a copy of sess.
func (m *Memory) Save(_ context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess == nil {
		m.sess = nil
		return nil
	}
	cp := *sess
	m.sess = &cp
	return nil
}

// Clear forgets the stored session.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()
	return nil
}
