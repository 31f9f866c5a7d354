package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when no live record exists for the ID.
// Corrupt on-disk records are discarded and reported the same way, since
// the caller's recovery is identical: restart the job.
var ErrNotFound = errors.New("session not found")

// CorruptHandler is invoked when Get discards an unreadable record, so the
// event can be logged without the store depending on the logger.
type CorruptHandler func(sessionID string, err error)

// Store persists one JSON file per session under dir, with an in-memory
// read-through cache in front. The file is the source of truth: the cache
// is only updated after a write has durably landed, and a cache miss always
// falls through to disk.
type Store struct {
	dir       string
	mu        sync.RWMutex
	cache     map[string]*Record
	onCorrupt CorruptHandler
}

// NewStore creates the session directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Store{
		dir:   dir,
		cache: make(map[string]*Record),
	}, nil
}

// OnCorrupt registers a handler called whenever a corrupt record is discarded.
func (s *Store) OnCorrupt(fn CorruptHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCorrupt = fn
}

// Dir returns the directory records are stored in.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Put writes the full record. The JSON is written to a staging file and
// renamed into place so a reader never observes a partial record; the cache
// is refreshed only after the rename succeeds.
func (s *Store) Put(rec *Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("put session: empty session id")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", rec.SessionID, err)
	}

	final := s.path(rec.SessionID)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session %s: %w", rec.SessionID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit session %s: %w", rec.SessionID, err)
	}

	s.mu.Lock()
	cp := *rec
	s.cache[rec.SessionID] = &cp
	s.mu.Unlock()

	return nil
}

// Get returns the record for sessionID, or ErrNotFound. An empty or
// undecodable file is removed, reported through the corrupt handler, and
// treated as not found.
func (s *Store) Get(sessionID string) (*Record, error) {
	s.mu.RLock()
	cached, ok := s.cache[sessionID]
	s.mu.RUnlock()
	if ok {
		cp := *cached
		return &cp, nil
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	if len(data) == 0 {
		s.discardCorrupt(sessionID, errors.New("empty session file"))
		return nil, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.discardCorrupt(sessionID, err)
		return nil, ErrNotFound
	}

	s.mu.Lock()
	cp := rec
	s.cache[sessionID] = &cp
	s.mu.Unlock()

	return &rec, nil
}

// discardCorrupt removes an unreadable record file rather than letting
// callers retry against garbage state.
func (s *Store) discardCorrupt(sessionID string, cause error) {
	_ = os.Remove(s.path(sessionID))

	s.mu.RLock()
	fn := s.onCorrupt
	s.mu.RUnlock()
	if fn != nil {
		fn(sessionID, cause)
	}
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListIDs enumerates every stored session ID. Staging files are skipped.
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
