// Package session implements the Session Record substrate: a
// bounded-size serialized blob per conversation, addressed by a 32-hex id
// with strict path-traversal guards on load.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Barent/natshell/internal/convo"
	"github.com/Barent/natshell/internal/logging"
)

// maxSessionBytes caps a single session file on write.
const maxSessionBytes = 10 * 1024 * 1024

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Record is a Session Record: id, creation time, title, and the full
// message history.
type Record struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Title     string          `json:"title"`
	Messages  []convo.Message `json:"messages"`
}

// Store persists and loads Session Records under dir, mode 0o700.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ValidID reports whether id is exactly 32 hex characters, the
// path-traversal guard required before any filesystem access.
func ValidID(id string) bool {
	return hexID.MatchString(id)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes rec as a bounded-size JSON blob under an atomic rename.
func (s *Store) Save(rec *Record) error {
	if !ValidID(rec.ID) {
		return fmt.Errorf("invalid session id %q: must be 32 hex characters", rec.ID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if len(data) > maxSessionBytes {
		return fmt.Errorf("session %s exceeds %d byte cap (%d bytes)", rec.ID, maxSessionBytes, len(data))
	}

	dest := s.path(rec.ID)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session temp file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename session file: %w", err)
	}

	logging.Session("saved session %s (%d bytes, %d messages)", rec.ID, len(data), len(rec.Messages))
	return nil
}

// Load reads a Session Record by id, refusing any id that is not exactly
// 32 hex characters before touching the filesystem.
func (s *Store) Load(id string) (*Record, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid session id %q: must be 32 hex characters", id)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	return &rec, nil
}

// List returns the ids of all sessions in the store, newest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	type stamped struct {
		id  string
		mod time.Time
	}
	var found []stamped
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id := name[:len(name)-len(filepath.Ext(name))]
		if !ValidID(id) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{id: id, mod: info.ModTime()})
	}

	for i := 0; i < len(found); i++ {
		for j := i + 1; j < len(found); j++ {
			if found[j].mod.After(found[i].mod) {
				found[i], found[j] = found[j], found[i]
			}
		}
	}

	ids := make([]string, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}

// Delete removes a session file by id.
func (s *Store) Delete(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("invalid session id %q: must be 32 hex characters", id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
