// Package reminder keeps reminders on disk and fires reminders and timers
// back onto the bus when they come due.
package reminder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

type Reminder struct {
	Text    string `json:"text"`
	When    string `json:"when"`
	Created string `json:"created"`
	// Channel the reminder was set from. Due reminders are announced there.
	Channel string `json:"channel,omitempty"`
}

// Store is a JSON array file. Every mutation is a full load-modify-write
// under one lock.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// All returns the stored reminders. A missing or unreadable file is an
// empty list.
func (s *Store) All() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *Store) Add(r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.load(), r)
	return s.save(list)
}

func (s *Store) load() []Reminder {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read reminders", "path", s.path, "err", err)
		}
		return []Reminder{}
	}

	var list []Reminder
	if err := json.Unmarshal(data, &list); err != nil {
		slog.Warn("Reminder file is corrupt, starting empty", "path", s.path, "err", err)
		return []Reminder{}
	}
	if list == nil {
		list = []Reminder{}
	}

	return list
}

func (s *Store) save(list []Reminder) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reminders: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create reminder dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write reminders: %w", err)
	}

	return nil
}
