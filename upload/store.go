// Package upload keeps the files chosen on the upload step and stages them
// into the backend's working directory.
package upload

import (
	"errors"
	"fmt"
	"sync"

	"Bobine/config"
	"Bobine/materialize"

	"github.com/samber/lo"
)

var (
	ErrLimit       = errors.New("file limit exceeded")
	ErrUnknownSlot = errors.New("unknown upload zone")
)

// LimitError carries the slot maximum for the user-facing message.
type LimitError struct {
	Category string
	Zone     string
	Max      int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit exceeded: at most %d file(s) in %s/%s", e.Max, e.Category, e.Zone)
}

func (e *LimitError) Unwrap() error { return ErrLimit }

// Slot is the JSON view of one sub-zone.
type Slot struct {
	Category string             `json:"category"`
	Index    int                `json:"index"`
	Zone     string             `json:"zone"`
	MaxFiles int                `json:"maxFiles"`
	Files    []materialize.File `json:"files"`
}

// Store holds the selected files keyed by category and sub-zone index.
type Store struct {
	mu         sync.RWMutex
	categories []config.Category
	files      map[string][][]materialize.File
}

func NewStore(categories []config.Category) *Store {
	s := &Store{categories: categories}
	s.Reset()
	return s
}

func (s *Store) zone(category string, index int) (config.Zone, bool) {
	for _, c := range s.categories {
		if c.Key != category {
			continue
		}
		if index < 0 || index >= len(c.Zones) {
			return config.Zone{}, false
		}
		return c.Zones[index], true
	}
	return config.Zone{}, false
}

func (s *Store) check(category string, index, count int) error {
	z, ok := s.zone(category, index)
	if !ok {
		return fmt.Errorf("%w: %s[%d]", ErrUnknownSlot, category, index)
	}
	if count > z.MaxFiles {
		return &LimitError{Category: category, Zone: z.Name, Max: z.MaxFiles}
	}
	return nil
}

// SetFiles replaces the files of a slot. An update over the slot maximum is
// refused and leaves the slot unchanged.
func (s *Store) SetFiles(category string, index int, files []materialize.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(category, index, len(files)); err != nil {
		return err
	}
	s.files[category][index] = append([]materialize.File(nil), files...)
	return nil
}

// AddFiles appends to a slot with the same limit rule as SetFiles.
func (s *Store) AddFiles(category string, index int, files []materialize.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(category, index, 0); err != nil {
		return err
	}
	cur := s.files[category][index]
	if err := s.check(category, index, len(cur)+len(files)); err != nil {
		return err
	}
	s.files[category][index] = append(append([]materialize.File(nil), cur...), files...)
	return nil
}

// RemoveFile drops every file named name from a slot.
func (s *Store) RemoveFile(category string, index int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(category, index, 0); err != nil {
		return err
	}
	s.files[category][index] = lo.Reject(s.files[category][index], func(f materialize.File, _ int) bool {
		return f.Name == name
	})
	return nil
}

// Files returns a copy of a slot's files.
func (s *Store) Files(category string, index int) []materialize.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots, ok := s.files[category]
	if !ok || index < 0 || index >= len(slots) {
		return nil
	}
	return append([]materialize.File(nil), slots[index]...)
}

// Remaining returns how many more files a slot accepts.
func (s *Store) Remaining(category string, index int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zone(category, index)
	if !ok {
		return 0
	}
	return z.MaxFiles - len(s.files[category][index])
}

// Full reports whether a slot is at its maximum.
func (s *Store) Full(category string, index int) bool {
	return s.Remaining(category, index) <= 0
}

// HasAnyFile is true iff at least one slot holds a file.
func (s *Store) HasAnyFile() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, slots := range s.files {
		if lo.SomeBy(slots, func(files []materialize.File) bool { return len(files) > 0 }) {
			return true
		}
	}
	return false
}

// Reset clears every slot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string][][]materialize.File, len(s.categories))
	for _, c := range s.categories {
		s.files[c.Key] = make([][]materialize.File, len(c.Zones))
	}
}

// Snapshot lists every slot in configuration order.
func (s *Store) Snapshot() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Slot
	for _, c := range s.categories {
		for i, z := range c.Zones {
			files := append([]materialize.File{}, s.files[c.Key][i]...)
			out = append(out, Slot{Category: c.Key, Index: i, Zone: z.Name, MaxFiles: z.MaxFiles, Files: files})
		}
	}
	return out
}

// SlotHandler adapts one slot to the drop arbitrator's handler contract.
type SlotHandler struct {
	Store    *Store
	Category string
	Index    int
	// OnReceive is called after files were added.
	OnReceive func()
}

func (h SlotHandler) Full() bool {
	return h.Store.Full(h.Category, h.Index)
}

func (h SlotHandler) Receive(files []materialize.File) error {
	if err := h.Store.AddFiles(h.Category, h.Index, files); err != nil {
		return err
	}
	if h.OnReceive != nil {
		h.OnReceive()
	}
	return nil
}
