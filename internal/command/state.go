// ABOUTME: In-memory entry state mutated by commands during one run
// ABOUTME: Tracks whether anything changed so the run knows when to persist

package command

import (
	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/storage"
)

// State is the working set of entries for one ingestion run.
type State struct {
	entries []models.Entry
	changed bool
}

// NewState wraps entries loaded from the store.
func NewState(entries []models.Entry) *State {
	return &State{entries: entries}
}

// Entries returns the current entries.
func (s *State) Entries() []models.Entry {
	return s.entries
}

// Len returns the number of entries.
func (s *State) Len() int {
	return len(s.entries)
}

// Changed reports whether any entry was added or removed.
func (s *State) Changed() bool {
	return s.changed
}

// Has reports whether an entry with id exists.
func (s *State) Has(id string) bool {
	for _, e := range s.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Clone returns an independent copy, used for dry runs.
func (s *State) Clone() *State {
	entries := make([]models.Entry, len(s.entries))
	copy(entries, s.entries)
	return &State{entries: entries, changed: s.changed}
}

func (s *State) add(e models.Entry) {
	s.entries = append(s.entries, e)
	s.changed = true
}

func (s *State) remove(id string) bool {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			s.changed = true
			return true
		}
	}
	return false
}

// findNewest returns the most recent entry whose normalized text equals needle.
func (s *State) findNewest(needle string) (models.Entry, bool) {
	for _, e := range storage.SortNewestFirst(s.entries) {
		if e.NormalizedText == needle {
			return e, true
		}
	}
	return models.Entry{}, false
}
