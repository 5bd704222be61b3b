// ABOUTME: JSON document store for the entry log
// ABOUTME: Loads entries, tolerating a missing file, and persists them newest-first atomically

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/harper/maillog/internal/models"
)

// ErrCorruptDocument is returned when the document exists but cannot be decoded.
var ErrCorruptDocument = errors.New("corrupt entries document")

const entriesKey = "entries"

// Store loads and persists the entry log.
type Store interface {
	Load() ([]models.Entry, error)
	Persist(entries []models.Entry) error
}

// JSONStore keeps entries in a single JSON object with an "entries" array.
// Other top-level keys found on load are written back unchanged.
type JSONStore struct {
	path  string
	extra map[string]json.RawMessage
}

// Compile-time check that JSONStore implements Store.
var _ Store = (*JSONStore)(nil)

// NewJSONStore creates a store backed by the document at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the document path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads all entries. A missing document yields an empty list.
func (s *JSONStore) Load() ([]models.Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.extra = nil
			return []models.Entry{}, nil
		}
		return nil, fmt.Errorf("read entries document: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, s.path, err)
	}

	entries := []models.Entry{}
	if raw, ok := doc[entriesKey]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: %s: entries: %v", ErrCorruptDocument, s.path, err)
		}
	}
	delete(doc, entriesKey)
	s.extra = doc

	return entries, nil
}

// Persist replaces the document with entries sorted newest-first by creation time.
func (s *JSONStore) Persist(entries []models.Entry) error {
	data, err := s.encode(entries)
	if err != nil {
		return err
	}
	if err := AtomicWrite(s.path, data); err != nil {
		return fmt.Errorf("persist entries: %w", err)
	}
	return nil
}

func (s *JSONStore) encode(entries []models.Entry) ([]byte, error) {
	sorted := SortNewestFirst(entries)

	doc := make(map[string]any, len(s.extra)+1)
	for k, v := range s.extra {
		doc[k] = v
	}
	doc[entriesKey] = sorted

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}
	return buf.Bytes(), nil
}

// SortNewestFirst returns a copy of entries ordered by CreatedTS descending.
// Entries with equal timestamps keep their relative order.
func SortNewestFirst(entries []models.Entry) []models.Entry {
	sorted := make([]models.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedTS > sorted[j].CreatedTS
	})
	return sorted
}
