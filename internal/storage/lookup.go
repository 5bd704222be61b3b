// ABOUTME: Entry lookup by full id or unambiguous id prefix
// ABOUTME: Shared by the show command and the MCP get_entry tool

package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harper/maillog/internal/models"
)

// MinPrefixLength is the shortest id prefix FindEntry accepts.
const MinPrefixLength = 4

var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrAmbiguousEntry = errors.New("entry id prefix is ambiguous")
)

// FindEntry returns the entry whose id equals ref, or the one entry whose id
// starts with ref.
func FindEntry(entries []models.Entry, ref string) (models.Entry, error) {
	ref = strings.TrimSpace(ref)
	if len(ref) < MinPrefixLength {
		return models.Entry{}, fmt.Errorf("entry id must be at least %d characters", MinPrefixLength)
	}

	var matches []models.Entry
	for _, e := range entries {
		if e.ID == ref {
			return e, nil
		}
		if strings.HasPrefix(e.ID, ref) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return models.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Entry{}, fmt.Errorf("%w: %q matches %d entries", ErrAmbiguousEntry, ref, len(matches))
	}
}
