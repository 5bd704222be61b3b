// ABOUTME: Entry model representing a single logged item in the entries document
// ABOUTME: Provides the constructor, text normalization, and message-derived ids

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format stored in Entry.Date.
const DateLayout = "2006-01-02"

// entryNamespace scopes ids derived from mail message ids.
var entryNamespace = uuid.MustParse("3f1d6a52-8c0e-4b7a-9d55-2e6f0b7c41a9")

// Entry represents one item in the persisted log.
type Entry struct {
	ID             string `json:"id"`
	CreatedTS      int64  `json:"created_ts"`
	Date           string `json:"date"`
	Category       string `json:"category"`
	Text           string `json:"text"`
	NormalizedText string `json:"normalized_text"`
	LinkURL        string `json:"link_url"`
	PhotoURL       string `json:"photo_url"`
	PhotoPublicID  string `json:"photo_public_id"`
}

// NewEntry creates an Entry for the given source message.
// The id is derived from messageID so reprocessing the same message yields the same id.
// NormalizedText and Date are computed here and nowhere else.
func NewEntry(messageID string, createdTS int64, category, text string) Entry {
	return Entry{
		ID:             EntryIDForMessage(messageID),
		CreatedTS:      createdTS,
		Date:           time.Unix(createdTS, 0).UTC().Format(DateLayout),
		Category:       strings.ToLower(category),
		Text:           text,
		NormalizedText: Normalize(text),
	}
}

// EntryIDForMessage returns the deterministic entry id for a mail message id.
func EntryIDForMessage(messageID string) string {
	return uuid.NewSHA1(entryNamespace, []byte(messageID)).String()
}

// Normalize lowercases s, trims it and collapses whitespace runs to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CreatedAt returns the creation time in UTC.
func (e Entry) CreatedAt() time.Time {
	return time.Unix(e.CreatedTS, 0).UTC()
}

// HasPhoto reports whether the entry references an uploaded image asset.
func (e Entry) HasPhoto() bool {
	return e.PhotoPublicID != ""
}
