// ABOUTME: Mail collaborator contract and the message payload model it returns
// ABOUTME: Defines the Mailbox interface, payload tree types, and query building

package mail

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LabelUnread is the system label carried by unread messages.
const LabelUnread = "UNREAD"

// ErrNotFound is returned when a message or attachment does not exist.
var ErrNotFound = errors.New("not found")

// Header is a single message header.
type Header struct {
	Name  string
	Value string
}

// Body holds the inline data of a part or a reference to a separately fetched attachment.
// Data is already decoded from any transfer encoding.
type Body struct {
	Data         []byte
	AttachmentID string
}

// Part is one node of a hierarchical message payload.
type Part struct {
	MimeType string
	Filename string
	Headers  []Header
	Body     Body
	Parts    []*Part
}

// Message is a fully fetched message.
type Message struct {
	ID string
	// InternalDate is the server-assigned receive time.
	InternalDate time.Time
	Payload      *Part
}

// Header returns the first header value matching name, case-insensitively.
func (m *Message) Header(name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// CreatedTS returns the server timestamp in whole seconds since the epoch.
func (m *Message) CreatedTS() int64 {
	return m.InternalDate.UnixMilli() / 1000
}

// LabelChange lists labels to add to and remove from a message.
type LabelChange struct {
	Add    []string
	Remove []string
}

// MarkProcessed returns the change that clears UNREAD and applies processedLabelID.
func MarkProcessed(processedLabelID string) LabelChange {
	return LabelChange{
		Add:    []string{processedLabelID},
		Remove: []string{LabelUnread},
	}
}

// Mailbox is the mail provider surface used by an ingestion run.
type Mailbox interface {
	// ListUnread returns ids of messages matching query, newest first, at most max.
	ListUnread(ctx context.Context, query string, max int64) ([]string, error)

	// Get fetches the full message including its payload tree.
	Get(ctx context.Context, id string) (*Message, error)

	// AttachmentBytes fetches the raw bytes of an attachment.
	AttachmentBytes(ctx context.Context, messageID, attachmentID string) ([]byte, error)

	// ModifyLabels applies a label change to a message.
	ModifyLabels(ctx context.Context, id string, change LabelChange) error

	// EnsureLabel returns the id of the named label, creating it when missing.
	EnsureLabel(ctx context.Context, name string) (string, error)
}

// BuildQuery returns the candidate filter: unread, in the primary inbox, and the optional extra term.
func BuildQuery(extra string) string {
	parts := []string{"is:unread", "in:inbox"}
	if extra = strings.TrimSpace(extra); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " ")
}
