// ABOUTME: Maildir spool implementation of the Mailbox interface for offline runs
// ABOUTME: Parses RFC 5322 files with go-message and maps MIME trees to Part trees

package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// maildirSeenSuffix is the info suffix for a message moved out of new/ as read.
const maildirSeenSuffix = ":2,S"

// MaildirMailbox reads messages from a Maildir directory.
// Messages in new/ are unread; marking them processed moves them to cur/.
// The query passed to ListUnread is not evaluated.
type MaildirMailbox struct {
	root        string
	attachments map[string]map[string][]byte
}

// Compile-time check that MaildirMailbox implements Mailbox.
var _ Mailbox = (*MaildirMailbox)(nil)

// NewMaildirMailbox opens the Maildir at root, creating new/, cur/ and tmp/ as needed.
func NewMaildirMailbox(root string) (*MaildirMailbox, error) {
	for _, sub := range []string{"new", "cur", "tmp"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0700); err != nil {
			return nil, fmt.Errorf("create maildir %s: %w", sub, err)
		}
	}
	return &MaildirMailbox{
		root:        root,
		attachments: make(map[string]map[string][]byte),
	}, nil
}

// ListUnread returns ids of messages in new/, newest first.
func (m *MaildirMailbox) ListUnread(ctx context.Context, query string, max int64) ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(m.root, "new"))
	if err != nil {
		return nil, fmt.Errorf("read maildir new: %w", err)
	}

	type candidate struct {
		id   string
		date time.Time
	}
	var candidates []candidate
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(m.root, "new", de.Name())
		date, err := m.messageDate(path)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{id: de.Name(), date: date})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].date.After(candidates[j].date)
	})
	if max > 0 && int64(len(candidates)) > max {
		candidates = candidates[:max]
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.id)
	}
	return ids, nil
}

// Get parses the message file for id.
func (m *MaildirMailbox) Get(ctx context.Context, id string) (*Message, error) {
	path, err := m.locate(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message %s: %w", id, err)
	}

	entity, err := readEntity(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}

	atts := make(map[string][]byte)
	payload, err := convertEntity(entity, "0", atts)
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}
	m.attachments[id] = atts

	date, err := entityDate(entity, path)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:           id,
		InternalDate: date,
		Payload:      payload,
	}, nil
}

// AttachmentBytes returns the decoded bytes of the part at attachmentID.
func (m *MaildirMailbox) AttachmentBytes(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if _, ok := m.attachments[messageID]; !ok {
		if _, err := m.Get(ctx, messageID); err != nil {
			return nil, err
		}
	}
	data, ok := m.attachments[messageID][attachmentID]
	if !ok {
		return nil, fmt.Errorf("attachment %s/%s: %w", messageID, attachmentID, ErrNotFound)
	}
	return data, nil
}

// ModifyLabels moves the message to cur/ when UNREAD is removed and records added labels.
func (m *MaildirMailbox) ModifyLabels(ctx context.Context, id string, change LabelChange) error {
	for _, l := range change.Remove {
		if l != LabelUnread {
			continue
		}
		src := filepath.Join(m.root, "new", id)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return fmt.Errorf("stat message %s: %w", id, err)
		}
		dst := filepath.Join(m.root, "cur", id+maildirSeenSuffix)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("mark message %s read: %w", id, err)
		}
	}

	if len(change.Add) == 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(m.root, "labels"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open labels file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s\t%s\n", id, strings.Join(change.Add, ",")); err != nil {
		return fmt.Errorf("record labels for %s: %w", id, err)
	}
	return nil
}

// EnsureLabel returns name unchanged; Maildir labels are free-form.
func (m *MaildirMailbox) EnsureLabel(ctx context.Context, name string) (string, error) {
	return name, nil
}

// Labels returns the labels recorded for id.
func (m *MaildirMailbox) Labels(id string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(m.root, "labels"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	var labels []string
	for _, line := range strings.Split(string(data), "\n") {
		msgID, rest, ok := strings.Cut(line, "\t")
		if !ok || msgID != id {
			continue
		}
		labels = append(labels, strings.Split(rest, ",")...)
	}
	return labels, nil
}

// locate finds the file for id in new/ or cur/.
func (m *MaildirMailbox) locate(id string) (string, error) {
	if strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid message id %q", id)
	}
	path := filepath.Join(m.root, "new", id)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	matches, err := filepath.Glob(filepath.Join(m.root, "cur", id+":2,*"))
	if err != nil {
		return "", fmt.Errorf("locate message %s: %w", id, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return matches[0], nil
}

func (m *MaildirMailbox) messageDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("open message: %w", err)
	}
	defer f.Close()
	entity, err := readEntity(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse message %s: %w", filepath.Base(path), err)
	}
	return entityDate(entity, path)
}

// readEntity parses a message, tolerating unknown charsets and encodings.
func readEntity(r io.Reader) (*message.Entity, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, err
	}
	return entity, nil
}

// entityDate uses the Date header, falling back to the file modification time.
func entityDate(entity *message.Entity, path string) (time.Time, error) {
	h := gomail.Header{Header: entity.Header}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		return date.UTC(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat message: %w", err)
	}
	return info.ModTime().UTC(), nil
}

// convertEntity maps a MIME entity to a Part. Parts with a filename are
// stored in atts under their path and exposed through AttachmentID.
func convertEntity(entity *message.Entity, path string, atts map[string][]byte) (*Part, error) {
	mimeType, params, err := entity.Header.ContentType()
	if err != nil {
		mimeType = "text/plain"
	}
	part := &Part{MimeType: strings.ToLower(mimeType)}

	fields := entity.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		part.Headers = append(part.Headers, Header{Name: fields.Key(), Value: value})
	}

	if _, dparams, err := entity.Header.ContentDisposition(); err == nil && dparams["filename"] != "" {
		part.Filename = dparams["filename"]
	} else if params["name"] != "" {
		part.Filename = params["name"]
	}

	if mr := entity.MultipartReader(); mr != nil {
		for i := 0; ; i++ {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return nil, fmt.Errorf("read part %s.%d: %w", path, i, err)
			}
			c, err := convertEntity(child, path+"."+strconv.Itoa(i), atts)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, c)
		}
		return part, nil
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", path, err)
	}
	if part.Filename != "" {
		atts[path] = data
		part.Body.AttachmentID = path
		return part, nil
	}
	part.Body.Data = data
	return part, nil
}
