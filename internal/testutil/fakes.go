// ABOUTME: In-memory fakes of the mail and image-hosting collaborators for tests
// ABOUTME: Record every call so tests can assert on side effects and ordering

package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harper/maillog/internal/imagehost"
	"github.com/harper/maillog/internal/mail"
)

// FakeMailbox is an in-memory Mailbox.
type FakeMailbox struct {
	Messages    map[string]*mail.Message
	Attachments map[string][]byte // keyed by messageID + "/" + attachmentID
	Unread      map[string]bool
	Labels      map[string][]string
	Modified    []string // message ids in ModifyLabels call order
	Queries     []string

	ListErr       error
	GetErr        map[string]error
	AttachmentErr error
	ModifyErr     error
	EnsureErr     error
}

var _ mail.Mailbox = (*FakeMailbox)(nil)

// NewFakeMailbox creates an empty fake mailbox.
func NewFakeMailbox() *FakeMailbox {
	return &FakeMailbox{
		Messages:    make(map[string]*mail.Message),
		Attachments: make(map[string][]byte),
		Unread:      make(map[string]bool),
		Labels:      make(map[string][]string),
		GetErr:      make(map[string]error),
	}
}

// AddMessage stores an unread message.
func (f *FakeMailbox) AddMessage(msg *mail.Message) {
	f.Messages[msg.ID] = msg
	f.Unread[msg.ID] = true
}

// AddAttachment stores attachment bytes for a message.
func (f *FakeMailbox) AddAttachment(messageID, attachmentID string, data []byte) {
	f.Attachments[messageID+"/"+attachmentID] = data
}

// ListUnread returns unread ids newest first by internal date.
func (f *FakeMailbox) ListUnread(ctx context.Context, query string, maxMessages int64) ([]string, error) {
	f.Queries = append(f.Queries, query)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var ids []string
	for id, unread := range f.Unread {
		if unread {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := f.Messages[ids[i]].InternalDate, f.Messages[ids[j]].InternalDate
		if di.Equal(dj) {
			return ids[i] > ids[j]
		}
		return di.After(dj)
	})
	if maxMessages > 0 && int64(len(ids)) > maxMessages {
		ids = ids[:maxMessages]
	}
	return ids, nil
}

func (f *FakeMailbox) Get(ctx context.Context, id string) (*mail.Message, error) {
	if err := f.GetErr[id]; err != nil {
		return nil, err
	}
	msg, ok := f.Messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, mail.ErrNotFound)
	}
	return msg, nil
}

func (f *FakeMailbox) AttachmentBytes(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if f.AttachmentErr != nil {
		return nil, f.AttachmentErr
	}
	data, ok := f.Attachments[messageID+"/"+attachmentID]
	if !ok {
		return nil, fmt.Errorf("attachment %s/%s: %w", messageID, attachmentID, mail.ErrNotFound)
	}
	return data, nil
}

func (f *FakeMailbox) ModifyLabels(ctx context.Context, id string, change mail.LabelChange) error {
	if f.ModifyErr != nil {
		return f.ModifyErr
	}
	f.Modified = append(f.Modified, id)
	for _, l := range change.Remove {
		if l == mail.LabelUnread {
			f.Unread[id] = false
		}
	}
	f.Labels[id] = append(f.Labels[id], change.Add...)
	return nil
}

func (f *FakeMailbox) EnsureLabel(ctx context.Context, name string) (string, error) {
	if f.EnsureErr != nil {
		return "", f.EnsureErr
	}
	return "Label_" + name, nil
}

// FakeHost is an in-memory image Host.
type FakeHost struct {
	Uploads   []imagehost.UploadOptions
	Data      map[string][]byte
	Destroyed []string

	UploadErr  error
	DestroyErr error
}

var _ imagehost.Host = (*FakeHost)(nil)

// NewFakeHost creates an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{Data: make(map[string][]byte)}
}

func (h *FakeHost) Upload(ctx context.Context, data []byte, opts imagehost.UploadOptions) (*imagehost.Asset, error) {
	if h.UploadErr != nil {
		return nil, h.UploadErr
	}
	h.Uploads = append(h.Uploads, opts)
	h.Data[opts.PublicID] = data
	return &imagehost.Asset{URL: "https://img.test/" + opts.PublicID, ID: opts.PublicID}, nil
}

func (h *FakeHost) Destroy(ctx context.Context, assetID string) error {
	h.Destroyed = append(h.Destroyed, assetID)
	return h.DestroyErr
}

// PlainMessage builds a single-part text/plain message.
func PlainMessage(id, from, subject, body string, at time.Time) *mail.Message {
	return &mail.Message{
		ID:           id,
		InternalDate: at,
		Payload: &mail.Part{
			MimeType: "text/plain",
			Headers:  headers(from, subject),
			Body:     mail.Body{Data: []byte(body)},
		},
	}
}

// PhotoMessage builds a multipart message with a text body and one attachment.
func PhotoMessage(id, from, subject, body string, at time.Time, filename, mimeType, attachmentID string) *mail.Message {
	return &mail.Message{
		ID:           id,
		InternalDate: at,
		Payload: &mail.Part{
			MimeType: "multipart/mixed",
			Headers:  headers(from, subject),
			Parts: []*mail.Part{
				{MimeType: "text/plain", Body: mail.Body{Data: []byte(body)}},
				{MimeType: mimeType, Filename: filename, Body: mail.Body{AttachmentID: attachmentID}},
			},
		},
	}
}

func headers(from, subject string) []mail.Header {
	h := []mail.Header{{Name: "From", Value: from}}
	if strings.TrimSpace(subject) != "" {
		h = append(h, mail.Header{Name: "Subject", Value: subject})
	}
	return h
}
