// ABOUTME: Gmail API implementation of the Mailbox interface
// ABOUTME: Loads an authorized-user token file and maps Gmail payloads to Part trees

package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// gmailUser is the special user id meaning the authenticated account.
const gmailUser = "me"

// GmailMailbox talks to a single Gmail account.
type GmailMailbox struct {
	svc  *gmail.Service
	user string
}

// Compile-time check that GmailMailbox implements Mailbox.
var _ Mailbox = (*GmailMailbox)(nil)

// authorizedUser is the token file written by the one-time consent flow.
type authorizedUser struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// LoadTokenSource reads an authorized-user token file and returns a refreshing token source.
func LoadTokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var au authorizedUser
	if err := json.Unmarshal(data, &au); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if au.RefreshToken == "" && au.Token == "" {
		return nil, fmt.Errorf("token file %s has neither token nor refresh_token", path)
	}

	scopes := au.Scopes
	if len(scopes) == 0 {
		scopes = []string{gmail.GmailModifyScope}
	}

	endpoint := google.Endpoint
	if au.TokenURI != "" {
		endpoint.TokenURL = au.TokenURI
	}

	cfg := &oauth2.Config{
		ClientID:     au.ClientID,
		ClientSecret: au.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}

	tok := &oauth2.Token{
		AccessToken:  au.Token,
		RefreshToken: au.RefreshToken,
		TokenType:    "Bearer",
	}
	if au.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339, au.Expiry)
		if err != nil {
			return nil, fmt.Errorf("parse token expiry %q: %w", au.Expiry, err)
		}
		tok.Expiry = expiry
	}

	return cfg.TokenSource(ctx, tok), nil
}

// NewGmailMailbox creates a Gmail-backed mailbox from the token file at tokenPath.
func NewGmailMailbox(ctx context.Context, tokenPath string) (*GmailMailbox, error) {
	ts, err := LoadTokenSource(ctx, tokenPath)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailMailbox{svc: svc, user: gmailUser}, nil
}

// ListUnread lists message ids matching query, newest first.
func (g *GmailMailbox) ListUnread(ctx context.Context, query string, max int64) ([]string, error) {
	resp, err := g.svc.Users.Messages.List(g.user).Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Get fetches a message in full format.
func (g *GmailMailbox) Get(ctx context.Context, id string) (*Message, error) {
	msg, err := g.svc.Users.Messages.Get(g.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, wrapNotFound(err))
	}
	payload, err := convertGmailPart(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	return &Message{
		ID:           msg.Id,
		InternalDate: time.UnixMilli(msg.InternalDate).UTC(),
		Payload:      payload,
	}, nil
}

// AttachmentBytes fetches and decodes a single attachment.
func (g *GmailMailbox) AttachmentBytes(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := g.svc.Users.Messages.Attachments.Get(g.user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get attachment %s/%s: %w", messageID, attachmentID, wrapNotFound(err))
	}
	data, err := decodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s/%s: %w", messageID, attachmentID, err)
	}
	return data, nil
}

// ModifyLabels adds and removes labels on a message.
func (g *GmailMailbox) ModifyLabels(ctx context.Context, id string, change LabelChange) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    change.Add,
		RemoveLabelIds: change.Remove,
	}
	if _, err := g.svc.Users.Messages.Modify(g.user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify labels on %s: %w", id, wrapNotFound(err))
	}
	return nil
}

// EnsureLabel finds a user label by exact name or creates it.
func (g *GmailMailbox) EnsureLabel(ctx context.Context, name string) (string, error) {
	resp, err := g.svc.Users.Labels.List(g.user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == name {
			return l.Id, nil
		}
	}

	created, err := g.svc.Users.Labels.Create(g.user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return created.Id, nil
}

// convertGmailPart maps a Gmail payload node and its children to a Part.
func convertGmailPart(p *gmail.MessagePart) (*Part, error) {
	if p == nil {
		return &Part{}, nil
	}
	part := &Part{
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Body.AttachmentID = p.Body.AttachmentId
		if p.Body.Data != "" {
			data, err := decodeBase64URL(p.Body.Data)
			if err != nil {
				return nil, fmt.Errorf("part %s: %w", p.PartId, err)
			}
			part.Body.Data = data
		}
	}
	for _, child := range p.Parts {
		c, err := convertGmailPart(child)
		if err != nil {
			return nil, err
		}
		part.Parts = append(part.Parts, c)
	}
	return part, nil
}

// decodeBase64URL decodes URL-safe base64 with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func wrapNotFound(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
