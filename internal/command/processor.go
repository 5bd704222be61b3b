// ABOUTME: Add and Delete command execution against in-memory entry state
// ABOUTME: Handles marker stripping, photo upload, newest-first matching, and asset cleanup

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/harper/maillog/internal/content"
	"github.com/harper/maillog/internal/imagehost"
	"github.com/harper/maillog/internal/mail"
	"github.com/harper/maillog/internal/models"
)

var (
	addMarkerPattern    = regexp.MustCompile(`(?i)\[add\]`)
	deleteMarkerPattern = regexp.MustCompile(`(?i)\[delete\]`)
)

// DefaultImageFolder prefixes uploaded asset ids.
const DefaultImageFolder = "email-log"

// Options configure a Processor.
type Options struct {
	Mailbox     mail.Mailbox
	Images      imagehost.Host
	Converter   content.Converter
	ImageFolder string
	Logger      *slog.Logger
	// DryRun skips attachment fetches, uploads and destroys.
	DryRun bool
}

// Processor applies Add and Delete commands.
type Processor struct {
	mailbox     mail.Mailbox
	images      imagehost.Host
	converter   content.Converter
	imageFolder string
	logger      *slog.Logger
	dryRun      bool
}

// New creates a Processor. Mailbox and Images are required unless DryRun is set.
func New(opts Options) (*Processor, error) {
	if !opts.DryRun && (opts.Mailbox == nil || opts.Images == nil) {
		return nil, errors.New("command: mailbox and image host are required")
	}
	if opts.Converter == nil {
		opts.Converter = content.TextConverter{}
	}
	if opts.ImageFolder == "" {
		opts.ImageFolder = DefaultImageFolder
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		mailbox:     opts.Mailbox,
		images:      opts.Images,
		converter:   opts.Converter,
		imageFolder: strings.Trim(opts.ImageFolder, "/"),
		logger:      opts.Logger,
		dryRun:      opts.DryRun,
	}, nil
}

// Converter returns the HTML converter used for message bodies.
func (p *Processor) Converter() content.Converter {
	return p.converter
}

// AddResult describes the outcome of an Add command.
type AddResult struct {
	Entry models.Entry
	// Duplicate is set when the message was already applied in an earlier run.
	Duplicate bool
}

// Add creates an entry from msg with the given extracted body text.
func (p *Processor) Add(ctx context.Context, state *State, msg *mail.Message, body string) (AddResult, error) {
	id := models.EntryIDForMessage(msg.ID)
	if state.Has(id) {
		p.logger.Info("duplicate add suppressed", "message_id", msg.ID, "entry_id", id)
		return AddResult{Duplicate: true}, nil
	}

	cleaned := strings.TrimSpace(addMarkerPattern.ReplaceAllString(body, ""))
	text, linkURL := content.ExtractFirstURL(cleaned)

	entry := models.NewEntry(msg.ID, msg.CreatedTS(), strings.TrimSpace(msg.Header("Subject")), text)
	entry.LinkURL = linkURL

	if img, ok := content.FirstImage(content.FindAttachments(msg.Payload)); ok {
		asset, err := p.uploadPhoto(ctx, msg.ID, img)
		if err != nil {
			return AddResult{}, err
		}
		if asset != nil {
			entry.PhotoURL = asset.URL
			entry.PhotoPublicID = asset.ID
		}
	}

	state.add(entry)
	p.logger.Info("entry added", "message_id", msg.ID, "entry_id", entry.ID, "photo", entry.PhotoPublicID != "")
	return AddResult{Entry: entry}, nil
}

func (p *Processor) uploadPhoto(ctx context.Context, messageID string, img content.Attachment) (*imagehost.Asset, error) {
	if p.dryRun {
		p.logger.Info("dry run: would upload photo", "message_id", messageID, "filename", img.Filename)
		return nil, nil
	}

	data, err := p.mailbox.AttachmentBytes(ctx, messageID, img.AttachmentID)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment %s: %w", img.Filename, err)
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	asset, err := p.images.Upload(ctx, data, imagehost.UploadOptions{
		PublicID:    fmt.Sprintf("%s/%s-%s", p.imageFolder, messageID, suffix),
		Filename:    img.Filename,
		ContentType: img.MimeType,
	})
	if errors.Is(err, imagehost.ErrDisabled) {
		p.logger.Warn("image hosting disabled, adding entry without photo", "message_id", messageID, "filename", img.Filename)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("upload photo %s: %w", img.Filename, err)
	}
	return asset, nil
}

// DeleteResult describes the outcome of a Delete command.
type DeleteResult struct {
	Needle  string
	Matched bool
	Entry   models.Entry
	// DestroyErr records a failed photo cleanup; the entry is still removed.
	DestroyErr error
}

// Delete removes the newest entry whose normalized text equals the command text.
// No match is not an error and leaves state untouched.
func (p *Processor) Delete(ctx context.Context, state *State, body string) (DeleteResult, error) {
	needle := models.Normalize(deleteMarkerPattern.ReplaceAllString(body, ""))
	result := DeleteResult{Needle: needle}

	target, ok := state.findNewest(needle)
	if !ok {
		p.logger.Info("no match for delete", "needle", needle)
		return result, nil
	}
	result.Matched = true
	result.Entry = target

	if target.HasPhoto() {
		if p.dryRun {
			p.logger.Info("dry run: would destroy photo", "public_id", target.PhotoPublicID)
		} else if err := p.images.Destroy(ctx, target.PhotoPublicID); err != nil {
			result.DestroyErr = err
			p.logger.Warn("photo destroy failed", "public_id", target.PhotoPublicID, "error", err)
		}
	}

	state.remove(target.ID)
	p.logger.Info("entry deleted", "entry_id", target.ID, "needle", needle)
	return result, nil
}
