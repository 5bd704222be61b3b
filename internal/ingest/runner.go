// ABOUTME: Ingestion run controller orchestrating one pass over unread mail
// ABOUTME: Fetches, classifies, applies commands oldest-first, marks messages, then persists once

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/harper/maillog/internal/classify"
	"github.com/harper/maillog/internal/command"
	"github.com/harper/maillog/internal/content"
	"github.com/harper/maillog/internal/db"
	"github.com/harper/maillog/internal/mail"
	"github.com/harper/maillog/internal/metrics"
	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/storage"
)

// Default run settings.
const (
	DefaultMaxMessages    = 25
	DefaultProcessedLabel = "processed-email-log"
)

// Journal records per-message outcomes.
type Journal interface {
	RecordOutcome(ctx context.Context, o db.Outcome) error
}

// Runner performs ingestion runs. Runs must not overlap.
type Runner struct {
	Mailbox   mail.Mailbox
	Processor *command.Processor
	Store     storage.Store
	// Journal and Metrics are optional.
	Journal Journal
	Metrics *metrics.Metrics

	AllowedFrom    string
	Query          string
	MaxMessages    int64
	ProcessedLabel string

	// DryRun applies commands to a copy of the state and skips label
	// changes, journal writes and the final persist.
	DryRun bool

	Logger *slog.Logger
	// OnMessage, when set, is called after each message is handled.
	OnMessage func(MessageResult)
}

// MessageResult describes how one message was handled.
type MessageResult struct {
	MessageID string
	From      string
	Outcome   classify.Outcome
	EntryID   string
	// Duplicate is set for an add whose entry already exists.
	Duplicate bool
	// Matched is set for a delete that found an entry.
	Matched bool
	Detail  string
}

// Report summarizes a run.
type Report struct {
	Fetched      int
	Outcomes     map[classify.Outcome]int
	Added        int
	Deleted      int
	Duplicates   int
	DeleteMisses int
	Changed      bool
	Persisted    bool
	EntryCount   int
	Messages     []MessageResult
}

func newReport() *Report {
	return &Report{Outcomes: make(map[classify.Outcome]int)}
}

// Run performs one ingestion pass. Any fetch, attachment, upload, label or
// persist failure aborts the run; messages already marked are not rolled back
// and nothing is persisted.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report, err := r.run(ctx)
	if r.Metrics != nil {
		if report != nil {
			r.Metrics.Entries.Set(float64(report.EntryCount))
		}
		r.Metrics.ObserveRun(start, err == nil)
	}
	return report, err
}

func (r *Runner) run(ctx context.Context) (*Report, error) {
	if r.Mailbox == nil || r.Processor == nil || r.Store == nil {
		return nil, errors.New("ingest: mailbox, processor and store are required")
	}
	logger := r.logger()
	report := newReport()

	entries, err := r.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	state := command.NewState(entries)
	if r.DryRun {
		state = state.Clone()
	}
	report.EntryCount = state.Len()

	labelName := r.ProcessedLabel
	if labelName == "" {
		labelName = DefaultProcessedLabel
	}
	var labelID string
	if !r.DryRun {
		labelID, err = r.Mailbox.EnsureLabel(ctx, labelName)
		if err != nil {
			return nil, fmt.Errorf("ensure label %q: %w", labelName, err)
		}
	}

	maxMessages := r.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	query := r.Query
	if query == "" {
		query = mail.BuildQuery("")
	}
	ids, err := r.Mailbox.ListUnread(ctx, query, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}
	report.Fetched = len(ids)
	if len(ids) == 0 {
		logger.Info("no unread messages to process")
		return report, nil
	}

	// The mailbox lists newest first; process oldest first.
	for i := len(ids) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := ids[i]

		res, err := r.processMessage(ctx, state, id)
		if err != nil {
			return nil, fmt.Errorf("process message %s: %w", id, err)
		}

		if !r.DryRun {
			if err := r.Mailbox.ModifyLabels(ctx, id, mail.MarkProcessed(labelID)); err != nil {
				return nil, fmt.Errorf("mark message %s processed: %w", id, err)
			}
			r.record(ctx, res)
		}

		report.tally(res)
		r.observe(res)
		if r.OnMessage != nil {
			r.OnMessage(res)
		}
	}

	report.Changed = state.Changed()
	report.EntryCount = state.Len()
	if !state.Changed() {
		logger.Info("no changes to entries")
		return report, nil
	}
	if r.DryRun {
		logger.Info("dry run: entries not written", "entries", state.Len())
		return report, nil
	}

	if err := r.Store.Persist(state.Entries()); err != nil {
		return nil, fmt.Errorf("persist entries: %w", err)
	}
	report.Persisted = true
	logger.Info("entries written", "entries", state.Len())
	return report, nil
}

// processMessage classifies one message and applies its command.
func (r *Runner) processMessage(ctx context.Context, state *command.State, id string) (MessageResult, error) {
	logger := r.logger().With("message_id", id)

	msg, err := r.Mailbox.Get(ctx, id)
	if err != nil {
		return MessageResult{}, fmt.Errorf("fetch: %w", err)
	}

	from := msg.Header("From")
	res := MessageResult{MessageID: id, From: from}

	if !classify.Sender(from, r.AllowedFrom) {
		res.Outcome = classify.OutOfScope
		res.Detail = "from=" + from
		logger.Info("skipping message from foreign sender", "from", from, "outcome", res.Outcome.String())
		return res, nil
	}

	body := content.ExtractText(msg.Payload, r.Processor.Converter())
	res.Outcome = classify.Body(strings.ToLower(body))

	switch res.Outcome {
	case classify.NoCommand:
		logger.Info("ignoring message without [add]/[delete]", "outcome", res.Outcome.String())

	case classify.Ambiguous:
		logger.Info("ignoring message with both [add] and [delete]", "outcome", res.Outcome.String())

	case classify.Add:
		added, err := r.Processor.Add(ctx, state, msg, body)
		if err != nil {
			return res, fmt.Errorf("add: %w", err)
		}
		res.Duplicate = added.Duplicate
		if added.Duplicate {
			res.EntryID = models.EntryIDForMessage(id)
			res.Detail = "duplicate"
		} else {
			res.EntryID = added.Entry.ID
		}

	case classify.Delete:
		deleted, err := r.Processor.Delete(ctx, state, body)
		if err != nil {
			return res, fmt.Errorf("delete: %w", err)
		}
		res.Matched = deleted.Matched
		if deleted.Matched {
			res.EntryID = deleted.Entry.ID
			res.Detail = deleted.Needle
			if deleted.DestroyErr != nil {
				res.Detail += "; photo destroy failed: " + deleted.DestroyErr.Error()
				if r.Metrics != nil {
					r.Metrics.DestroyFailures.Inc()
				}
			}
		} else {
			res.Detail = "no match: " + deleted.Needle
		}
	}

	return res, nil
}

func (r *Runner) record(ctx context.Context, res MessageResult) {
	if r.Journal == nil {
		return
	}
	err := r.Journal.RecordOutcome(ctx, db.Outcome{
		MessageID: res.MessageID,
		Outcome:   res.Outcome.String(),
		EntryID:   res.EntryID,
		Detail:    res.Detail,
	})
	if err != nil {
		r.logger().Warn("journal write failed", "message_id", res.MessageID, "error", err)
	}
}

func (r *Runner) observe(res MessageResult) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.Messages.WithLabelValues(res.Outcome.String()).Inc()
	switch {
	case res.Outcome == classify.Add && res.Duplicate:
		r.Metrics.DuplicateAdds.Inc()
	case res.Outcome == classify.Add:
		r.Metrics.EntriesAdded.Inc()
	case res.Outcome == classify.Delete && res.Matched:
		r.Metrics.EntriesDeleted.Inc()
	}
}

func (rep *Report) tally(res MessageResult) {
	rep.Outcomes[res.Outcome]++
	rep.Messages = append(rep.Messages, res)
	switch {
	case res.Outcome == classify.Add && res.Duplicate:
		rep.Duplicates++
	case res.Outcome == classify.Add:
		rep.Added++
	case res.Outcome == classify.Delete && res.Matched:
		rep.Deleted++
	case res.Outcome == classify.Delete:
		rep.DeleteMisses++
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}
