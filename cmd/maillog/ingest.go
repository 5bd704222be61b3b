// ABOUTME: Ingest command that applies unread [add]/[delete] emails to the entry log
// ABOUTME: Wires mailbox, image host, journal, and metrics, then prints colored per-message progress

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/classify"
	"github.com/harper/maillog/internal/command"
	"github.com/harper/maillog/internal/config"
	"github.com/harper/maillog/internal/content"
	"github.com/harper/maillog/internal/db"
	"github.com/harper/maillog/internal/imagehost"
	"github.com/harper/maillog/internal/ingest"
	"github.com/harper/maillog/internal/mail"
	"github.com/harper/maillog/internal/metrics"
	"github.com/harper/maillog/internal/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process unread command emails",
	Long: `Fetch unread mail, apply [add] and [delete] commands from the allowed
sender, mark every fetched message processed, and write the entry log once.

Use --dry-run to see what would happen without uploading photos, changing
labels, or writing the entry log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		maxMessages, _ := cmd.Flags().GetInt64("max")

		cfg := *appConfig
		if maxMessages > 0 {
			cfg.MaxMessages = maxMessages
		}
		if dryRun {
			// Dry runs never reach the image host.
			cfg.ImageHost = config.HostNone
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		run, err := buildRun(cmd.Context(), &cfg, dryRun)
		if err != nil {
			return err
		}
		defer run.Close()

		out := cmd.OutOrStdout()
		run.Runner.OnMessage = func(res ingest.MessageResult) {
			printMessageResult(out, res)
		}

		if dryRun {
			fmt.Fprintln(out, "Dry run: no labels, uploads, or writes")
		}
		report, runErr := run.Runner.Run(cmd.Context())

		if cfg.MetricsFile != "" {
			if err := run.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Warn("failed to write metrics file", "path", cfg.MetricsFile, "error", err)
			}
		}
		if runErr != nil {
			return fmt.Errorf("ingest failed: %w", runErr)
		}

		printSummary(out, report, dryRun)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("dry-run", false, "classify and apply in memory only")
	ingestCmd.Flags().Int64P("max", "n", 0, "max messages to fetch (default from config)")
}

// ingestRun holds a wired Runner and the resources it owns.
type ingestRun struct {
	Runner  *ingest.Runner
	Metrics *metrics.Metrics
	journal *db.Journal
}

func (r *ingestRun) Close() {
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			logger.Warn("failed to close journal", "error", err)
		}
	}
}

// buildRun wires every collaborator named by cfg.
func buildRun(ctx context.Context, cfg *config.Config, dryRun bool) (*ingestRun, error) {
	box, err := openMailbox(ctx, cfg)
	if err != nil {
		return nil, err
	}

	conv, err := content.NewConverter(cfg.TextFormat)
	if err != nil {
		return nil, err
	}

	var host imagehost.Host
	if !dryRun {
		host, err = imagehost.New(cfg.ImageHostConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to set up image host: %w", err)
		}
	}

	proc, err := command.New(command.Options{
		Mailbox:     box,
		Images:      host,
		Converter:   conv,
		ImageFolder: cfg.ImageFolder,
		Logger:      logger,
		DryRun:      dryRun,
	})
	if err != nil {
		return nil, err
	}

	run := &ingestRun{Metrics: metrics.New()}
	run.Runner = &ingest.Runner{
		Mailbox:        box,
		Processor:      proc,
		Store:          storage.NewJSONStore(config.ExpandPath(cfg.EntriesPath)),
		Metrics:        run.Metrics,
		AllowedFrom:    cfg.AllowedFrom,
		Query:          mail.BuildQuery(cfg.LabelFilter),
		MaxMessages:    cfg.MaxMessages,
		ProcessedLabel: cfg.ProcessedLabel,
		DryRun:         dryRun,
		Logger:         logger,
	}

	if path := cfg.GetJournalPath(); path != "" && !dryRun {
		journal, err := db.OpenJournal(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		run.journal = journal
		run.Runner.Journal = journal
	}

	return run, nil
}

func openMailbox(ctx context.Context, cfg *config.Config) (mail.Mailbox, error) {
	switch cfg.MailSource {
	case config.SourceMaildir:
		box, err := mail.NewMaildirMailbox(config.ExpandPath(cfg.MaildirPath))
		if err != nil {
			return nil, fmt.Errorf("failed to open maildir: %w", err)
		}
		return box, nil
	default:
		box, err := mail.NewGmailMailbox(ctx, config.ExpandPath(cfg.TokenPath))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to gmail: %w", err)
		}
		return box, nil
	}
}

func printMessageResult(w io.Writer, res ingest.MessageResult) {
	green := color.New(color.FgGreen).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(w, "%s ", faint(shortID(res.MessageID)))
	switch {
	case res.Outcome == classify.Add && res.Duplicate:
		fmt.Fprintf(w, "%s already added %s\n", faint("-"), faint(shortID(res.EntryID)))
	case res.Outcome == classify.Add:
		fmt.Fprintf(w, "%s added %s\n", green("v"), shortID(res.EntryID))
	case res.Outcome == classify.Delete && res.Matched:
		fmt.Fprintf(w, "%s deleted %s\n", green("v"), shortID(res.EntryID))
	case res.Outcome == classify.Delete:
		fmt.Fprintf(w, "%s %s\n", faint("-"), res.Detail)
	case res.Outcome == classify.OutOfScope:
		fmt.Fprintf(w, "%s skipped, from %s\n", faint("-"), res.From)
	default:
		fmt.Fprintf(w, "%s %s\n", faint("-"), res.Outcome)
	}
}

func printSummary(w io.Writer, report *ingest.Report, dryRun bool) {
	green := color.New(color.FgGreen).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	if report.Fetched == 0 {
		fmt.Fprintln(w, "No unread messages")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d message(s) processed\n", report.Fetched)
	if report.Added > 0 {
		fmt.Fprintf(w, "  %s %d added\n", green("v"), report.Added)
	}
	if report.Deleted > 0 {
		fmt.Fprintf(w, "  %s %d deleted\n", green("v"), report.Deleted)
	}
	if report.Duplicates > 0 {
		fmt.Fprintf(w, "  %s %d already applied\n", faint("-"), report.Duplicates)
	}
	if report.DeleteMisses > 0 {
		fmt.Fprintf(w, "  %s %d delete(s) without a match\n", faint("-"), report.DeleteMisses)
	}
	if n := report.Outcomes[classify.OutOfScope] + report.Outcomes[classify.NoCommand] + report.Outcomes[classify.Ambiguous]; n > 0 {
		fmt.Fprintf(w, "  %s %d ignored\n", faint("-"), n)
	}

	switch {
	case report.Persisted:
		fmt.Fprintf(w, "Wrote %d entries\n", report.EntryCount)
	case dryRun && report.Changed:
		fmt.Fprintf(w, "Would write %d entries\n", report.EntryCount)
	default:
		fmt.Fprintln(w, "No changes to write")
	}
}

// shortID truncates ids for display.
func shortID(id string) string {
	if len(id) > config.DisplayIDLength {
		return id[:config.DisplayIDLength]
	}
	return id
}
