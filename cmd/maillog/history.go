// ABOUTME: History command for viewing the processed-message journal
// ABOUTME: Shows recent outcomes with message id, entry id, and detail

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/classify"
	"github.com/harper/maillog/internal/config"
	"github.com/harper/maillog/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently processed messages",
	Long:  "List the most recent outcomes recorded in the run journal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		path := appConfig.GetJournalPath()
		if path == "" {
			return errors.New("journal is disabled (journal_path is \"-\")")
		}
		journal, err := db.OpenJournal(path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()

		outcomes, err := journal.ListOutcomes(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list outcomes: %w", err)
		}
		if len(outcomes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No processed messages recorded")
			return nil
		}
		printOutcomes(cmd.OutOrStdout(), outcomes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit, "max outcomes to show")
}

func printOutcomes(w io.Writer, outcomes []db.Outcome) {
	green := color.New(color.FgGreen).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	for _, o := range outcomes {
		label := faint(o.Outcome)
		if oc, ok := classify.ParseOutcome(o.Outcome); ok && oc.IsCommand() {
			label = green(o.Outcome)
		}
		fmt.Fprintf(w, "%s %s %s", faint(o.ProcessedAt.Format(config.DateFormatShort)), o.MessageID, label)
		if o.EntryID != "" {
			fmt.Fprintf(w, " %s", shortID(o.EntryID))
		}
		if o.Detail != "" {
			fmt.Fprintf(w, " %s", faint(truncate(o.Detail, config.DisplayTextWidth)))
		}
		fmt.Fprintln(w)
	}
}
