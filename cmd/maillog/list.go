// ABOUTME: List command for viewing log entries with filtering options
// ABOUTME: Displays entries newest first with date, category, text, and link/photo markers

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/config"
	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/storage"
	"github.com/harper/maillog/internal/timeutil"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List log entries",
	Long:    "List entries from the entry log, optionally filtered by period and category.",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, _ := cmd.Flags().GetString("period")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := listFilter{Category: category, Limit: limit}
		if period != "" {
			r, ok := timeutil.ParsePeriod(period, time.Now())
			if !ok {
				return fmt.Errorf("unknown period %q (want today, yesterday, week, or month)", period)
			}
			filter.Period = &r
		}

		store := storage.NewJSONStore(config.ExpandPath(appConfig.EntriesPath))
		entries, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to load entries: %w", err)
		}

		entries = filter.apply(storage.SortNewestFirst(entries))
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No entries found")
			return nil
		}
		printEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("period", "p", "", "only entries from today, yesterday, week, or month (UTC)")
	listCmd.Flags().StringP("category", "c", "", "only entries in this category")
	listCmd.Flags().IntP("limit", "n", config.DefaultListLimit, "max entries to show (0 for all)")
}

type listFilter struct {
	Period   *timeutil.Range
	Category string
	Limit    int
}

// apply filters entries, which must already be newest first.
func (f listFilter) apply(entries []models.Entry) []models.Entry {
	category := strings.ToLower(strings.TrimSpace(f.Category))

	var out []models.Entry
	for _, e := range entries {
		if f.Period != nil && !f.Period.Contains(e.CreatedAt()) {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func printEntries(w io.Writer, entries []models.Entry) {
	faint := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, e := range entries {
		fmt.Fprintf(w, "%s %s ", faint(shortID(e.ID)), e.Date)
		if e.Category != "" {
			fmt.Fprintf(w, "%s ", cyan("["+e.Category+"]"))
		}
		fmt.Fprint(w, truncate(oneLine(e.Text), config.DisplayTextWidth))
		if e.LinkURL != "" {
			fmt.Fprintf(w, " %s", faint(e.LinkURL))
		}
		if e.HasPhoto() {
			fmt.Fprintf(w, " %s", faint("(photo)"))
		}
		fmt.Fprintln(w)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
