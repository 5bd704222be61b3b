// ABOUTME: Show command for reading a single log entry
// ABOUTME: Prints entry metadata and renders the text with glamour

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/config"
	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show one entry",
	Long:  "Display a single entry by full id or id prefix, with its link and photo.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")

		store := storage.NewJSONStore(config.ExpandPath(appConfig.EntriesPath))
		entries, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to load entries: %w", err)
		}
		entry, err := storage.FindEntry(entries, args[0])
		if err != nil {
			return err
		}

		printEntry(cmd.OutOrStdout(), entry, !plain)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("plain", false, "print the text without markdown rendering")
}

func printEntry(w io.Writer, e models.Entry, render bool) {
	faint := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintln(w, strings.Repeat("─", config.SeparatorWidth))
	fmt.Fprintf(w, "%s %s\n", faint("ID:"), e.ID)
	fmt.Fprintf(w, "%s %s\n", faint("Created:"), e.CreatedAt().Format(config.DateFormatShort))
	if e.Category != "" {
		fmt.Fprintf(w, "%s %s\n", faint("Category:"), e.Category)
	}
	if e.LinkURL != "" {
		fmt.Fprintf(w, "%s %s\n", faint("Link:"), cyan(e.LinkURL))
	}
	if e.PhotoURL != "" {
		fmt.Fprintf(w, "%s %s\n", faint("Photo:"), cyan(e.PhotoURL))
	}
	fmt.Fprintln(w, strings.Repeat("─", config.SeparatorWidth))

	if !render {
		fmt.Fprintf(w, "\n%s\n\n", e.Text)
		return
	}

	rendered, err := glamour.Render(e.Text, "dark")
	if err != nil {
		// Fall back to plain text if rendering fails
		fmt.Fprintf(w, "\n%s\n\n", e.Text)
		return
	}
	fmt.Fprint(w, rendered)
}
