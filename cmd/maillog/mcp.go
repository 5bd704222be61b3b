// ABOUTME: MCP server command for maillog CLI
// ABOUTME: Starts a stdio-based read-only MCP server over the entry log and journal

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/maillog/internal/config"
	"github.com/harper/maillog/internal/db"
	"github.com/harper/maillog/internal/mcp"
	"github.com/harper/maillog/internal/storage"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agents",
	Long: `Start the Model Context Protocol (MCP) server on stdio.

This lets AI agents list and search log entries, look up single entries,
and read the processing history. The server is read-only; entries only
change through 'maillog ingest'.

The server communicates via JSON-RPC on stdin/stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := storage.NewJSONStore(config.ExpandPath(appConfig.EntriesPath))

		var journal *db.Journal
		if path := appConfig.GetJournalPath(); path != "" {
			var err error
			journal, err = db.OpenJournal(path)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer journal.Close()
		}

		server := mcp.NewServer(store, journal, Version)
		if err := server.ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
