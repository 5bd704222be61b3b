// ABOUTME: MCP tool definitions and handlers for entry and history lookups
// ABOUTME: Provides filtered entry listing, single-entry lookup by id prefix, and journal history

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/storage"
	"github.com/harper/maillog/internal/timeutil"
)

type ListEntriesInput struct {
	Period   *string `json:"period,omitempty"`
	Since    *string `json:"since,omitempty"`
	Category *string `json:"category,omitempty"`
	Contains *string `json:"contains,omitempty"`
	Limit    *int    `json:"limit,omitempty"`
}

type EntryOutput struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	Category  string    `json:"category,omitempty"`
	Text      string    `json:"text"`
	LinkURL   string    `json:"link_url,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
}

type ListEntriesOutput struct {
	Entries []EntryOutput  `json:"entries"`
	Count   int            `json:"count"`
	Filters map[string]any `json:"filters"`
}

type GetEntryInput struct {
	EntryID string `json:"entry_id"`
}

type GetHistoryInput struct {
	Limit *int `json:"limit,omitempty"`
}

type OutcomeOutput struct {
	MessageID   string    `json:"message_id"`
	Outcome     string    `json:"outcome"`
	EntryID     string    `json:"entry_id,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type GetHistoryOutput struct {
	Outcomes []OutcomeOutput `json:"outcomes"`
	Count    int             `json:"count"`
}

func (s *Server) registerTools() {
	s.registerListEntriesTool()
	s.registerGetEntryTool()
	s.registerGetHistoryTool()
}

func (s *Server) registerListEntriesTool() {
	tool := mcp.Tool{
		Name:        "list_entries",
		Description: "List log entries newest first. Use 'period' ('today', 'yesterday', 'week', 'month', UTC) or 'since' (YYYY-MM-DD or RFC3339) to bound the time range, 'category' to filter by category, and 'contains' for a case-insensitive text search. All filters are optional and can be combined.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"period": map[string]interface{}{
					"type":        "string",
					"description": "Only entries from this period: 'today', 'yesterday', 'week', or 'month'. Example: 'week'",
				},
				"since": map[string]interface{}{
					"type":        "string",
					"description": "Only entries created on or after this date (YYYY-MM-DD or RFC3339). Example: '2024-05-01'",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Only entries in this category (case-insensitive). Example: 'birds'",
				},
				"contains": map[string]interface{}{
					"type":        "string",
					"description": "Only entries whose text contains this phrase (case-insensitive). Example: 'heron'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of entries to return. If omitted, returns all matching entries. Example: 20",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListEntries)
}

func (s *Server) registerGetEntryTool() {
	tool := mcp.Tool{
		Name:        "get_entry",
		Description: "Get a single entry by its full id or an unambiguous id prefix (at least 4 characters).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entry_id": map[string]interface{}{
					"type":        "string",
					"description": "The entry id or id prefix. Example: '3f2a9c10'",
				},
			},
			Required: []string{"entry_id"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetEntry)
}

func (s *Server) registerGetHistoryTool() {
	tool := mcp.Tool{
		Name:        "get_history",
		Description: "List recently processed emails from the run journal with their outcome (add, delete, out-of-scope, ignored-no-command, ignored-ambiguous), newest first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of outcomes to return. Defaults to 50. Example: 10",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetHistory)
}

func (s *Server) handleListEntries(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListEntriesInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if input.Limit != nil && *input.Limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", *input.Limit)
	}

	filters := make(map[string]any)
	var window timeutil.Range
	windowed := false
	if input.Period != nil {
		r, ok := timeutil.ParsePeriod(*input.Period, s.now())
		if !ok {
			return nil, fmt.Errorf("invalid period %q: use today, yesterday, week, or month", *input.Period)
		}
		window, windowed = r, true
		filters["period"] = *input.Period
	}
	if input.Since != nil {
		since, err := parseDateString(*input.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid since value: %w", err)
		}
		if !windowed || since.After(window.Start) {
			window.Start = since
		}
		windowed = true
		filters["since"] = since
	}

	var category, contains string
	if input.Category != nil {
		category = strings.ToLower(strings.TrimSpace(*input.Category))
		filters["category"] = category
	}
	if input.Contains != nil {
		contains = models.Normalize(*input.Contains)
		filters["contains"] = contains
	}
	if input.Limit != nil {
		filters["limit"] = *input.Limit
	}

	entries, err := s.loadEntries()
	if err != nil {
		return nil, err
	}

	outputs := make([]EntryOutput, 0, len(entries))
	for _, e := range entries {
		if windowed && !window.Contains(e.CreatedAt()) {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		if contains != "" && !strings.Contains(e.NormalizedText, contains) {
			continue
		}
		outputs = append(outputs, entryOutput(e))
		if input.Limit != nil && *input.Limit > 0 && len(outputs) >= *input.Limit {
			break
		}
	}

	return jsonResult(ListEntriesOutput{
		Entries: outputs,
		Count:   len(outputs),
		Filters: filters,
	})
}

func (s *Server) handleGetEntry(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input GetEntryInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	entries, err := s.loadEntries()
	if err != nil {
		return nil, err
	}
	entry, err := storage.FindEntry(entries, input.EntryID)
	if err != nil {
		return nil, err
	}
	return jsonResult(entryOutput(entry))
}

func (s *Server) handleGetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input GetHistoryInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if s.journal == nil {
		return nil, errors.New("run journal is disabled")
	}

	limit := 0
	if input.Limit != nil {
		if *input.Limit < 0 {
			return nil, fmt.Errorf("limit must be non-negative, got %d", *input.Limit)
		}
		limit = *input.Limit
	}

	outcomes, err := s.journal.ListOutcomes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}

	outputs := make([]OutcomeOutput, 0, len(outcomes))
	for _, o := range outcomes {
		outputs = append(outputs, OutcomeOutput{
			MessageID:   o.MessageID,
			Outcome:     o.Outcome,
			EntryID:     o.EntryID,
			Detail:      o.Detail,
			ProcessedAt: o.ProcessedAt,
		})
	}

	return jsonResult(GetHistoryOutput{Outcomes: outputs, Count: len(outputs)})
}

// loadEntries reads the document fresh on every call so an ingest run's
// write is visible immediately.
func (s *Server) loadEntries() ([]models.Entry, error) {
	entries, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return storage.SortNewestFirst(entries), nil
}

func entryOutput(e models.Entry) EntryOutput {
	return EntryOutput{
		ID:        e.ID,
		Date:      e.Date,
		CreatedAt: e.CreatedAt(),
		Category:  e.Category,
		Text:      e.Text,
		LinkURL:   e.LinkURL,
		PhotoURL:  e.PhotoURL,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// parseDateString accepts YYYY-MM-DD (UTC midnight) or RFC3339.
func parseDateString(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse date: use YYYY-MM-DD or RFC3339 format")
}
