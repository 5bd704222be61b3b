// ABOUTME: MCP prompt definitions and handlers
// ABOUTME: Provides a recap workflow over recent log entries

package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "recap",
			Description: "Summarize the entries logged over a period, grouped by category",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "period",
					Description: "today, yesterday, week, or month (default week)",
				},
			},
		},
		s.handleRecap,
	)
}

func (s *Server) handleRecap(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	period := req.Params.Arguments["period"]
	if period == "" {
		period = "week"
	}
	switch period {
	case "today", "yesterday", "week", "month":
	default:
		return nil, fmt.Errorf("invalid period %q: use today, yesterday, week, or month", period)
	}

	template := fmt.Sprintf(`# Log Recap (%[1]s)

## Step 1: Get the overview
Read the %[2]s resource for totals and the category breakdown.

## Step 2: Pull the entries
Call list_entries with period='%[1]s'. Entries come back newest first.

## Step 3: Write the recap
- Group entries by category; put uncategorized entries last
- Quote each entry's text briefly and include its link_url when present
- Mention which entries have a photo_url
- Close with one line on overall activity compared to the totals

Keep it short. The log is personal notes, not news.`, period, statsURI)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Recap of entries logged over period %q", period),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}
