// ABOUTME: MCP resource providers for maillog
// ABOUTME: Exposes read-only views of the entry log and summary statistics

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	entriesURI = "maillog://entries"
	statsURI   = "maillog://stats"
)

// ResourceData is the standard response format for all resources.
type ResourceData struct {
	Metadata ResourceMetadata  `json:"metadata"`
	Data     interface{}       `json:"data"`
	Links    map[string]string `json:"links"`
}

// ResourceMetadata contains metadata about the resource response.
type ResourceMetadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Count       int       `json:"count"`
	ResourceURI string    `json:"resource_uri"`
}

// StatsData summarizes the entry log.
type StatsData struct {
	TotalEntries int            `json:"total_entries"`
	WithPhoto    int            `json:"with_photo"`
	WithLink     int            `json:"with_link"`
	ByCategory   map[string]int `json:"by_category"`
	NewestDate   string         `json:"newest_date,omitempty"`
	OldestDate   string         `json:"oldest_date,omitempty"`
}

func (s *Server) registerResources() {
	s.registerEntriesResource()
	s.registerStatsResource()
}

func (s *Server) registerEntriesResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         entriesURI,
			Name:        "All Entries",
			Description: "Every entry in the log, newest first",
			MIMEType:    "application/json",
		},
		s.readEntriesResource,
	)
}

func (s *Server) readEntriesResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entries, err := s.loadEntries()
	if err != nil {
		return nil, err
	}

	outputs := make([]EntryOutput, 0, len(entries))
	for _, e := range entries {
		outputs = append(outputs, entryOutput(e))
	}

	return s.resourceContents(request.Params.URI, ResourceData{
		Metadata: ResourceMetadata{
			Timestamp:   s.now(),
			Count:       len(outputs),
			ResourceURI: entriesURI,
		},
		Data:  outputs,
		Links: map[string]string{"stats": statsURI},
	})
}

func (s *Server) registerStatsResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         statsURI,
			Name:        "Log Statistics",
			Description: "Entry counts by category, photo and link totals, and the covered date range",
			MIMEType:    "application/json",
		},
		s.readStatsResource,
	)
}

func (s *Server) readStatsResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := s.calculateStats()
	if err != nil {
		return nil, err
	}

	return s.resourceContents(request.Params.URI, ResourceData{
		Metadata: ResourceMetadata{
			Timestamp:   s.now(),
			Count:       stats.TotalEntries,
			ResourceURI: statsURI,
		},
		Data:  stats,
		Links: map[string]string{"entries": entriesURI},
	})
}

func (s *Server) calculateStats() (*StatsData, error) {
	entries, err := s.loadEntries()
	if err != nil {
		return nil, err
	}

	stats := &StatsData{
		TotalEntries: len(entries),
		ByCategory:   make(map[string]int),
	}
	for _, e := range entries {
		if e.HasPhoto() {
			stats.WithPhoto++
		}
		if e.LinkURL != "" {
			stats.WithLink++
		}
		category := e.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.ByCategory[category]++
	}
	if len(entries) > 0 {
		stats.NewestDate = entries[0].Date
		stats.OldestDate = entries[len(entries)-1].Date
	}
	return stats, nil
}

func (s *Server) resourceContents(uri string, data ResourceData) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
