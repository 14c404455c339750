package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/casechat/casechat/internal/chat"
	"github.com/casechat/casechat/internal/vectordb"
)

const defaultSearchLimit = 4

// handleSearchDocuments returns the passages nearest to a query.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.chain.Retrieve(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The corpus may not be ingested yet. Run `casechat ingest` to index it."), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(results)), nil
}

// handleAskDocuments runs the full chain and returns the answer followed by
// its sources.
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	res, err := s.chain.Call(ctx, chat.Query{Question: question}, nil)
	if errors.Is(err, chat.ErrEmptyQuestion) {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("question failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(res)), nil
}

// formatAnswer renders an answer and its sources for agent consumption.
func formatAnswer(res *chat.Result) string {
	var sb strings.Builder
	sb.WriteString(res.Answer)
	if len(res.SourceDocuments) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\nSources:\n")
	for i, src := range res.SourceDocuments {
		name, _ := src.Metadata["source"].(string)
		if name == "" {
			name = "unknown"
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
	}
	return sb.String()
}
