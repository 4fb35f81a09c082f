package mcpglue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slicegraph/slicegraph/internal/types"
)

type searchSymbolsParams struct {
	RepoID string `json:"repoId"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchSymbolsParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("search_symbols", fmt.Errorf("invalid parameters: %w", err))
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	symbols, err := s.Ledger.SearchSymbols(ctx, types.RepoID(p.RepoID), p.Query, limit)
	if err != nil {
		return errorResult("search_symbols", err)
	}
	return jsonResult(map[string]any{"symbols": symbols})
}
