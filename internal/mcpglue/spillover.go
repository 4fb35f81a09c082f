package mcpglue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type getSpilloverParams struct {
	SpilloverHandle string `json:"spilloverHandle"`
	Cursor          string `json:"cursor,omitempty"`
	PageSize        int    `json:"pageSize,omitempty"`
}

func (s *Server) handleGetSpillover(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p getSpilloverParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("get_spillover", fmt.Errorf("invalid parameters: %w", err))
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	page, err := s.Ledger.GetSpillover(p.SpilloverHandle, p.Cursor, pageSize)
	if err != nil {
		return errorResult("get_spillover", err)
	}
	return jsonResult(page)
}
