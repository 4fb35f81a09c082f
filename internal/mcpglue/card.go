package mcpglue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slicegraph/slicegraph/internal/types"
)

type getCardParams struct {
	RepoID    string `json:"repoId"`
	SymbolID  string `json:"symbolId"`
	KnownEtag string `json:"knownEtag,omitempty"`
}

func (s *Server) handleGetCard(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p getCardParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("get_card", fmt.Errorf("invalid parameters: %w", err))
	}

	c, notModified, err := s.Ledger.GetCard(ctx, types.RepoID(p.RepoID), types.SymbolID(p.SymbolID), p.KnownEtag)
	if err != nil {
		return errorResult("get_card", err)
	}
	if notModified != nil {
		return jsonResult(map[string]any{"notModified": true, "symbolId": notModified.SymbolID, "etag": notModified.ETag})
	}
	return jsonResult(c)
}
