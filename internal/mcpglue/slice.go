package mcpglue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slicegraph/slicegraph/internal/graph"
	"github.com/slicegraph/slicegraph/internal/ledger"
	"github.com/slicegraph/slicegraph/internal/resolver"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/types"
)

type buildSliceParams struct {
	RepoID string `json:"repoId"`

	EntrySymbols    []string `json:"entrySymbols,omitempty"`
	StackTrace      []string `json:"stackTrace,omitempty"`
	FailingTestPath string   `json:"failingTestPath,omitempty"`
	EditedFiles     []string `json:"editedFiles,omitempty"`
	TaskText        string   `json:"taskText,omitempty"`

	DetailLevel string `json:"detailLevel,omitempty"`
	WireFormat  string `json:"wireFormat,omitempty"`

	MaxCards      int     `json:"maxCards,omitempty"`
	MaxTokens     int     `json:"maxTokens,omitempty"`
	MinConfidence float64 `json:"minConfidence,omitempty"`
	DecayPerHop   float64 `json:"decayPerHop,omitempty"`
	FrontierSize  int     `json:"frontierSize,omitempty"`

	MaxHops    int    `json:"maxHops,omitempty"`
	Direction  string `json:"direction,omitempty"`
	MaxSymbols int    `json:"maxSymbols,omitempty"`
}

func (p buildSliceParams) toRequest() ledger.BuildSliceRequest {
	symbolIDs := make([]types.SymbolID, 0, len(p.EntrySymbols))
	for _, s := range p.EntrySymbols {
		symbolIDs = append(symbolIDs, types.SymbolID(s))
	}

	dir := graph.DirOut
	switch p.Direction {
	case string(graph.DirIn):
		dir = graph.DirIn
	case string(graph.DirBoth):
		dir = graph.DirBoth
	}

	return ledger.BuildSliceRequest{
		RepoID: types.RepoID(p.RepoID),
		Input: resolver.Input{
			EntrySymbols:    symbolIDs,
			StackTrace:      p.StackTrace,
			FailingTestPath: p.FailingTestPath,
			EditedFiles:     p.EditedFiles,
			TaskText:        p.TaskText,
		},
		DetailLevel:          types.ParseDetailLevel(p.DetailLevel),
		WireFormat:           ledger.WireFormat(p.WireFormat),
		Budget:               slicer.Budget{MaxCards: p.MaxCards, MaxEstimatedTokens: p.MaxTokens},
		MinConfidence:        p.MinConfidence,
		DecayPerHop:          p.DecayPerHop,
		FrontierSnapshotSize: p.FrontierSize,
		MaxHops:              p.MaxHops,
		Direction:             dir,
		MaxSymbols:            p.MaxSymbols,
	}
}

func (s *Server) handleBuildSlice(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p buildSliceParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("build_slice", fmt.Errorf("invalid parameters: %w", err))
	}

	result, err := s.Ledger.BuildSlice(ctx, p.toRequest())
	if err != nil {
		return errorResult("build_slice", err)
	}

	return jsonResult(map[string]any{
		"handle":       result.Handle,
		"version":      result.Version,
		"envelope":     result.Envelope,
		"wasTruncated": result.WasTruncated,
		"spilloverRef": result.SpilloverRef,
	})
}

type refreshSliceParams struct {
	Handle       string `json:"handle"`
	KnownVersion string `json:"knownVersion"`
}

func (s *Server) handleRefreshSlice(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p refreshSliceParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("refresh_slice", fmt.Errorf("invalid parameters: %w", err))
	}

	result, err := s.Ledger.RefreshSlice(ctx, types.SliceHandleID(p.Handle), types.VersionID(p.KnownVersion))
	if err != nil {
		return errorResult("refresh_slice", err)
	}

	return jsonResult(map[string]any{
		"notModified": result.NotModified,
		"version":     result.Version,
		"delta":       result.Delta,
		"lease":       result.Lease,
	})
}
