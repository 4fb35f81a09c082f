package mcpglue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/errs"
	"github.com/slicegraph/slicegraph/internal/indexing"
)

type indexRepoParams struct {
	RepoID string `json:"repoId"`
	Mode   string `json:"mode,omitempty"`
}

// handleIndexRepo looks repoId up in the loaded config document (the
// ledger itself takes no repoId-to-path mapping at call time; that's a
// configuration concern, not a per-request one) and runs the pipeline.
func (s *Server) handleIndexRepo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p indexRepoParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("index_repo", fmt.Errorf("invalid parameters: %w", err))
	}

	rc, ok := lookupRepoConfig(s.Ledger.Config, p.RepoID)
	if !ok {
		return errorResult("index_repo", errs.InvalidRepo(p.RepoID))
	}

	mode := indexing.ModeIncremental
	if p.Mode == string(indexing.ModeFull) {
		mode = indexing.ModeFull
	}

	lastPct := -1
	stats, err := s.Ledger.IndexRepo(ctx, rc, mode, func(ev indexing.ProgressEvent) {
		if ev.FilesTotal <= 0 {
			return
		}
		if pct := ev.FilesProcessed * 100 / ev.FilesTotal; pct != lastPct {
			lastPct = pct
			logger.Debugf("index_repo %s: %d/%d files (%d%%)", p.RepoID, ev.FilesProcessed, ev.FilesTotal, pct)
		}
	})
	if err != nil {
		return errorResult("index_repo", err)
	}
	return jsonResult(stats)
}

func lookupRepoConfig(cfg config.Config, repoID string) (config.RepoConfig, bool) {
	for _, rc := range cfg.Repos {
		if rc.RepoID == repoID {
			return rc, true
		}
	}
	return config.RepoConfig{}, false
}
