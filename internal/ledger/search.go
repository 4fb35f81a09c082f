package ledger

import (
	"context"

	"github.com/slicegraph/slicegraph/internal/types"
)

// SearchSymbols returns up to limit symbols in repoId whose name matches
// query, ordered deterministically (spec §6 searchSymbols, §4.C).
func (l *Ledger) SearchSymbols(ctx context.Context, repoID types.RepoID, query string, limit int) ([]types.Symbol, error) {
	return l.Store.SearchSymbols(ctx, repoID, query, limit)
}
