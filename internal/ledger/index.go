package ledger

import (
	"context"

	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/indexing"
)

// IndexRepo runs the two-pass indexing pipeline for repoCfg and commits a
// new version row on success (spec §6 indexRepo). Concurrency is taken
// from the ledger's loaded configuration rather than exposed as a
// parameter, since spec §6 lists indexRepo's inputs as just
// (repoId, mode, progressCallback).
func (l *Ledger) IndexRepo(ctx context.Context, repoCfg config.RepoConfig, mode indexing.Mode, progress func(indexing.ProgressEvent)) (indexing.Stats, error) {
	return l.Pipeline.IndexRepo(ctx, repoCfg, l.Config.Indexing.Concurrency, mode, progress)
}
