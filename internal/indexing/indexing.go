// Package indexing implements the two-pass scan pipeline (spec §4.D): pass
// one extracts symbols and imports per file with content-hash skip logic,
// pass two resolves call edges across the whole repo, and a new version row
// is committed only once both passes succeed.
package indexing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slicegraph/slicegraph/internal/adapter"
	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/errs"
	"github.com/slicegraph/slicegraph/internal/kernel"
	"github.com/slicegraph/slicegraph/internal/log"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

var logger = log.For("indexing")

// Mode selects whether a run may reuse unchanged files' stored rows.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// defaultFileTimeout bounds how long a single file's parse may run before
// the pipeline drops it and moves on (spec §5: "Indexing respects a
// per-file timeout; on expiry the file is dropped from the run and
// logged.").
const defaultFileTimeout = 10 * time.Second

// Stats is the run summary indexRepo returns (spec §6).
type Stats struct {
	FilesProcessed        int
	SymbolsIndexed        int
	EdgesCreated          int
	DurationMs            int64
	Engine                string
	FingerprintCollisions int
}

// ProgressEvent is an optional mid-run callback payload.
type ProgressEvent struct {
	FilesProcessed int
	FilesTotal     int
}

// CacheInvalidator is the hook the version-scoped cache implements so
// indexing can invalidate entries keyed to the prior version once the new
// version commits (spec §4.D completion, §5 ordering guarantees). Kept as
// an interface here so this package has no dependency on the cache
// package's concrete type.
type CacheInvalidator interface {
	InvalidateVersion(version string)
}

// Pipeline runs indexRepo for one repo configuration against one store and
// adapter registry; both are process-wide singletons the caller constructs
// once (spec §9 "process-wide state").
type Pipeline struct {
	Store    *storage.Store
	Registry *adapter.Registry
	Cache    CacheInvalidator // optional

	FileTimeout time.Duration
}

// NewPipeline wires a pipeline against its store and adapter registry.
func NewPipeline(store *storage.Store, registry *adapter.Registry) *Pipeline {
	return &Pipeline{Store: store, Registry: registry, FileTimeout: defaultFileTimeout}
}

// IndexRepo runs both passes for repoCfg and, on success, commits a new
// version row (spec §4.D, §6 indexRepo).
func (p *Pipeline) IndexRepo(ctx context.Context, repoCfg config.RepoConfig, concurrency int, mode Mode, progress func(ProgressEvent)) (Stats, error) {
	start := time.Now()
	repoID := types.RepoID(repoCfg.RepoID)

	if _, err := p.Store.GetRepo(ctx, repoID); err != nil {
		return Stats{}, errs.InvalidRepo(repoCfg.RepoID)
	}

	nextVersion, err := p.nextVersionID(ctx, repoID)
	if err != nil {
		return Stats{}, errs.Internal("computing next version", err)
	}

	candidates, err := enumerate(repoCfg)
	if err != nil {
		return Stats{}, errs.Internal("enumerating files", err)
	}

	if concurrency <= 0 {
		concurrency = 8
	}
	if concurrency > 10 {
		concurrency = 10
	}
	timeout := p.FileTimeout
	if timeout <= 0 {
		timeout = defaultFileTimeout
	}

	collisions := kernel.NewCollisionTracker()
	results := make([]fileResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	var processed int

	for i, cf := range candidates {
		i, cf := i, cf
		g.Go(func() error {
			res := p.processFile(gctx, repoID, nextVersion.VersionID, repoCfg, cf, mode, timeout, collisions)
			results[i] = res
			processed++
			if progress != nil {
				progress(ProgressEvent{FilesProcessed: processed, FilesTotal: len(candidates)})
			}
			return nil // per-file failures are isolated, never abort the run
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, errs.Internal("pass one", err)
	}

	live := make([]fileResult, 0, len(results))
	var adapterFailures []error
	for _, r := range results {
		if r.skipped {
			continue
		}
		if r.parseErr != nil {
			adapterFailures = append(adapterFailures, errs.AdapterFailure(r.relPath, r.parseErr))
			continue
		}
		live = append(live, r)
	}

	symbolsIndexed, err := p.commitPass1(ctx, repoID, live)
	if err != nil {
		return Stats{}, errs.Internal("committing pass one", err)
	}

	edgesCreated, err := p.runPass2(ctx, repoID, live)
	if err != nil {
		return Stats{}, errs.Internal("pass two", err)
	}

	if err := p.Store.DeleteFilesMissingFrom(ctx, repoID, nextVersion.VersionID); err != nil {
		return Stats{}, errs.Internal("pruning stale files", err)
	}

	if err := p.Store.CreateVersion(ctx, nextVersion); err != nil {
		return Stats{}, errs.Internal("committing version", err)
	}

	if p.Cache != nil {
		// Ordered after the version row commits, per spec §5: readers that
		// raced either observe the old version with old entries or the new
		// version with a freshly computed one.
		if prior, err := priorVersion(nextVersion); err == nil {
			p.Cache.InvalidateVersion(prior)
		}
	}

	if len(adapterFailures) > 0 {
		logger.Debugf("pass one: %d adapter failures (isolated): %v", len(adapterFailures), errs.NewMultiError(adapterFailures))
	}

	return Stats{
		FilesProcessed:        len(live),
		SymbolsIndexed:        symbolsIndexed,
		EdgesCreated:          edgesCreated,
		DurationMs:            time.Since(start).Milliseconds(),
		Engine:                "slicegraph",
		FingerprintCollisions: collisions.Count(),
	}, nil
}

func priorVersion(v types.Version) (string, error) {
	if v.Parent == "" {
		return "", fmt.Errorf("no parent version")
	}
	return string(v.Parent), nil
}

// nextVersionID derives a lexicographically-monotone version ID from the
// repo's current latest version, per the convention storage.CreateVersion
// documents: a zero-padded sequence number.
func (p *Pipeline) nextVersionID(ctx context.Context, repoID types.RepoID) (types.Version, error) {
	latest, err := p.Store.GetLatestVersion(ctx, repoID)
	now := time.Now()
	if err != nil {
		if le, ok := err.(*errs.LedgerError); ok && le.Kind == errs.KindNoVersion {
			return types.Version{VersionID: zeroPad(1), RepoID: repoID, CreatedAt: now}, nil
		}
		return types.Version{}, err
	}
	seq, perr := strconv.ParseUint(string(latest.VersionID), 10, 64)
	if perr != nil {
		seq = 0
	}
	return types.Version{
		VersionID: zeroPad(seq + 1),
		RepoID:    repoID,
		CreatedAt: now,
		Parent:    latest.VersionID,
	}, nil
}

func zeroPad(seq uint64) types.VersionID {
	return types.VersionID(fmt.Sprintf("%020d", seq))
}
