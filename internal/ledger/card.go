package ledger

import (
	"context"

	"github.com/slicegraph/slicegraph/internal/card"
	"github.com/slicegraph/slicegraph/internal/cache"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/types"
)

// GetCard projects one symbol at the richest detail level, short-circuiting
// to a notModified record when knownEtag already matches (spec §6
// getCard). Unlike buildSlice, a direct card fetch carries no hop/why
// provenance and no per-slice token budget — it is a standalone lookup,
// not a beam-search result.
func (l *Ledger) GetCard(ctx context.Context, repoID types.RepoID, symbolID types.SymbolID, knownEtag string) (*card.Card, *card.NotModified, error) {
	version, err := l.Store.GetLatestVersion(ctx, repoID)
	if err != nil {
		return nil, nil, err
	}

	key := cache.Key{RepoID: repoID, EntityID: string(symbolID), Version: string(version.VersionID)}
	if cached, ok := l.CardCache.Get(key); ok {
		if knownEtag != "" && cached.ETag == knownEtag {
			return nil, &card.NotModified{SymbolID: symbolID, ETag: cached.ETag}, nil
		}
		return cached, nil, nil
	}

	projector := card.NewProjector(l.Store, version.VersionID)
	item := slicer.Item{SymbolID: symbolID, Why: "explicit"}
	built, notModified, err := projector.Project(ctx, item, types.DetailFull, 0, knownEtag)
	if err != nil {
		return nil, nil, err
	}
	if notModified != nil {
		return nil, notModified, nil
	}
	l.CardCache.Set(key, built)
	return built, nil, nil
}
