package ledger

import (
	"context"
	"time"

	"github.com/slicegraph/slicegraph/internal/card"
	"github.com/slicegraph/slicegraph/internal/cache"
	"github.com/slicegraph/slicegraph/internal/errs"
	"github.com/slicegraph/slicegraph/internal/graph"
	"github.com/slicegraph/slicegraph/internal/resolver"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/types"
)

// WireFormat selects which of spec §4.I's three encodings buildSlice
// renders its result in.
type WireFormat string

const (
	WireV1 WireFormat = "v1"
	WireV2 WireFormat = "v2"
	WireV3 WireFormat = "v3"
)

// BuildSliceRequest bundles everything buildSlice needs: the resolver
// input spec §4.G accepts, the budget/confidence/weights spec §4.H
// accepts, and the detail level and wire format spec §4.I accepts.
type BuildSliceRequest struct {
	RepoID types.RepoID
	Input  resolver.Input

	DetailLevel types.DetailLevel
	WireFormat  WireFormat

	Budget               slicer.Budget
	MinConfidence        float64
	EdgeWeights          slicer.EdgeWeights
	DecayPerHop          float64
	FrontierSnapshotSize int

	// MaxHops/Direction/MaxSymbols bound the graph loader's neighborhood
	// expansion when the repo is large enough to skip the bulk sweep
	// (spec §4.E); zero values take the loader's own defaults.
	MaxHops    int
	Direction  graph.Direction
	MaxSymbols int
}

// BuildSliceResult is what buildSlice hands back to the request layer.
type BuildSliceResult struct {
	Handle       types.SliceHandleID
	Version      types.VersionID
	Envelope     any
	WasTruncated bool
	SpilloverRef string
}

// sliceEngineConfig fills zero-valued tunables from l.Config.Slice (spec
// §6 config fields) and slicer.DefaultConfig(), so a caller only needs to
// set the fields it actually wants to override.
func (l *Ledger) sliceEngineConfig(req BuildSliceRequest) slicer.Config {
	def := slicer.DefaultConfig()

	budget := req.Budget
	if budget.MaxCards <= 0 {
		budget.MaxCards = l.Config.Slice.DefaultMaxCards
		if budget.MaxCards <= 0 {
			budget.MaxCards = def.Budget.MaxCards
		}
	}
	if budget.MaxEstimatedTokens <= 0 {
		budget.MaxEstimatedTokens = l.Config.Slice.DefaultMaxTokens
		if budget.MaxEstimatedTokens <= 0 {
			budget.MaxEstimatedTokens = def.Budget.MaxEstimatedTokens
		}
	}

	weights := req.EdgeWeights
	if weights == (slicer.EdgeWeights{}) {
		weights = edgeWeightsFromConfig(l.Config.Slice.EdgeWeights, def.EdgeWeights)
	}

	minConfidence := req.MinConfidence
	if minConfidence <= 0 {
		minConfidence = def.MinConfidence
	}
	decay := req.DecayPerHop
	if decay <= 0 {
		decay = def.DecayPerHop
	}
	frontierSize := req.FrontierSnapshotSize
	if frontierSize <= 0 {
		frontierSize = def.FrontierSnapshotSize
	}

	return slicer.Config{
		Budget:               budget,
		MinConfidence:        minConfidence,
		DecayPerHop:          decay,
		EdgeWeights:          weights,
		FrontierSnapshotSize: frontierSize,
		BaseOverheadTokens:   def.BaseOverheadTokens,
		ParallelThreshold:    def.ParallelThreshold,
	}
}

// perCardTokenBudget derives the per-card maxTokens that drives Project's
// detail-level downgrade from the request's own slice budget (spec §4.I
// property 5: "summed token estimate never exceeds maxEstimatedTokens at the
// effective level"), not from the unrelated policy window. The slice budget
// is split evenly across the cards it produced, then capped by the policy's
// absolute per-card ceiling when one is configured, so neither bound alone
// can silently override the other.
func (l *Ledger) perCardTokenBudget(req BuildSliceRequest, cardCount int) int {
	if cardCount <= 0 {
		cardCount = 1
	}
	effectiveBudget := l.sliceEngineConfig(req).Budget.MaxEstimatedTokens
	perCard := effectiveBudget / cardCount
	if perCard <= 0 {
		perCard = effectiveBudget
	}

	if ceiling := l.Config.Policy.MaxWindowTokens; ceiling > 0 && (perCard <= 0 || perCard > ceiling) {
		perCard = ceiling
	}
	return perCard
}

// edgeWeightsFromConfig reads the config document's named weight map
// (spec §6 "slice.edgeWeights") into slicer.EdgeWeights, falling back to
// fallback for any key the document omits. Only the keys
// "calls"/"imports"/"configures" (matching the resolver's own why-strings)
// are read, mapped onto the engine's {Call,Import,Config} fields; any other
// key, such as config.Default()'s "implements" and "references", is ignored.
func edgeWeightsFromConfig(m map[string]float64, fallback slicer.EdgeWeights) slicer.EdgeWeights {
	w := fallback
	if v, ok := m["calls"]; ok {
		w.Call = v
	}
	if v, ok := m["imports"]; ok {
		w.Import = v
	}
	if v, ok := m["configures"]; ok {
		w.Config = v
	}
	return w
}

// BuildSlice resolves a seed set, loads the graph, runs the beam search,
// projects each resulting symbol into a card, and leases a slice handle
// for the result (spec §6 buildSlice).
func (l *Ledger) BuildSlice(ctx context.Context, req BuildSliceRequest) (BuildSliceResult, error) {
	if req.WireFormat == "" {
		req.WireFormat = WireV1
	}

	version, err := l.Store.GetLatestVersion(ctx, req.RepoID)
	if err != nil {
		return BuildSliceResult{}, err
	}

	seeds, err := l.Resolver.Resolve(ctx, req.RepoID, req.Input)
	if err != nil {
		return BuildSliceResult{}, err
	}
	if len(seeds) == 0 {
		return BuildSliceResult{}, errs.NoSymbols()
	}

	result, err := l.runSlice(ctx, req, version.VersionID, seeds)
	if err != nil {
		return BuildSliceResult{}, err
	}
	if len(result.SliceSet) == 0 {
		return BuildSliceResult{}, errs.NoSymbols()
	}

	envelope, spilloverRef, session, _, err := l.assemble(ctx, req, version.VersionID, result)
	if err != nil {
		return BuildSliceResult{}, err
	}

	handleID, err := newHandleID()
	if err != nil {
		return BuildSliceResult{}, errs.Internal("minting slice handle", err)
	}

	symbolIDs := make([]types.SymbolID, 0, len(result.SliceSet))
	for _, item := range result.SliceSet {
		symbolIDs = append(symbolIDs, item.SymbolID)
	}

	now := time.Now()
	handle := types.SliceHandle{
		Handle:       handleID,
		RepoID:       req.RepoID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(sliceHandleTTL * time.Second),
		MinVersion:   version.VersionID,
		MaxVersion:   version.VersionID,
		SliceHash:    sliceHash(version.VersionID, symbolIDs),
		SpilloverRef: spilloverRef,
	}
	if err := l.Store.CreateSliceHandle(ctx, handle); err != nil {
		return BuildSliceResult{}, errs.Internal("creating slice handle", err)
	}

	l.sessions[handleID] = session

	logger.Debugf("buildSlice repo=%s handle=%s cards=%d truncated=%v",
		req.RepoID, handleID, len(result.SliceSet), result.WasTruncated)

	return BuildSliceResult{
		Handle:       handleID,
		Version:      version.VersionID,
		Envelope:     envelope,
		WasTruncated: result.WasTruncated,
		SpilloverRef: spilloverRef,
	}, nil
}

// runSlice loads the graph and runs the beam search, reusing a cached
// slicer.Result when an identical request has already been answered
// under the same version (spec §4.F graphSlice cache).
func (l *Ledger) runSlice(ctx context.Context, req BuildSliceRequest, versionID types.VersionID, seeds []resolver.Seed) (*slicer.Result, error) {
	cacheKey := cache.Key{RepoID: req.RepoID, EntityID: requestCacheKey(req), Version: string(versionID)}
	if cached, ok := l.SliceCache.Get(cacheKey); ok {
		return cached, nil
	}

	seedIDs := make([]types.SymbolID, 0, len(seeds))
	for _, s := range seeds {
		seedIDs = append(seedIDs, s.SymbolID)
	}

	g, _, err := l.Loader.Load(ctx, req.RepoID, seedIDs, req.MaxHops, req.Direction, req.MaxSymbols)
	if err != nil {
		return nil, errs.Internal("loading graph", err)
	}

	engine := slicer.New(g, l.sliceEngineConfig(req))
	projector := card.NewProjector(l.Store, versionID)
	estimate := func(id types.SymbolID) int {
		c, _, err := projector.Project(ctx, slicer.Item{SymbolID: id}, req.DetailLevel, 0, "")
		if err != nil {
			return 0
		}
		return card.EstimateTokens(c)
	}

	result, err := engine.BuildSlice(ctx, seeds, estimate)
	if err != nil {
		return nil, err
	}

	l.SliceCache.Set(cacheKey, result)
	return result, nil
}

// assemble projects every item in result.SliceSet into a card (serving
// from the symbol-card cache where possible), encodes the requested wire
// format, and records a spillover page when truncation dropped symbols.
// It also returns the projected cards keyed by symbol ID, so refreshSlice
// can diff two sessions without re-parsing an already-encoded envelope.
func (l *Ledger) assemble(ctx context.Context, req BuildSliceRequest, versionID types.VersionID, result *slicer.Result) (any, string, *sessionRecord, map[types.SymbolID]*card.Card, error) {
	projector := card.NewProjector(l.Store, versionID)
	maxTokensPerCard := l.perCardTokenBudget(req, len(result.SliceSet))

	session := &sessionRecord{Request: req, Symbols: make(map[types.SymbolID]string, len(result.SliceSet))}
	cardsByID := make(map[types.SymbolID]*card.Card, len(result.SliceSet))
	items := make([]any, 0, len(result.SliceSet))
	for _, it := range result.SliceSet {
		key := cache.Key{RepoID: req.RepoID, EntityID: string(it.SymbolID), Version: string(versionID)}
		c, ok := l.CardCache.Get(key)
		if !ok {
			built, _, err := projector.Project(ctx, it, req.DetailLevel, maxTokensPerCard, "")
			if err != nil {
				return nil, "", nil, nil, errs.Internal("projecting card", err)
			}
			l.CardCache.Set(key, built)
			c = built
		}
		items = append(items, c)
		session.Symbols[it.SymbolID] = c.ETag
		cardsByID[it.SymbolID] = c
	}

	frontierRefs := make([]card.FrontierRef, 0, len(result.Frontier))
	for _, f := range result.Frontier {
		frontierRefs = append(frontierRefs, card.FrontierRef{SymbolID: string(f.SymbolID), Score: f.Score, Why: f.Why})
	}

	var spilloverRef string
	if result.WasTruncated && len(result.Dropped) > 0 {
		handleID, err := newHandleID()
		if err != nil {
			return nil, "", nil, nil, errs.Internal("minting spillover ref", err)
		}
		spilloverRef = "spill-" + string(handleID)
		l.spillovers[spilloverRef] = card.NewSpilloverList(card.BuildSpilloverEntries(result.Dropped, "truncated"))
	}

	envelope, err := l.encode(req.WireFormat, items, frontierRefs, result.WasTruncated, spilloverRef)
	if err != nil {
		return nil, "", nil, nil, err
	}
	return envelope, spilloverRef, session, cardsByID, nil
}

func (l *Ledger) encode(format WireFormat, items []any, frontier []card.FrontierRef, truncated bool, spilloverRef string) (any, error) {
	switch format {
	case WireV2:
		return card.EncodeV2(items, frontier, truncated, spilloverRef), nil
	case WireV3:
		return card.EncodeV3(items, frontier, truncated, spilloverRef), nil
	default:
		return card.EncodeV1(items, frontier, truncated, spilloverRef)
	}
}

// SliceDelta reports what changed between a leased slice's last-known
// state and the version refreshSlice rebuilt it against.
type SliceDelta struct {
	Added   []*card.Card
	Changed []*card.Card
	Removed []types.SymbolID
}

// RefreshResult is refreshSlice's return value (spec §6): either
// notModified with a renewed lease, or notModified=false with a delta and
// a renewed lease.
type RefreshResult struct {
	NotModified bool
	Version     types.VersionID
	Delta       *SliceDelta
	Lease       types.SliceHandle
}

// RefreshSlice renews handle's lease and, if the repo has moved past
// knownVersion, rebuilds the original request against the latest version
// and reports the difference (spec §6 refreshSlice).
func (l *Ledger) RefreshSlice(ctx context.Context, handle types.SliceHandleID, knownVersion types.VersionID) (RefreshResult, error) {
	prior, err := l.Store.GetSliceHandle(ctx, handle)
	if err != nil {
		return RefreshResult{}, err
	}

	session, ok := l.sessions[handle]
	if !ok {
		return RefreshResult{}, errs.Internal("refreshSlice: no in-memory session for handle "+string(handle), nil)
	}

	latest, err := l.Store.GetLatestVersion(ctx, prior.RepoID)
	if err != nil {
		return RefreshResult{}, err
	}

	now := time.Now()
	newExpiry := now.Add(sliceHandleTTL * time.Second)

	if latest.VersionID == knownVersion {
		if err := l.Store.TouchSliceHandle(ctx, handle, newExpiry, prior.MaxVersion, prior.SliceHash, prior.SpilloverRef); err != nil {
			return RefreshResult{}, errs.Internal("renewing slice handle lease", err)
		}
		lease := prior
		lease.ExpiresAt = newExpiry
		return RefreshResult{NotModified: true, Version: latest.VersionID, Lease: lease}, nil
	}

	seeds, err := l.Resolver.Resolve(ctx, prior.RepoID, session.Request.Input)
	if err != nil {
		return RefreshResult{}, err
	}
	if len(seeds) == 0 {
		return RefreshResult{}, errs.NoSymbols()
	}

	result, err := l.runSlice(ctx, session.Request, latest.VersionID, seeds)
	if err != nil {
		return RefreshResult{}, err
	}

	// Refresh's payload is a delta, not a full envelope (spec §6:
	// "{notModified:false, delta, lease}"), so the encoded envelope
	// assemble produces goes unused here; cardsByID is what builds delta.
	_, spilloverRef, newSession, cardsByID, err := l.assemble(ctx, session.Request, latest.VersionID, result)
	if err != nil {
		return RefreshResult{}, err
	}

	delta := diffSessions(session, newSession, cardsByID)

	symbolIDs := make([]types.SymbolID, 0, len(result.SliceSet))
	for _, item := range result.SliceSet {
		symbolIDs = append(symbolIDs, item.SymbolID)
	}
	newHash := sliceHash(latest.VersionID, symbolIDs)

	if err := l.Store.TouchSliceHandle(ctx, handle, newExpiry, latest.VersionID, newHash, spilloverRef); err != nil {
		return RefreshResult{}, errs.Internal("renewing slice handle lease", err)
	}
	l.sessions[handle] = newSession

	lease := types.SliceHandle{
		Handle: handle, RepoID: prior.RepoID, CreatedAt: prior.CreatedAt, ExpiresAt: newExpiry,
		MinVersion: prior.MinVersion, MaxVersion: latest.VersionID, SliceHash: newHash, SpilloverRef: spilloverRef,
	}

	return RefreshResult{NotModified: false, Version: latest.VersionID, Delta: delta, Lease: lease}, nil
}

// diffSessions compares the prior and rebuilt session's symbol/ETag sets
// and pulls the Added/Changed cards out of cardsByID so the delta never
// needs a second projection pass.
func diffSessions(prior, next *sessionRecord, cardsByID map[types.SymbolID]*card.Card) *SliceDelta {
	delta := &SliceDelta{}

	for id := range prior.Symbols {
		if _, ok := next.Symbols[id]; !ok {
			delta.Removed = append(delta.Removed, id)
		}
	}
	for id, etag := range next.Symbols {
		priorETag, existed := prior.Symbols[id]
		c, have := cardsByID[id]
		if !have {
			continue
		}
		if !existed {
			delta.Added = append(delta.Added, c)
		} else if priorETag != etag {
			delta.Changed = append(delta.Changed, c)
		}
	}
	return delta
}
