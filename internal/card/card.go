// Package card projects a built slice into symbol cards at a requested
// detail level (spec §4.I), encodes them to the serializer's wire
// formats, computes per-card ETags, and pages the symbols truncation
// dropped.
//
// Grounded on the teacher's internal/encoding package for the general
// shape of a "project entity to a compact payload, auto-downgrade on
// overflow" serializer, and internal/idcodec's base-63 algorithm (see
// base63.go) for the positional-index encoding the compact formats use.
package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slicegraph/slicegraph/internal/kernel"
	"github.com/slicegraph/slicegraph/internal/log"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

var logger = log.For("card")

var (
	errEmptyIndex       = errors.New("card: empty compact index")
	errInvalidIndexChar = errors.New("card: invalid compact index character")
	errIndexOutOfRange  = errors.New("card: compact index out of range")
	errMalformedGrouping = errors.New("card: malformed or mixed v3 edge grouping")
	errInvalidCursor      = errors.New("card: invalid spillover cursor")
)

// Deps bounds a card's dependency lists (spec §4.I "deps" level).
type Deps struct {
	Imports []string `json:"imports"`
	Calls   []string `json:"calls"`
}

// DetailLevelMetadata reports an auto-downgrade decision for one card.
type DetailLevelMetadata struct {
	Requested  types.DetailLevel `json:"-"`
	Effective  types.DetailLevel `json:"-"`
	Downgraded bool              `json:"downgraded"`
	Reason     string            `json:"reason,omitempty"`

	// BudgetAdaptive marks a downgrade driven specifically by the slice's
	// token budget (as opposed to some future non-budget downgrade
	// trigger), so a client can tell the two apart without parsing Reason.
	BudgetAdaptive bool `json:"-"`
}

// MarshalJSON renders the detail levels by name, matching the standard
// wire family's structural-JSON convention.
func (m DetailLevelMetadata) MarshalJSON() ([]byte, error) {
	type wire struct {
		Requested      string `json:"requested"`
		Effective      string `json:"effective"`
		Downgraded     bool   `json:"downgraded"`
		Reason         string `json:"reason,omitempty"`
		BudgetAdaptive bool   `json:"budgetAdaptive"`
	}
	return json.Marshal(wire{
		Requested:      m.Requested.String(),
		Effective:      m.Effective.String(),
		Downgraded:     m.Downgraded,
		Reason:         m.Reason,
		BudgetAdaptive: m.BudgetAdaptive,
	})
}

// Card is a symbol projected at some effective detail level. Fields are
// populated cumulatively per level (spec §4.I): a field left zero-valued
// at a lower level is simply absent from every wire encoding at that
// level, not an error.
type Card struct {
	SymbolID types.SymbolID    `json:"symbolId"`
	File     string            `json:"file"`
	Range    types.Range       `json:"range"`
	Kind     types.SymbolKind  `json:"kind"`
	Name     string            `json:"name"`
	Exported bool              `json:"exported"`
	Version  types.VersionID   `json:"version"`

	Signature json.RawMessage `json:"signature,omitempty"`

	Deps *Deps `json:"deps,omitempty"`

	Summary     string   `json:"summary,omitempty"`
	Invariants  []string `json:"invariants,omitempty"`
	SideEffects []string `json:"sideEffects,omitempty"`

	Metrics *types.Metrics `json:"metrics,omitempty"`

	Hop      int    `json:"hop"`
	Why      string `json:"why,omitempty"`
	ParentID types.SymbolID `json:"parentId,omitempty"`

	DetailLevel DetailLevelMetadata `json:"detailLevel"`
	ETag        string              `json:"etag"`
}

// NotModified is returned by Project in place of a full Card when the
// caller's knownEtag already matches the current one (spec §4.I, and
// spec's ETag-idempotence property).
type NotModified struct {
	SymbolID types.SymbolID `json:"symbolId"`
	ETag     string         `json:"etag"`
}

// depsCapFull and depsCapLightweight are spec §4.I's named default caps
// for deps.imports/deps.calls: 24 at the full detail level, 6 at every
// lighter level that includes deps (deps, compact).
const (
	depsCapFull       = 24
	depsCapLightweight = 6
)

// Projector builds cards from a built slice against a fixed store and
// ledger version.
type Projector struct {
	Store     *storage.Store
	VersionID types.VersionID
}

// NewProjector constructs a Projector bound to store at versionID.
func NewProjector(store *storage.Store, versionID types.VersionID) *Projector {
	return &Projector{Store: store, VersionID: versionID}
}

// EstimateTokens heuristically estimates a card's token cost as one
// token per four bytes of its standard-JSON encoding, matching the rough
// byte-per-token ratio common text uses; used both by the slice engine's
// running budget (via slicer.TokenEstimator) and by this package's own
// auto-downgrade loop.
func EstimateTokens(c *Card) int {
	b, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	n := len(b) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// Project builds one card for item at requested, auto-downgrading (per
// spec §4.I) until the card's estimated token cost fits within
// maxTokens, or the level bottoms out at minimal. If knownEtag matches
// the card's computed ETag, Project returns (nil, notModified, nil)
// instead of paying for the full projection's field population beyond
// what ETag computation itself requires.
func (p *Projector) Project(ctx context.Context, item slicer.Item, requested types.DetailLevel, maxTokens int, knownEtag string) (*Card, *NotModified, error) {
	effective := requested
	var reason string
	downgraded := false

	var built *Card
	var err error
	for {
		built, err = p.build(ctx, item, effective)
		if err != nil {
			return nil, nil, err
		}
		built.DetailLevel = DetailLevelMetadata{Requested: requested, Effective: effective}

		if maxTokens <= 0 || EstimateTokens(built) <= maxTokens || effective == types.DetailMinimal {
			break
		}
		downgraded = true
		reason = "token budget exceeded at requested detail level"
		effective--
	}

	built.DetailLevel.Downgraded = downgraded
	built.DetailLevel.Reason = reason
	built.DetailLevel.BudgetAdaptive = downgraded

	canonical, err := canonicalPayload(built)
	if err != nil {
		return nil, nil, err
	}
	built.ETag = kernel.CardETag(string(built.SymbolID), string(p.VersionID), canonical)

	if knownEtag != "" && knownEtag == built.ETag {
		return nil, &NotModified{SymbolID: built.SymbolID, ETag: built.ETag}, nil
	}
	return built, nil, nil
}

// canonicalPayload renders the fields that affect a card's identity for
// ETag purposes: everything except the ETag field itself (which doesn't
// exist yet) and the detail-level metadata (a client-visible annotation
// of how the payload was derived, not part of the payload's content).
func canonicalPayload(c *Card) ([]byte, error) {
	cp := *c
	cp.DetailLevel = DetailLevelMetadata{}
	cp.ETag = ""
	return json.Marshal(cp)
}

func (p *Projector) build(ctx context.Context, item slicer.Item, level types.DetailLevel) (*Card, error) {
	sym, ok, err := p.Store.GetSymbol(ctx, item.SymbolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("card: symbol %s not found", item.SymbolID)
	}

	files, err := p.Store.GetFilesByIDs(ctx, []types.FileID{sym.FileID})
	if err != nil {
		return nil, err
	}
	var relPath string
	if len(files) > 0 {
		relPath = files[0].RelPath
	}

	card := &Card{
		SymbolID: sym.SymbolID,
		File:     relPath,
		Range:    sym.Range,
		Kind:     sym.Kind,
		Name:     sym.Name,
		Exported: sym.Exported,
		Version:  p.VersionID,
		Hop:      item.Hop,
		Why:      item.Why,
		ParentID: item.ParentID,
	}

	if level < types.DetailSignature {
		return card, nil
	}
	if sym.SignatureJSON != "" {
		card.Signature = json.RawMessage(sym.SignatureJSON)
	}

	if level < types.DetailDeps {
		return card, nil
	}
	deps, err := p.buildDeps(ctx, sym.SymbolID, level)
	if err != nil {
		return nil, err
	}
	card.Deps = deps

	if level < types.DetailCompact {
		return card, nil
	}
	card.Summary = trimField(sym.Summary, 280)
	card.Invariants = trimList(decodeStringList(sym.InvariantsJSON), 8)
	card.SideEffects = trimList(decodeStringList(sym.SideEffectsJSON), 8)

	if level < types.DetailFull {
		return card, nil
	}
	card.Summary = sym.Summary
	card.Invariants = decodeStringList(sym.InvariantsJSON)
	card.SideEffects = decodeStringList(sym.SideEffectsJSON)
	if m, ok, err := p.Store.GetMetrics(ctx, sym.SymbolID); err != nil {
		return nil, err
	} else if ok {
		card.Metrics = &m
	}

	return card, nil
}

func (p *Projector) buildDeps(ctx context.Context, symbolID types.SymbolID, level types.DetailLevel) (*Deps, error) {
	depCap := depsCapLightweight
	if level >= types.DetailFull {
		depCap = depsCapFull
	}

	edges, err := p.Store.GetEdgesFrom(ctx, symbolID)
	if err != nil {
		return nil, err
	}

	d := &Deps{}
	for _, e := range edges {
		switch e.Type {
		case types.EdgeImport:
			if len(d.Imports) < depCap {
				d.Imports = append(d.Imports, string(e.ToSymbolID))
			}
		case types.EdgeCall:
			if len(d.Calls) < depCap {
				d.Calls = append(d.Calls, string(e.ToSymbolID))
			}
		}
		if len(d.Imports) >= depCap && len(d.Calls) >= depCap {
			break
		}
	}
	return d, nil
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Debugf("decodeStringList: malformed json, treating as empty: %v", err)
		return nil
	}
	return out
}

func trimList(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func trimField(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}
