// Package resolver turns the heterogeneous inputs a caller might supply —
// explicit symbol IDs, a stack trace, a failing test's path, a set of
// edited files, free-text task descriptions — into a deduplicated, scored
// seed set for the slice engine (spec §4.G).
//
// Grounded on the teacher's internal/core/context_lookup*.go /
// intent_analyzer.go family for the "many heterogeneous signals feed one
// scored result" shape, generalized here into a single priority-ordered
// pipeline over the five input sources the spec names.
package resolver

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/slicegraph/slicegraph/internal/log"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

var logger = log.For("resolver")

// Source identifies which input produced a seed. Priority() orders
// sources by the descending priority spec §4.G lists: explicit entries
// outrank a stack trace, which outranks a failing test path, which
// outranks edited files, which outrank task text. The two entry-derived
// auxiliary sources (first-hop dependency, same-file sibling) are
// explicitly "lower-scored" in the spec text; this resolver places them
// below every primary source, including task text, since they are
// guesses about relevance rather than a signal the caller supplied
// directly.
type Source int

const (
	SourceExplicit Source = iota
	SourceStackTrace
	SourceFailingTest
	SourceEditedFile
	SourceTaskText
	SourceEntrySibling
	SourceEntryDependency
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "entry symbol"
	case SourceStackTrace:
		return "stack trace"
	case SourceFailingTest:
		return "failing test"
	case SourceEditedFile:
		return "edited file"
	case SourceTaskText:
		return "task text"
	case SourceEntrySibling:
		return "entry sibling"
	case SourceEntryDependency:
		return "entry dependency"
	default:
		return "unknown"
	}
}

// Priority returns the source's rank for the (priority desc, score desc,
// symbolId asc) dedup ordering spec §4.G requires; higher wins.
func (s Source) Priority() int {
	switch s {
	case SourceExplicit:
		return 6
	case SourceStackTrace:
		return 5
	case SourceFailingTest:
		return 4
	case SourceEditedFile:
		return 3
	case SourceTaskText:
		return 2
	case SourceEntrySibling, SourceEntryDependency:
		return 1
	default:
		return 0
	}
}

// baseScore is the source-priority constant §4.H uses to seed a frontier
// item's initial score, normalized to (0, 1].
func (s Source) baseScore() float64 {
	return float64(s.Priority()) / float64(SourceExplicit.Priority())
}

// Seed is one resolved entry point into the graph.
type Seed struct {
	SymbolID types.SymbolID
	Source   Source
	Score    float64
}

// Input bundles the five input sources the resolver accepts, in the
// priority order spec §4.G lists them.
type Input struct {
	EntrySymbols    []types.SymbolID
	StackTrace      []string
	FailingTestPath string
	EditedFiles     []string
	TaskText        string
}

// Config bounds the resolver's fan-out so a pathological input (a huge
// task-text blob, a symbol with thousands of callees) cannot blow up the
// seed set.
type Config struct {
	MaxFirstHopDeps    int // per explicit entry symbol
	MaxSiblings        int // per explicit entry symbol
	MaxTaskTextTokens  int
	MaxMatchesPerToken int
	FuzzyThreshold     float64
}

// DefaultConfig mirrors the bounds named across spec §4.G/§4.C ("bounded
// per token and overall").
func DefaultConfig() Config {
	return Config{
		MaxFirstHopDeps:    8,
		MaxSiblings:        8,
		MaxTaskTextTokens:  16,
		MaxMatchesPerToken: 5,
		FuzzyThreshold:     0.82,
	}
}

// Resolver resolves Input into a deduplicated, deterministically ordered
// Seed list.
type Resolver struct {
	Store  *storage.Store
	Config Config
}

// New builds a Resolver against store with cfg; pass DefaultConfig() for
// the spec's default bounds.
func New(store *storage.Store, cfg Config) *Resolver {
	return &Resolver{Store: store, Config: cfg}
}

// Resolve turns in into a seed set for repoID, deduplicated by keeping the
// highest-priority source per symbol and sorted (source priority desc,
// score desc, symbolId asc) per spec §4.G.
func (r *Resolver) Resolve(ctx context.Context, repoID types.RepoID, in Input) ([]Seed, error) {
	seeds := make(map[types.SymbolID]Seed)
	add := func(id types.SymbolID, src Source, score float64) {
		better := func(a, b Seed) bool {
			if a.Source.Priority() != b.Source.Priority() {
				return a.Source.Priority() > b.Source.Priority()
			}
			return a.Score > b.Score
		}
		cand := Seed{SymbolID: id, Source: src, Score: score}
		if existing, ok := seeds[id]; !ok || better(cand, existing) {
			seeds[id] = cand
		}
	}

	if err := r.resolveExplicit(ctx, repoID, in.EntrySymbols, add); err != nil {
		return nil, err
	}
	if err := r.resolveStackTrace(ctx, repoID, in.StackTrace, add); err != nil {
		return nil, err
	}
	if err := r.resolvePathSymbols(ctx, repoID, in.FailingTestPath, SourceFailingTest, add); err != nil {
		return nil, err
	}
	for _, f := range in.EditedFiles {
		if err := r.resolvePathSymbols(ctx, repoID, f, SourceEditedFile, add); err != nil {
			return nil, err
		}
	}
	if err := r.resolveTaskText(ctx, repoID, in.TaskText, add); err != nil {
		return nil, err
	}

	out := make([]Seed, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source.Priority() != out[j].Source.Priority() {
			return out[i].Source.Priority() > out[j].Source.Priority()
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SymbolID < out[j].SymbolID
	})
	logger.Debugf("resolved %d seeds for repo=%s", len(out), repoID)
	return out, nil
}

func (r *Resolver) resolveExplicit(ctx context.Context, repoID types.RepoID, ids []types.SymbolID, add func(types.SymbolID, Source, float64)) error {
	if len(ids) == 0 {
		return nil
	}
	symbols, err := r.Store.GetSymbolsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		add(sym.SymbolID, SourceExplicit, SourceExplicit.baseScore())

		deps, err := r.Store.GetEdgesFrom(ctx, sym.SymbolID)
		if err != nil {
			return err
		}
		for i, e := range deps {
			if i >= r.Config.MaxFirstHopDeps {
				break
			}
			if types.IsUnresolved(e.ToSymbolID) {
				continue
			}
			add(e.ToSymbolID, SourceEntryDependency, SourceEntryDependency.baseScore())
		}

		siblings, err := r.Store.GetSymbolsByFile(ctx, sym.FileID)
		if err != nil {
			return err
		}
		prefix := namePrefix(sym.Name)
		count := 0
		for _, sib := range siblings {
			if sib.SymbolID == sym.SymbolID || count >= r.Config.MaxSiblings {
				continue
			}
			if prefix != "" && strings.HasPrefix(sib.Name, prefix) {
				add(sib.SymbolID, SourceEntrySibling, SourceEntrySibling.baseScore())
				count++
			}
		}
	}
	return nil
}

// frameTokenPattern pulls identifier-shaped tokens out of a stack-trace
// frame line, independent of the source language's frame formatting
// (e.g. "at pkg.Func(file.go:12)", "File \"a.py\", line 3, in func_name").
var frameTokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func (r *Resolver) resolveStackTrace(ctx context.Context, repoID types.RepoID, frames []string, add func(types.SymbolID, Source, float64)) error {
	for _, frame := range frames {
		for _, tok := range frameTokenPattern.FindAllString(frame, -1) {
			if len(tok) < 3 {
				continue
			}
			candidates, err := r.Store.SearchSymbols(ctx, repoID, tok, r.Config.MaxMatchesPerToken)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				if c.Name == tok {
					add(c.SymbolID, SourceStackTrace, SourceStackTrace.baseScore())
				}
			}
		}
	}
	return nil
}

func (r *Resolver) resolvePathSymbols(ctx context.Context, repoID types.RepoID, relPath string, src Source, add func(types.SymbolID, Source, float64)) error {
	if relPath == "" {
		return nil
	}
	f, ok, err := r.Store.GetFileByPath(ctx, repoID, relPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	symbols, err := r.Store.GetSymbolsByFile(ctx, f.FileID)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		add(sym.SymbolID, src, src.baseScore())
	}
	return nil
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "this": true, "that": true, "it": true,
	"as": true, "by": true, "from": true, "into": true, "not": true,
	"no": true, "do": true, "does": true, "did": true, "has": true,
	"have": true, "had": true, "if": true, "then": true, "so": true,
	"when": true, "where": true, "what": true, "which": true, "who": true,
	"how": true, "why": true, "you": true, "your": true, "can": true,
	"will": true, "should": true, "would": true, "could": true,
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

func (r *Resolver) resolveTaskText(ctx context.Context, repoID types.RepoID, text string, add func(types.SymbolID, Source, float64)) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var tokens []string
	for _, tok := range tokenPattern.FindAllString(text, -1) {
		low := strings.ToLower(tok)
		if len(low) < 3 || stopWords[low] {
			continue
		}
		tokens = append(tokens, low)
		if len(tokens) >= r.Config.MaxTaskTextTokens {
			break
		}
	}

	for _, tok := range tokens {
		stemmed := porter2.Stem(tok)

		// A direct substring hit on the raw token is itself the signal —
		// searchSymbols already filtered on it — so it's always accepted,
		// scored by how close the full name is to the token.
		direct, err := r.Store.SearchSymbols(ctx, repoID, tok, r.Config.MaxMatchesPerToken)
		if err != nil {
			return err
		}
		for _, c := range direct {
			score := similarity(tok, c.Name)
			add(c.SymbolID, SourceTaskText, SourceTaskText.baseScore()*score)
		}

		// Only when the raw token found nothing does the stemmed form get
		// a second, fuzzy-gated pass (go-edlib as tie-break in the absence
		// of an exact/prefix match).
		if len(direct) == 0 && stemmed != tok {
			fallback, err := r.Store.SearchSymbols(ctx, repoID, stemmed, r.Config.MaxMatchesPerToken)
			if err != nil {
				return err
			}
			for _, c := range fallback {
				score := similarity(tok, c.Name)
				if score < r.Config.FuzzyThreshold {
					continue
				}
				add(c.SymbolID, SourceTaskText, SourceTaskText.baseScore()*score)
			}
		}
	}
	return nil
}

func similarity(a, b string) float64 {
	score, err := edlib.StringsSimilarity(strings.ToLower(a), strings.ToLower(b), edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}

// namePrefix approximates a symbol's naming-convention prefix (the part
// before the first camelCase/underscore boundary) used to find same-file
// siblings that share it — e.g. "NewResolver" and "NewLoader" share "New".
func namePrefix(name string) string {
	for i, r := range name {
		if i == 0 {
			continue
		}
		if r == '_' {
			return name[:i]
		}
		if r >= 'A' && r <= 'Z' {
			return name[:i]
		}
	}
	return ""
}
