package indexing

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/slicegraph/slicegraph/internal/adapter"
	"github.com/slicegraph/slicegraph/internal/types"
)

// Confidence assigned per resolution strategy (spec §4.D pass-2 step 4).
const (
	confidenceExact      = 1.0
	confidenceSameFile   = 0.9
	confidenceRepoUnique = 0.7
	confidenceUnresolved = 0.2
)

// runPass2 builds the repo-wide resolution indices pass-2 needs (spec §4.D
// pass-2 step 1) — including symbols carried over from files this run
// reused rather than reparsed — resolves and emits this run's import edges
// (pass-1 step 5, folded in here because binding an import across files
// needs the same full symbol table this step already builds), then
// extracts and resolves every re-parsed file's call sites (pass-2 steps
// 2-5).
func (p *Pipeline) runPass2(ctx context.Context, repoID types.RepoID, live []fileResult) (int, error) {
	moduleIndex := make(map[string]types.SymbolID, len(live))
	nameIndex := make(map[string][]types.SymbolID)
	sameFileIndex := make(map[string]map[string][]types.SymbolID, len(live))

	for _, r := range live {
		moduleIndex[r.relPath] = r.moduleID

		var fileSymbols []types.Symbol
		if r.reparsed {
			fileSymbols = r.symbols
		} else {
			stored, err := p.Store.GetSymbolsByFile(ctx, r.file.FileID)
			if err != nil {
				return 0, err
			}
			fileSymbols = stored
		}

		fileNames := make(map[string][]types.SymbolID)
		for _, s := range fileSymbols {
			if s.Kind == types.KindModule {
				continue
			}
			nameIndex[s.Name] = append(nameIndex[s.Name], s.SymbolID)
			fileNames[s.Name] = append(fileNames[s.Name], s.SymbolID)
		}
		sameFileIndex[r.relPath] = fileNames
	}

	now := time.Now()
	var allEdges []types.Edge
	var fromSymbolsThisRun []types.SymbolID

	importedNameByFile := make(map[string]map[string][]types.SymbolID, len(live))
	for _, r := range live {
		if !r.reparsed {
			continue
		}
		importedNames := make(map[string][]types.SymbolID)
		for _, imp := range r.imports {
			targets := resolveImportTargets(r.relPath, imp, moduleIndex, nameIndex)
			for _, t := range targets {
				allEdges = append(allEdges, types.Edge{
					RepoID:             repoID,
					FromSymbolID:       r.moduleID,
					ToSymbolID:         t,
					Type:               types.EdgeImport,
					Weight:             1.0,
					Confidence:         confidenceExact,
					ResolutionStrategy: types.StrategyImport,
					Provenance:         "import",
					CreatedAt:          now,
				})
			}
			for _, name := range imp.ImportedNames {
				if ids := nameIndex[name]; len(ids) > 0 {
					importedNames[name] = append(importedNames[name], ids...)
				}
			}
		}
		importedNameByFile[r.relPath] = importedNames
		fromSymbolsThisRun = append(fromSymbolsThisRun, r.moduleID)
	}

	namespaceIndex := buildNamespaceIndex(live, moduleIndex)

	for _, r := range live {
		if !r.reparsed {
			continue
		}
		ad, ok := p.Registry.For(path.Ext(r.relPath))
		if !ok {
			continue
		}
		content, err := os.ReadFile(r.absPath)
		if err != nil {
			continue
		}
		tree, err := ad.Parse(content, r.relPath)
		if err != nil || tree == nil {
			continue
		}
		calls := ad.ExtractCalls(tree, content, r.relPath, r.locals)

		maps := types.ResolutionMaps{
			ImportedName: importedNameByFile[r.relPath],
			Namespace:    namespaceIndex,
			Name:         nameIndex,
			SameFile:     sameFileIndex[r.relPath],
		}

		for _, call := range calls {
			fromID := r.moduleID
			if sid, ok := r.nodeIDToSymbol[call.CallerNodeID]; ok {
				fromID = sid
			}
			allEdges = append(allEdges, resolveCall(ad, call, maps, repoID, fromID, now))
		}
		fromSymbolsThisRun = append(fromSymbolsThisRun, symbolIDsOf(r.symbols)...)
	}

	if len(fromSymbolsThisRun) > 0 {
		if err := p.Store.DeleteEdgesFromSymbols(ctx, fromSymbolsThisRun); err != nil {
			return 0, err
		}
	}
	if err := p.Store.UpsertEdges(ctx, allEdges, 500); err != nil {
		return 0, err
	}
	return len(allEdges), nil
}

// resolveCall binds one extracted call to a target symbol, preferring a
// language-specific adapter.ResolveCall and falling back to the generic
// priority order (spec §4.B): namespace member, imported name, same-file
// unique name, repo-wide unique name, ambiguous, unresolved.
func resolveCall(ad adapter.Adapter, call types.ExtractedCall, maps types.ResolutionMaps, repoID types.RepoID, fromID types.SymbolID, now time.Time) types.Edge {
	if resolved, ok := ad.ResolveCall(call, maps); ok && resolved.Resolved {
		return callEdge(repoID, fromID, resolved.SymbolID, resolved.Confidence, resolved.Strategy, now)
	}

	if call.Namespace != "" {
		if members, ok := maps.Namespace[call.Namespace]; ok {
			if sid, ok := members[call.Callee]; ok {
				return callEdge(repoID, fromID, sid, confidenceExact, types.StrategyNamespaceMember, now)
			}
		}
	}
	if ids := maps.ImportedName[call.Callee]; len(ids) == 1 {
		return callEdge(repoID, fromID, ids[0], confidenceExact, types.StrategyImportedName, now)
	}
	if ids := maps.SameFile[call.Callee]; len(ids) == 1 {
		return callEdge(repoID, fromID, ids[0], confidenceSameFile, types.StrategySameFileUnique, now)
	}
	if ids := maps.Name[call.Callee]; len(ids) == 1 {
		return callEdge(repoID, fromID, ids[0], confidenceRepoUnique, types.StrategyRepoUniqueName, now)
	}
	if ids := maps.Name[call.Callee]; len(ids) > 1 {
		return callEdge(repoID, fromID, ids[0], 0.5/float64(len(ids)), types.StrategyAmbiguous, now)
	}
	return callEdge(repoID, fromID, types.UnresolvedCallID(call.Callee), confidenceUnresolved, types.StrategyUnresolved, now)
}

func callEdge(repoID types.RepoID, from, to types.SymbolID, confidence float64, strategy types.ResolutionStrategy, now time.Time) types.Edge {
	return types.Edge{
		RepoID: repoID, FromSymbolID: from, ToSymbolID: to, Type: types.EdgeCall,
		Weight: 1.0, Confidence: confidence, ResolutionStrategy: strategy,
		Provenance: "call", CreatedAt: now,
	}
}

func symbolIDsOf(symbols []types.Symbol) []types.SymbolID {
	out := make([]types.SymbolID, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, s.SymbolID)
	}
	return out
}

// resolveImportTargets binds one extracted import to the symbol IDs it
// names. A relative import with no named members resolves to its target
// module symbol itself (e.g. a wildcard or side-effect import); otherwise
// each named member is looked up repo-wide by name, accepted only when the
// name is unambiguous.
func resolveImportTargets(fromRelPath string, imp types.ExtractedImport, moduleIndex map[string]types.SymbolID, nameIndex map[string][]types.SymbolID) []types.SymbolID {
	if imp.IsRelative {
		target, ok := resolveRelativeModule(fromRelPath, imp.Specifier, moduleIndex)
		if !ok {
			return nil
		}
		if len(imp.ImportedNames) == 0 {
			return []types.SymbolID{target}
		}
	}
	var out []types.SymbolID
	for _, name := range imp.ImportedNames {
		if ids, ok := nameIndex[name]; ok && len(ids) == 1 {
			out = append(out, ids[0])
		}
	}
	return out
}

func resolveRelativeModule(fromRelPath, specifier string, moduleIndex map[string]types.SymbolID) (types.SymbolID, bool) {
	dir := path.Dir(fromRelPath)
	base := path.Clean(path.Join(dir, specifier))
	candidates := []string{base}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".py", ".go"} {
		candidates = append(candidates, base+ext, base+"/index"+ext)
	}
	for _, c := range candidates {
		if id, ok := moduleIndex[c]; ok {
			return id, true
		}
	}
	return "", false
}

// buildNamespaceIndex approximates "namespace.member" lookups (spec §4.B
// resolveCall maps) from relative imports: a file that imports a module
// can address its exported members as "base.member", the common case for
// wildcard/namespace-style imports. Extraction does not track explicit
// import aliases, so the module's basename stands in for the alias.
func buildNamespaceIndex(live []fileResult, moduleIndex map[string]types.SymbolID) map[string]map[string]types.SymbolID {
	byModule := make(map[types.SymbolID][]types.Symbol, len(live))
	for _, r := range live {
		if r.reparsed {
			byModule[r.moduleID] = r.symbols
		}
	}

	out := make(map[string]map[string]types.SymbolID)
	for _, r := range live {
		if !r.reparsed {
			continue
		}
		for _, imp := range r.imports {
			if !imp.IsRelative {
				continue
			}
			target, ok := resolveRelativeModule(r.relPath, imp.Specifier, moduleIndex)
			if !ok {
				continue
			}
			alias := path.Base(strings.TrimSuffix(imp.Specifier, path.Ext(imp.Specifier)))
			if alias == "" {
				continue
			}
			members := out[alias]
			if members == nil {
				members = make(map[string]types.SymbolID)
			}
			for _, s := range byModule[target] {
				if s.Exported {
					members[s.Name] = s.SymbolID
				}
			}
			out[alias] = members
		}
	}
	return out
}
