package indexing

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/kernel"
	"github.com/slicegraph/slicegraph/internal/types"
)

// fileResult is one file's pass-one outcome: either skipped (unknown
// language, filtered by repo config), reused (content hash unchanged,
// incremental mode), or reparsed (fresh symbols/imports extracted).
type fileResult struct {
	relPath  string
	absPath  string
	skipped  bool
	parseErr error

	file     types.File
	moduleID types.SymbolID
	reparsed bool

	symbols        []types.Symbol            // module symbol + extracted symbols, only when reparsed
	locals         []types.ExtractedSymbol   // raw adapter symbols, keyed by NodeID, only when reparsed
	nodeIDToSymbol map[uintptr]types.SymbolID // NodeID -> computed SymbolID, only when reparsed
	imports        []types.ExtractedImport   // only when reparsed
}

// processFile executes pass-one for a single candidate file (spec §4.D
// pass 1, steps 2-4): hash, skip-if-unchanged, parse, extract, assign
// content-addressed symbol IDs. Parse runs under fileTimeout; on expiry or
// any parse failure the file is isolated; its stored row is not refreshed
// this run, so the end-of-run prune drops it and the next run parses it
// again.
func (p *Pipeline) processFile(ctx context.Context, repoID types.RepoID, version types.VersionID, repoCfg config.RepoConfig, cf candidateFile, mode Mode, fileTimeout time.Duration, collisions *kernel.CollisionTracker) fileResult {
	ad, ok := p.Registry.For(cf.ext)
	if !ok {
		return fileResult{relPath: cf.relPath, skipped: true}
	}
	if len(repoCfg.Languages) > 0 && !containsString(repoCfg.Languages, ad.Language()) {
		return fileResult{relPath: cf.relPath, skipped: true}
	}

	content, err := os.ReadFile(cf.absPath)
	if err != nil {
		return fileResult{relPath: cf.relPath, parseErr: err}
	}
	contentHash := kernel.FileHash(content)
	fileID := fileIDFor(repoID, cf.relPath)
	moduleID := types.SymbolID(kernel.SymbolID(string(repoID), cf.relPath, string(types.KindModule), cf.relPath, contentHash))

	existing, found, _ := p.Store.GetFileByPath(ctx, repoID, cf.relPath)
	if mode == ModeIncremental && found && existing.ContentHash == contentHash {
		existing.LastSeenVer = version
		return fileResult{relPath: cf.relPath, absPath: cf.absPath, file: existing, moduleID: moduleID, reparsed: false}
	}

	tree, parseErr := parseWithTimeout(ad, content, cf.relPath, fileTimeout)
	if parseErr != nil || tree == nil {
		if parseErr == nil {
			parseErr = errParseFailed
		}
		return fileResult{relPath: cf.relPath, absPath: cf.absPath, parseErr: parseErr}
	}

	locals := ad.ExtractSymbols(tree, content, cf.relPath)
	imports := ad.ExtractImports(tree, content, cf.relPath)

	now := time.Now()
	symbols := make([]types.Symbol, 0, len(locals)+1)
	symbols = append(symbols, types.Symbol{
		SymbolID:       moduleID,
		RepoID:         repoID,
		FileID:         fileID,
		Kind:           types.KindModule,
		Name:           cf.relPath,
		Exported:       true,
		Language:       ad.Language(),
		Range:          types.Range{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1},
		ASTFingerprint: contentHash,
		UpdatedAt:      now,
	})

	nodeIDToSymbol := make(map[uintptr]types.SymbolID, len(locals))
	for _, ls := range locals {
		sid := types.SymbolID(kernel.SymbolID(string(repoID), cf.relPath, string(ls.Kind), ls.Name, ls.ASTFingerprint))
		collisions.Observe(ls.ASTFingerprint, cf.relPath+":"+strconv.Itoa(ls.Range.StartLine)+":"+strconv.Itoa(ls.Range.StartCol))
		nodeIDToSymbol[ls.NodeID] = sid
		symbols = append(symbols, types.Symbol{
			SymbolID:       sid,
			RepoID:         repoID,
			FileID:         fileID,
			Kind:           ls.Kind,
			Name:           ls.Name,
			Exported:       ls.Exported,
			Visibility:     ls.Visibility,
			Language:       ad.Language(),
			Range:          ls.Range,
			ASTFingerprint: ls.ASTFingerprint,
			SignatureJSON:  ls.Signature,
			Summary:        ls.DocComment,
			UpdatedAt:      now,
		})
	}

	file := types.File{
		FileID:      fileID,
		RepoID:      repoID,
		RelPath:     cf.relPath,
		ContentHash: contentHash,
		Language:    ad.Language(),
		Bytes:       cf.bytes,
		LastSeenVer: version,
	}

	return fileResult{
		relPath:        cf.relPath,
		absPath:        cf.absPath,
		file:           file,
		moduleID:       moduleID,
		reparsed:       true,
		symbols:        symbols,
		locals:         locals,
		nodeIDToSymbol: nodeIDToSymbol,
		imports:        imports,
	}
}

func fileIDFor(repoID types.RepoID, relPath string) types.FileID {
	return types.FileID(string(repoID) + ":" + relPath)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var errParseFailed = parseFailedError{}

type parseFailedError struct{}

func (parseFailedError) Error() string { return "parser returned no tree" }

// commitPass1 upserts every reparsed file's rows, deletes stale symbols,
// and upserts stored file rows for reused files so their LastSeenVer
// advances (spec §4.D pass-1 step 4, §3 file lifecycle).
func (p *Pipeline) commitPass1(ctx context.Context, repoID types.RepoID, live []fileResult) (int, error) {
	total := 0
	for _, r := range live {
		if err := p.Store.UpsertFile(ctx, r.file); err != nil {
			return total, err
		}
		if !r.reparsed {
			continue
		}
		if err := p.Store.UpsertSymbols(ctx, r.symbols, 500); err != nil {
			return total, err
		}
		keep := make([]types.SymbolID, 0, len(r.symbols))
		for _, s := range r.symbols {
			keep = append(keep, s.SymbolID)
		}
		if err := p.Store.DeleteSymbolsNotInFile(ctx, r.file.FileID, keep); err != nil {
			return total, err
		}
		total += len(r.symbols)
	}
	return total, nil
}
