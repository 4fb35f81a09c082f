// Package adapter implements the language adapter registry (spec §4.B):
// one adapter per supported language, each wrapping a tree-sitter grammar
// and a symbol/import/call extraction query.
package adapter

import (
	"sync"

	"github.com/slicegraph/slicegraph/internal/types"
)

// Tree is the adapter-opaque parse result Parse returns. A nil Tree means
// the parser could not open a tree at all; partial trees with error nodes
// are acceptable and still extractable.
type Tree struct {
	lang     string
	ext      string
	source   []byte
	tsTree   any // *tree_sitter.Tree, boxed to keep this package import-light for non-tree-sitter adapters
	rootNode any // *tree_sitter.Node
}

// Adapter is the four-operation contract every language plugs into the
// registry (spec §4.B table).
type Adapter interface {
	Language() string
	Extensions() []string

	Parse(source []byte, path string) (*Tree, error)
	ExtractSymbols(tree *Tree, source []byte, path string) []types.ExtractedSymbol
	ExtractImports(tree *Tree, source []byte, path string) []types.ExtractedImport
	ExtractCalls(tree *Tree, source []byte, path string, locals []types.ExtractedSymbol) []types.ExtractedCall

	// ResolveCall is optional; returning ok=false falls back to the generic
	// resolver in internal/indexing.
	ResolveCall(call types.ExtractedCall, maps types.ResolutionMaps) (resolved types.ResolvedCall, ok bool)
}

// Factory lazily constructs an Adapter on first use for its extension.
type Factory func() (Adapter, error)

// Registry is the process-wide extension → adapter factory lookup table
// (spec §4.B: "adapters are constructed lazily on first use").
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Adapter
}

// NewRegistry builds a registry pre-populated with every built-in language.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Adapter),
	}
	registerBuiltins(r)
	registerSmackerBuiltins(r)
	return r
}

// Register binds ext to factory, overriding any existing binding. Plugin
// adapters use this to override a built-in; an override is never refused.
// It is reported only through the adapter debug logger, which prints
// nothing unless SLICEGRAPH_DEBUG is set; no warning is emitted.
func (r *Registry) Register(ext string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[ext]; exists {
		logger.Debugf("adapter override for extension %q", ext)
	}
	delete(r.instances, ext)
	r.factories[ext] = factory
}

// For returns the constructed adapter for ext, building it on first request.
func (r *Registry) For(ext string) (Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.instances[ext]; ok {
		return a, true
	}
	factory, ok := r.factories[ext]
	if !ok {
		return nil, false
	}
	a, err := factory()
	if err != nil {
		logger.Debugf("adapter construction failed for %q: %v", ext, err)
		return nil, false
	}
	r.instances[ext] = a
	return a, true
}

// Extensions lists every extension with a registered factory.
func (r *Registry) Extensions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for ext := range r.factories {
		out = append(out, ext)
	}
	return out
}
