package cache

import "github.com/slicegraph/slicegraph/internal/config"

// NewSymbolCardCache builds the cache that holds projected symbol cards
// (internal/card), sized from config.Cache.SymbolCard. V is left generic
// here rather than fixed to a concrete card type so this package never
// needs to import internal/card.
func NewSymbolCardCache[V any](budget config.CacheBudget, sizeOf SizeFunc[V]) *Cache[V] {
	return New[V](budget.MaxEntries, budget.MaxSizeBytes, sizeOf)
}

// NewGraphSliceCache builds the cache that holds assembled slice results
// (internal/slicer), sized from config.Cache.GraphSlice.
func NewGraphSliceCache[V any](budget config.CacheBudget, sizeOf SizeFunc[V]) *Cache[V] {
	return New[V](budget.MaxEntries, budget.MaxSizeBytes, sizeOf)
}
