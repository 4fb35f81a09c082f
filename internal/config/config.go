// Package config loads and validates the ledger's configuration document
// (spec §6): repositories to index, the storage path, budget policy, and
// the tunables that the indexing pipeline, slice engine, and caches read
// at construction time.
package config

// Config is the root configuration document.
type Config struct {
	Repos    []RepoConfig `json:"repos"`
	DBPath   string       `json:"dbPath"`
	Policy   Policy       `json:"policy"`
	Indexing Indexing     `json:"indexing"`
	Slice    Slice        `json:"slice"`
	Cache    Cache        `json:"cache"`
}

// RepoConfig describes one repository the ledger knows how to index.
type RepoConfig struct {
	RepoID        string   `json:"repoId"`
	RootPath      string   `json:"rootPath"`
	Ignore        []string `json:"ignore"`
	Languages     []string `json:"languages"`
	MaxFileBytes  int64    `json:"maxFileBytes"`
	WorkspaceGlob []string `json:"workspaceGlobs,omitempty"`
}

// Policy bounds what a slice build is allowed to cost and return.
type Policy struct {
	MaxWindowLines     int  `json:"maxWindowLines"`
	MaxWindowTokens    int  `json:"maxWindowTokens"`
	RequireIdentifiers bool `json:"requireIdentifiers"`
	AllowBreakGlass    bool `json:"allowBreakGlass"`
}

// Indexing bounds how much concurrency the indexing pipeline may use.
type Indexing struct {
	Concurrency int `json:"concurrency"`
}

// Slice holds the beam-search engine's default budgets and edge weights.
type Slice struct {
	DefaultMaxCards  int                `json:"defaultMaxCards"`
	DefaultMaxTokens int                `json:"defaultMaxTokens"`
	EdgeWeights      map[string]float64 `json:"edgeWeights"`
}

// Cache holds the per-cache sizing for the two version-scoped LRU caches.
type Cache struct {
	SymbolCard CacheBudget `json:"symbolCard"`
	GraphSlice CacheBudget `json:"graphSlice"`
}

// CacheBudget bounds one cache by both entry count and byte size; whichever
// limit is hit first triggers eviction.
type CacheBudget struct {
	MaxEntries   int   `json:"maxEntries"`
	MaxSizeBytes int64 `json:"maxSizeBytes"`
}

// Default returns a Config with the same defaults the teacher's
// config.go ships, adapted to this document's field set.
func Default() Config {
	return Config{
		DBPath: "slicegraph.db",
		Policy: Policy{
			MaxWindowLines:     200,
			MaxWindowTokens:    4000,
			RequireIdentifiers: true,
			AllowBreakGlass:    false,
		},
		Indexing: Indexing{Concurrency: 8},
		Slice: Slice{
			DefaultMaxCards:  40,
			DefaultMaxTokens: 8000,
			EdgeWeights: map[string]float64{
				"calls":     1.0,
				"implements": 0.9,
				"imports":   0.6,
				"references": 0.5,
			},
		},
		Cache: Cache{
			SymbolCard: CacheBudget{MaxEntries: 5000, MaxSizeBytes: 64 << 20},
			GraphSlice: CacheBudget{MaxEntries: 500, MaxSizeBytes: 128 << 20},
		},
	}
}
