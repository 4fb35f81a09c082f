package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempKDL(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "slicegraph.kdl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadKDL_ParsesRepoAndPolicy(t *testing.T) {
	path := writeTempKDL(t, `
db-path "slicegraph.db"
repo {
	repoId "svc"
	rootPath "/workspace/svc"
	languages "go" "python"
	ignore "vendor/**" "*.gen.go"
	maxFileBytes "5MB"
}
policy {
	maxWindowLines 150
	maxWindowTokens 3000
	requireIdentifiers true
}
indexing {
	concurrency 4
}
`)
	cfg, err := LoadKDL(path)
	require.NoError(t, err)
	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, "svc", cfg.Repos[0].RepoID)
	assert.Equal(t, "/workspace/svc", cfg.Repos[0].RootPath)
	assert.ElementsMatch(t, []string{"go", "python"}, cfg.Repos[0].Languages)
	assert.Equal(t, int64(5*1024*1024), cfg.Repos[0].MaxFileBytes)
	assert.Equal(t, 150, cfg.Policy.MaxWindowLines)
	assert.Equal(t, 4, cfg.Indexing.Concurrency)
}

func TestLoadKDL_RejectsUnknownTopLevelKey(t *testing.T) {
	path := writeTempKDL(t, `
db-path "slicegraph.db"
repo {
	repoId "svc"
	rootPath "/workspace/svc"
}
telemetry {
	endpoint "https://example.invalid"
}
`)
	_, err := LoadKDL(path)
	assert.Error(t, err)
}

func TestLoadKDL_RejectsUnknownNestedKey(t *testing.T) {
	path := writeTempKDL(t, `
repo {
	repoId "svc"
	rootPath "/workspace/svc"
}
policy {
	maxWindowLines 150
	maxWindowTokens 3000
	cacheHint "aggressive"
}
`)
	_, err := LoadKDL(path)
	assert.Error(t, err)
}

func TestLoadKDL_ExpandsEnvRefs(t *testing.T) {
	t.Setenv("SLICEGRAPH_ROOT", "/env/expanded/root")
	path := writeTempKDL(t, `
repo {
	repoId "svc"
	rootPath "${SLICEGRAPH_ROOT}"
}
`)
	cfg, err := LoadKDL(path)
	require.NoError(t, err)
	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, "/env/expanded/root", cfg.Repos[0].RootPath)
}

func TestValidator_FillsDefaultsForZeroFields(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cfg := Default()
	cfg.Repos = []RepoConfig{{RepoID: "svc", RootPath: "/workspace/svc"}}
	cfg.Indexing.Concurrency = 0
	cfg.Slice.DefaultMaxCards = 0

	require.NoError(t, v.ValidateAndSetDefaults(&cfg))
	assert.Equal(t, Default().Indexing.Concurrency, cfg.Indexing.Concurrency)
	assert.Equal(t, Default().Slice.DefaultMaxCards, cfg.Slice.DefaultMaxCards)
}

func TestValidator_RejectsNoRepos(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cfg := Default()
	assert.Error(t, v.ValidateAndSetDefaults(&cfg))
}

func TestValidator_RejectsDuplicateRepoID(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cfg := Default()
	cfg.Repos = []RepoConfig{
		{RepoID: "svc", RootPath: "/a"},
		{RepoID: "svc", RootPath: "/b"},
	}
	assert.Error(t, v.ValidateAndSetDefaults(&cfg))
}

func TestValidator_RejectsBadPolicyRanges(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cfg := Default()
	cfg.Repos = []RepoConfig{{RepoID: "svc", RootPath: "/workspace/svc"}}
	cfg.Policy.MaxWindowLines = 0
	assert.Error(t, v.ValidateAndSetDefaults(&cfg))
}
