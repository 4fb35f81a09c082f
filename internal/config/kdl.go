package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// envRef matches ${NAME} references anywhere in a KDL document's raw text.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadKDL reads and parses the ledger config at path. Environment-variable
// references of the form ${NAME} are expanded against the process
// environment before parsing; an unset variable expands to the empty
// string, matching the teacher's permissive KDL loader.
func LoadKDL(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := expandEnv(string(raw))

	parsed, err := kdl.Parse(strings.NewReader(expanded))
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := Default()
	if err := parseKDLDocument(&cfg, parsed); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		return os.Getenv(name)
	})
}

// parseKDLDocument walks the top-level nodes of a parsed KDL document into
// cfg, following the teacher's node-by-node switch pattern in
// internal/config/kdl_config.go's parseKDL. An unrecognized node or key at
// any level is a load error rather than a silently dropped field — spec §6
// says validation rejects unknown fields, which only holds at the source
// document if the loader itself refuses to decode past them; a schema
// re-validating the already-decoded *Config can never see a field the
// decode step threw away first.
func parseKDLDocument(cfg *Config, doc *document.Document) error {
	for _, n := range doc.Nodes {
		name := nodeName(n)
		switch name {
		case "db-path":
			if s, ok := firstStringArg(n); ok {
				cfg.DBPath = s
			}
		case "repo":
			rc, err := parseRepoNode(n)
			if err != nil {
				return err
			}
			cfg.Repos = append(cfg.Repos, rc)
		case "policy":
			if err := parsePolicyNode(&cfg.Policy, n); err != nil {
				return err
			}
		case "indexing":
			if err := parseIndexingNode(&cfg.Indexing, n); err != nil {
				return err
			}
		case "slice":
			if err := parseSliceNode(&cfg.Slice, n); err != nil {
				return err
			}
		case "cache":
			if err := parseCacheNode(&cfg.Cache, n); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown config key %q", name)
		}
	}
	return nil
}

func parseRepoNode(n *document.Node) (RepoConfig, error) {
	rc := RepoConfig{MaxFileBytes: 10 << 20}
	if s, ok := firstStringArg(n); ok {
		rc.RepoID = s
	}
	for _, child := range n.Children {
		switch nodeName(child) {
		case "repoId", "repo-id":
			if s, ok := firstStringArg(child); ok {
				rc.RepoID = s
			}
		case "rootPath", "root-path":
			if s, ok := firstStringArg(child); ok {
				rc.RootPath = s
			}
		case "ignore":
			rc.Ignore = collectStringArgs(child)
		case "languages":
			rc.Languages = collectStringArgs(child)
		case "workspaceGlobs", "workspace-globs":
			rc.WorkspaceGlob = collectStringArgs(child)
		case "maxFileBytes", "max-file-bytes":
			if s, ok := firstStringArg(child); ok {
				size, err := parseSize(s)
				if err != nil {
					return rc, fmt.Errorf("repo %s: %w", rc.RepoID, err)
				}
				rc.MaxFileBytes = size
			} else if i, ok := firstIntArg(child); ok {
				rc.MaxFileBytes = int64(i)
			}
		default:
			return rc, fmt.Errorf("repo node: unknown key %q", nodeName(child))
		}
	}
	if rc.RepoID == "" {
		return rc, fmt.Errorf("repo node missing repoId")
	}
	return rc, nil
}

func parsePolicyNode(p *Policy, n *document.Node) error {
	for _, child := range n.Children {
		switch nodeName(child) {
		case "maxWindowLines", "max-window-lines":
			if i, ok := firstIntArg(child); ok {
				p.MaxWindowLines = i
			}
		case "maxWindowTokens", "max-window-tokens":
			if i, ok := firstIntArg(child); ok {
				p.MaxWindowTokens = i
			}
		case "requireIdentifiers", "require-identifiers":
			if b, ok := firstBoolArg(child); ok {
				p.RequireIdentifiers = b
			}
		case "allowBreakGlass", "allow-break-glass":
			if b, ok := firstBoolArg(child); ok {
				p.AllowBreakGlass = b
			}
		default:
			return fmt.Errorf("policy node: unknown key %q", nodeName(child))
		}
	}
	return nil
}

func parseIndexingNode(idx *Indexing, n *document.Node) error {
	for _, child := range n.Children {
		if nodeName(child) != "concurrency" {
			return fmt.Errorf("indexing node: unknown key %q", nodeName(child))
		}
		if i, ok := firstIntArg(child); ok {
			idx.Concurrency = i
		}
	}
	return nil
}

func parseSliceNode(s *Slice, n *document.Node) error {
	for _, child := range n.Children {
		switch nodeName(child) {
		case "defaultMaxCards", "default-max-cards":
			if i, ok := firstIntArg(child); ok {
				s.DefaultMaxCards = i
			}
		case "defaultMaxTokens", "default-max-tokens":
			if i, ok := firstIntArg(child); ok {
				s.DefaultMaxTokens = i
			}
		case "edgeWeights", "edge-weights":
			if s.EdgeWeights == nil {
				s.EdgeWeights = make(map[string]float64)
			}
			for _, w := range child.Children {
				name := nodeName(w)
				if f, ok := firstFloatArg(w); ok {
					s.EdgeWeights[name] = f
				}
			}
		default:
			return fmt.Errorf("slice node: unknown key %q", nodeName(child))
		}
	}
	return nil
}

func parseCacheNode(c *Cache, n *document.Node) error {
	for _, child := range n.Children {
		switch nodeName(child) {
		case "symbolCard", "symbol-card":
			if err := parseCacheBudgetNode(&c.SymbolCard, child); err != nil {
				return err
			}
		case "graphSlice", "graph-slice":
			if err := parseCacheBudgetNode(&c.GraphSlice, child); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cache node: unknown key %q", nodeName(child))
		}
	}
	return nil
}

func parseCacheBudgetNode(b *CacheBudget, n *document.Node) error {
	for _, child := range n.Children {
		switch nodeName(child) {
		case "maxEntries", "max-entries":
			if i, ok := firstIntArg(child); ok {
				b.MaxEntries = i
			}
		case "maxSizeBytes", "max-size-bytes":
			if s, ok := firstStringArg(child); ok {
				if sz, err := parseSize(s); err == nil {
					b.MaxSizeBytes = sz
				}
			} else if i, ok := firstIntArg(child); ok {
				b.MaxSizeBytes = int64(i)
			}
		default:
			return fmt.Errorf("%s node: unknown key %q", nodeName(n), nodeName(child))
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// parseSize handles size strings like "10MB", "500KB", "1GB", falling back
// to a bare byte count when no unit suffix is present.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}
	numStr = strings.TrimSpace(numStr)
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * multiplier, nil
}
