package config

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/slicegraph/slicegraph/internal/errs"
)

// Validator checks a loaded Config against range constraints the teacher's
// hand-rolled validator enforces, plus a compiled JSON Schema that rejects
// unknown top-level fields and out-of-range values structurally (spec §6).
type Validator struct {
	schema *jsonschema.Resolved
}

// NewValidator compiles the ledger config schema once; callers reuse it
// across every LoadKDL call.
func NewValidator() (*Validator, error) {
	resolved, err := documentSchema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return &Validator{schema: resolved}, nil
}

// ValidateAndSetDefaults validates cfg, filling any zero-valued tunables
// with Default()'s values, then re-checks ranges. Unknown keys are rejected
// earlier, by the KDL loader (parseKDLDocument); the schema step here
// validates the decoded Config.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateSchema(cfg); err != nil {
		return errs.Internal("config schema validation failed", err)
	}
	if len(cfg.Repos) == 0 {
		return errs.Internal("config must declare at least one repo", nil)
	}
	seen := make(map[string]bool, len(cfg.Repos))
	for i := range cfg.Repos {
		r := &cfg.Repos[i]
		if r.RepoID == "" {
			return errs.Internal("repo entry missing repoId", nil)
		}
		if seen[r.RepoID] {
			return errs.Internal(fmt.Sprintf("duplicate repoId %q", r.RepoID), nil)
		}
		seen[r.RepoID] = true
		if r.RootPath == "" {
			return errs.Internal(fmt.Sprintf("repo %q missing rootPath", r.RepoID), nil)
		}
		if r.MaxFileBytes <= 0 {
			r.MaxFileBytes = 10 << 20
		}
	}
	if cfg.Indexing.Concurrency <= 0 {
		cfg.Indexing.Concurrency = Default().Indexing.Concurrency
	}
	if cfg.Slice.DefaultMaxCards <= 0 {
		cfg.Slice.DefaultMaxCards = Default().Slice.DefaultMaxCards
	}
	if cfg.Slice.DefaultMaxTokens <= 0 {
		cfg.Slice.DefaultMaxTokens = Default().Slice.DefaultMaxTokens
	}
	if cfg.Policy.MaxWindowLines <= 0 {
		return fmt.Errorf("policy.maxWindowLines must be positive, got %d", cfg.Policy.MaxWindowLines)
	}
	if cfg.Policy.MaxWindowTokens <= 0 {
		return fmt.Errorf("policy.maxWindowTokens must be positive, got %d", cfg.Policy.MaxWindowTokens)
	}
	if cfg.Cache.SymbolCard.MaxEntries <= 0 || cfg.Cache.GraphSlice.MaxEntries <= 0 {
		return fmt.Errorf("cache maxEntries must be positive")
	}
	return nil
}

func (v *Validator) validateSchema(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	return v.schema.Validate(instance)
}

// documentSchema mirrors the field set in Config; additionalProperties is
// false at every object level so an unrecognized field is rejected rather
// than silently ignored.
func documentSchema() *jsonschema.Schema {
	minOne := float64(1)
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
		Properties: map[string]*jsonschema.Schema{
			"repos": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:                 "object",
					AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
					Required:             []string{"repoId", "rootPath"},
					Properties: map[string]*jsonschema.Schema{
						"repoId":         {Type: "string"},
						"rootPath":       {Type: "string"},
						"ignore":         {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"languages":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"maxFileBytes":   {Type: "integer", Minimum: &minOne},
						"workspaceGlobs": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					},
				},
			},
			"dbPath": {Type: "string"},
			"policy": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
				Properties: map[string]*jsonschema.Schema{
					"maxWindowLines":     {Type: "integer", Minimum: &minOne},
					"maxWindowTokens":    {Type: "integer", Minimum: &minOne},
					"requireIdentifiers": {Type: "boolean"},
					"allowBreakGlass":    {Type: "boolean"},
				},
			},
			"indexing": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
				Properties: map[string]*jsonschema.Schema{
					"concurrency": {Type: "integer", Minimum: &minOne},
				},
			},
			"slice": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
				Properties: map[string]*jsonschema.Schema{
					"defaultMaxCards":  {Type: "integer", Minimum: &minOne},
					"defaultMaxTokens": {Type: "integer", Minimum: &minOne},
					"edgeWeights":      {Type: "object"},
				},
			},
			"cache": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
				Properties: map[string]*jsonschema.Schema{
					"symbolCard": cacheBudgetSchema(),
					"graphSlice": cacheBudgetSchema(),
				},
			},
		},
	}
}

func cacheBudgetSchema() *jsonschema.Schema {
	minOne := float64(1)
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
		Properties: map[string]*jsonschema.Schema{
			"maxEntries":   {Type: "integer", Minimum: &minOne},
			"maxSizeBytes": {Type: "integer", Minimum: &minOne},
		},
	}
}
