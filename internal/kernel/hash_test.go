package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileHash_Deterministic(t *testing.T) {
	content := []byte("package main\n\nfunc main() {}\n")
	h1 := FileHash(content)
	h2 := FileHash(content)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestFileHash_ChangesWithContent(t *testing.T) {
	a := FileHash([]byte("a"))
	b := FileHash([]byte("b"))
	assert.NotEqual(t, a, b)
}

func TestASTFingerprint_Deterministic(t *testing.T) {
	spec := ShapeSpec{
		NodeType:      "function_declaration",
		Name:          "add",
		ParamCount:    2,
		HasReturnType: true,
		SubtreeShape:  HashShapeTokens([]string{"binary_expression", "identifier", "identifier"}),
	}
	f1 := ASTFingerprint(spec)
	f2 := ASTFingerprint(spec)
	assert.Equal(t, f1, f2)
}

func TestASTFingerprint_IgnoresIdentifierTextInBody(t *testing.T) {
	// Two bodies with the same structural shape (binop of two idents) but
	// different identifier text must fingerprint identically: the subtree
	// hash is computed over node types only.
	shapeA := HashShapeTokens([]string{"binary_expression", "identifier", "identifier"})
	shapeB := HashShapeTokens([]string{"binary_expression", "identifier", "identifier"})
	assert.Equal(t, shapeA, shapeB)

	spec := ShapeSpec{NodeType: "function_declaration", Name: "add", ParamCount: 2, SubtreeShape: shapeA}
	specSame := ShapeSpec{NodeType: "function_declaration", Name: "add", ParamCount: 2, SubtreeShape: shapeB}
	assert.Equal(t, ASTFingerprint(spec), ASTFingerprint(specSame))
}

func TestASTFingerprint_ChangesWithShape(t *testing.T) {
	base := ShapeSpec{NodeType: "function_declaration", Name: "add", ParamCount: 2, SubtreeShape: "x"}
	other := base
	other.ParamCount = 3
	assert.NotEqual(t, ASTFingerprint(base), ASTFingerprint(other))
}

func TestSymbolID_StableAcrossRuns(t *testing.T) {
	fp := ASTFingerprint(ShapeSpec{NodeType: "function_declaration", Name: "add", ParamCount: 2})
	id1 := SymbolID("repo1", "add.ts", "function", "add", fp)
	id2 := SymbolID("repo1", "add.ts", "function", "add", fp)
	assert.Equal(t, id1, id2)
}

func TestSymbolID_DiffersByPath(t *testing.T) {
	fp := ASTFingerprint(ShapeSpec{NodeType: "function_declaration", Name: "add", ParamCount: 2})
	id1 := SymbolID("repo1", "a.ts", "function", "add", fp)
	id2 := SymbolID("repo1", "b.ts", "function", "add", fp)
	assert.NotEqual(t, id1, id2)
}

func TestCardETag_KeyedByVersion(t *testing.T) {
	payload := []byte(`{"symbolId":"x"}`)
	etagV1 := CardETag("sym1", "v1", payload)
	etagV2 := CardETag("sym1", "v2", payload)
	assert.NotEqual(t, etagV1, etagV2)
}

func TestCollisionTracker_ReportsDistinctNodesSameFingerprint(t *testing.T) {
	tr := NewCollisionTracker()
	tr.Observe("fp1", "a.go:1:1")
	tr.Observe("fp1", "a.go:1:1") // same ref, not a collision
	assert.Equal(t, 0, tr.Count())

	tr.Observe("fp1", "b.go:2:2") // different ref, same fingerprint
	assert.Equal(t, 1, tr.Count())

	reports := tr.Reports()
	assert.Equal(t, "fp1", reports[0].Fingerprint)
}
