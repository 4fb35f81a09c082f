package adapter

import (
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/slicegraph/slicegraph/internal/types"
)

func textOf(node tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func rangeOf(node *tree_sitter.Node) types.Range {
	start := node.StartPosition()
	end := node.EndPosition()
	return types.Range{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// firstNamedChildText falls back to the first named child's text when a
// query didn't capture a ".name" sub-node (e.g. anonymous function
// expressions assigned to a destructured target).
func firstNamedChildText(node *tree_sitter.Node, source []byte) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.IsNamed() {
			return textOf(*child, source)
		}
	}
	return ""
}

// isExportedHeuristic treats an initial-uppercase identifier as exported,
// matching Go's convention; for languages without a capitalization
// convention this is a coarse approximation the adapter's own
// ResolveCall/visibility fields can refine later.
func isExportedHeuristic(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// collectShapeTokens walks node depth-first, appending each child's node
// type (skipping comments), up to a generous cap so pathological trees
// don't blow up fingerprint cost.
func collectShapeTokens(node *tree_sitter.Node, tokens *[]string, depth int) {
	const maxTokens = 4096
	if depth > 64 || len(*tokens) >= maxTokens {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()
		if strings.Contains(kind, "comment") {
			continue
		}
		*tokens = append(*tokens, kind)
		collectShapeTokens(child, tokens, depth+1)
	}
}

func countParams(node *tree_sitter.Node) int {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		params = node.ChildByFieldName("parameter_list")
	}
	if params == nil {
		return 0
	}
	n := 0
	for i := uint(0); i < params.ChildCount(); i++ {
		c := params.Child(i)
		if c != nil && c.IsNamed() {
			n++
		}
	}
	return n
}

func hasReturnTypeField(node *tree_sitter.Node) bool {
	for _, field := range []string{"return_type", "result", "type"} {
		if node.ChildByFieldName(field) != nil {
			return true
		}
	}
	return false
}

// importSpecifier pulls the module/path text out of an import-family node,
// preferring a field capture and falling back to the first string literal
// child.
func importSpecifier(node *tree_sitter.Node, source []byte) string {
	for _, field := range []string{"source", "path"} {
		if n := node.ChildByFieldName(field); n != nil {
			return trimQuotes(textOf(*n, source))
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if strings.Contains(child.Kind(), "string") {
			return trimQuotes(textOf(*child, source))
		}
	}
	return ""
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
