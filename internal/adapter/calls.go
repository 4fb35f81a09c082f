package adapter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/slicegraph/slicegraph/internal/types"
)

// walkCalls performs a plain recursive descent over the tree (rather than a
// tree-sitter query) because call-site shapes vary too much across
// grammars to express generically as one capture query; node-type lists
// per language are enough to recognize a call.
func walkCalls(node *tree_sitter.Node, source []byte, spec callSpec, locals []types.ExtractedSymbol, out *[]types.ExtractedCall) {
	if node == nil {
		return
	}
	if isCallNode(node.Kind(), spec.nodeTypes) {
		if c, ok := callFromNode(node, source, spec, locals); ok {
			*out = append(*out, c)
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walkCalls(node.Child(i), source, spec, locals, out)
	}
}

func isCallNode(kind string, types_ []string) bool {
	for _, t := range types_ {
		if t == kind {
			return true
		}
	}
	return false
}

func callFromNode(node *tree_sitter.Node, source []byte, spec callSpec, locals []types.ExtractedSymbol) (types.ExtractedCall, bool) {
	var calleeNode *tree_sitter.Node
	if spec.calleeField != "" {
		calleeNode = node.ChildByFieldName(spec.calleeField)
	}
	if calleeNode == nil {
		calleeNode = node.Child(0)
	}
	if calleeNode == nil {
		return types.ExtractedCall{}, false
	}
	text := textOf(*calleeNode, source)
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ExtractedCall{}, false
	}

	callType := types.CallFunction
	namespace, name := "", text
	if spec.memberSplit {
		if idx, width := lastSep(text); idx >= 0 {
			namespace = text[:idx]
			name = text[idx+width:]
			callType = types.CallMethod
		}
	}

	start := node.StartPosition()
	return types.ExtractedCall{
		CallerNodeID: enclosingSymbolNodeID(node, locals),
		Callee:       name,
		Namespace:    namespace,
		Type:         callType,
		Line:         int(start.Row) + 1,
		Column:       int(start.Column) + 1,
	}, true
}

// lastSep finds the rightmost "." or "::" separator in a qualified callee
// expression's rendered text, returning its index and width.
func lastSep(s string) (int, int) {
	colon := strings.LastIndex(s, "::")
	dot := strings.LastIndex(s, ".")
	if colon > dot {
		return colon, 2
	}
	if dot >= 0 {
		return dot, 1
	}
	return -1, 0
}

// enclosingSymbolNodeID finds the nearest already-extracted local symbol
// whose range contains node's start, approximating the "caller symbol
// whose range contains the call site" rule (spec §4.D pass-2 step 2). Ties
// (nested symbols) prefer the innermost (smallest) range.
func enclosingSymbolNodeID(node *tree_sitter.Node, locals []types.ExtractedSymbol) uintptr {
	line := int(node.StartPosition().Row) + 1
	col := int(node.StartPosition().Column) + 1

	var best *types.ExtractedSymbol
	for i := range locals {
		s := &locals[i]
		if !rangeContains(s.Range, line, col) {
			continue
		}
		if best == nil || rangeSize(s.Range) < rangeSize(best.Range) {
			best = s
		}
	}
	if best == nil {
		return 0
	}
	return best.NodeID
}

func rangeContains(r types.Range, line, col int) bool {
	if line < r.StartLine || line > r.EndLine {
		return false
	}
	if line == r.StartLine && col < r.StartCol {
		return false
	}
	if line == r.EndLine && col > r.EndCol {
		return false
	}
	return true
}

func rangeSize(r types.Range) int {
	return (r.EndLine-r.StartLine)*100000 + (r.EndCol - r.StartCol)
}
