package adapter

import (
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/slicegraph/slicegraph/internal/kernel"
	"github.com/slicegraph/slicegraph/internal/types"
)

// captureKind maps a tree-sitter query capture name (spec §4.B extraction)
// to the symbol kind it produces. Captures not present here (e.g.
// ".name" sub-captures, "import") are handled separately.
var captureKind = map[string]types.SymbolKind{
	"function":    types.KindFunction,
	"method":      types.KindMethod,
	"constructor": types.KindConstructor,
	"class":       types.KindClass,
	"struct":      types.KindClass,
	"record":      types.KindClass,
	"interface":   types.KindInterface,
	"trait":       types.KindInterface,
	"type":        types.KindType,
	"enum":        types.KindType,
	"delegate":    types.KindType,
	"variable":    types.KindVariable,
	"field":       types.KindVariable,
	"property":    types.KindVariable,
	"event":       types.KindVariable,
	"module":      types.KindModule,
	"namespace":   types.KindModule,
	"impl":        types.KindClass,
}

// callSpec tells the generic call extractor which tree-sitter node types
// represent a call expression and which field (or fallback: first child)
// holds the callee.
type callSpec struct {
	nodeTypes    []string
	calleeField  string
	memberSplit  bool // callee is "a.b" or "a::b"-shaped; split into namespace + name
}

// queryAdapter is a tree-sitter-grammar-backed Adapter driven by a single
// capture query string, grounded on the teacher's
// internal/parser/parser_language_setup.go query strings and
// internal/parser/parser.go's capture-dispatch loop.
type queryAdapter struct {
	lang       string
	exts       []string
	language   *tree_sitter.Language
	query      *tree_sitter.Query
	calls      callSpec
}

func newQueryAdapter(lang string, exts []string, langPtr unsafe.Pointer, queryStr string, calls callSpec) (*queryAdapter, error) {
	language := tree_sitter.NewLanguage(langPtr)
	query, _ := tree_sitter.NewQuery(language, queryStr)
	return &queryAdapter{lang: lang, exts: exts, language: language, query: query, calls: calls}, nil
}

func (a *queryAdapter) Language() string    { return a.lang }
func (a *queryAdapter) Extensions() []string { return a.exts }

func (a *queryAdapter) Parse(source []byte, path string) (*Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(a.language); err != nil {
		return nil, err
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, nil
	}
	root := tree.RootNode()
	return &Tree{lang: a.lang, source: source, tsTree: tree, rootNode: root}, nil
}

func (a *queryAdapter) ExtractSymbols(tree *Tree, source []byte, path string) []types.ExtractedSymbol {
	if tree == nil || a.query == nil {
		return nil
	}
	root := tree.rootNode.(*tree_sitter.Node)
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(a.query, root, source)
	names := a.query.CaptureNames()

	var out []types.ExtractedSymbol
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		captured := make(map[string]string, 4)
		for _, c := range match.Captures {
			name := names[c.Index]
			if strings.HasSuffix(name, ".name") {
				captured[name] = textOf(c.Node, source)
			}
		}
		for _, c := range match.Captures {
			name := names[c.Index]
			kind, ok := captureKind[name]
			if !ok {
				continue
			}
			node := c.Node
			symName := captured[name+".name"]
			if symName == "" {
				symName = firstNamedChildText(&node, source)
			}
			if symName == "" {
				continue
			}
			out = append(out, types.ExtractedSymbol{
				NodeID:         uintptr(node.StartByte()),
				Kind:           kind,
				Name:           symName,
				Range:          rangeOf(&node),
				Exported:       isExportedHeuristic(symName),
				ASTFingerprint: a.fingerprint(&node, kind, symName, source),
			})
		}
	}
	return out
}

func (a *queryAdapter) fingerprint(node *tree_sitter.Node, kind types.SymbolKind, name string, source []byte) string {
	tokens := make([]string, 0, 32)
	collectShapeTokens(node, &tokens, 0)
	return kernel.ASTFingerprint(kernel.ShapeSpec{
		NodeType:      node.Kind(),
		Name:          name,
		ParamCount:    countParams(node),
		HasReturnType: hasReturnTypeField(node),
		SubtreeShape:  kernel.HashShapeTokens(tokens),
	})
}

func (a *queryAdapter) ExtractImports(tree *Tree, source []byte, path string) []types.ExtractedImport {
	if tree == nil || a.query == nil {
		return nil
	}
	root := tree.rootNode.(*tree_sitter.Node)
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(a.query, root, source)
	names := a.query.CaptureNames()

	var out []types.ExtractedImport
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			name := names[c.Index]
			if name != "import" {
				continue
			}
			node := c.Node
			spec := importSpecifier(&node, source)
			if spec == "" {
				continue
			}
			out = append(out, types.ExtractedImport{
				Specifier:  spec,
				IsRelative: strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/"),
				IsExternal: !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "/"),
				Line:       int(node.StartPosition().Row) + 1,
			})
		}
	}
	return out
}

func (a *queryAdapter) ExtractCalls(tree *Tree, source []byte, path string, locals []types.ExtractedSymbol) []types.ExtractedCall {
	if tree == nil || len(a.calls.nodeTypes) == 0 {
		return nil
	}
	root := tree.rootNode.(*tree_sitter.Node)
	var out []types.ExtractedCall
	walkCalls(root, source, a.calls, locals, &out)
	return out
}

func (a *queryAdapter) ResolveCall(call types.ExtractedCall, maps types.ResolutionMaps) (types.ResolvedCall, bool) {
	return types.ResolvedCall{}, false
}
