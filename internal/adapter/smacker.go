package adapter

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/kotlin"

	"github.com/slicegraph/slicegraph/internal/kernel"
	"github.com/slicegraph/slicegraph/internal/types"
)

// symbolSpec binds a smacker node type to the kind it produces and the
// field holding its name.
type symbolSpec struct {
	nodeType  string
	kind      types.SymbolKind
	nameField string
}

// smackerAdapter covers the three built-in languages the official
// tree-sitter Go bindings don't ship (spec §4.B: C, Kotlin, Shell),
// grounded on theRebelliousNerd-codenerd's smacker-based recursive walker
// (internal/world/ast_treesitter.go) rather than the teacher's query-cursor
// API, which smacker does not expose the same way.
type smackerAdapter struct {
	lang     string
	exts     []string
	language *sitter.Language
	symbols  []symbolSpec
	imports  []string // node types that represent an import/include statement
	calls    []string // node types that represent a call expression
}

func (a *smackerAdapter) Language() string    { return a.lang }
func (a *smackerAdapter) Extensions() []string { return a.exts }

func (a *smackerAdapter) Parse(source []byte, path string) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(a.language)
	tree, err := parser.ParseCtx(nil, nil, source)
	if err != nil || tree == nil {
		return nil, err
	}
	return &Tree{lang: a.lang, source: source, tsTree: tree, rootNode: tree.RootNode()}, nil
}

func (a *smackerAdapter) ExtractSymbols(tree *Tree, source []byte, path string) []types.ExtractedSymbol {
	if tree == nil {
		return nil
	}
	root := tree.rootNode.(*sitter.Node)
	var out []types.ExtractedSymbol
	walkSmackerSymbols(root, source, a.symbols, &out)
	return out
}

func walkSmackerSymbols(node *sitter.Node, source []byte, specs []symbolSpec, out *[]types.ExtractedSymbol) {
	if node == nil {
		return
	}
	for _, spec := range specs {
		if node.Type() != spec.nodeType {
			continue
		}
		nameNode := node.ChildByFieldName(spec.nameField)
		if nameNode == nil {
			break
		}
		// C's function_definition "declarator" field is a function_declarator
		// wrapping the identifier (itself under a nested "declarator" field),
		// not the identifier directly.
		for nameNode.Type() == "function_declarator" || nameNode.Type() == "pointer_declarator" {
			inner := nameNode.ChildByFieldName("declarator")
			if inner == nil {
				break
			}
			nameNode = inner
		}
		name := nameNode.Content(source)
		*out = append(*out, types.ExtractedSymbol{
			NodeID:         uintptr(node.StartByte()),
			Kind:           spec.kind,
			Name:           name,
			Range:          smackerRange(node),
			Exported:       isExportedHeuristic(name),
			ASTFingerprint: smackerFingerprint(node, spec.kind, name),
		})
		break
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkSmackerSymbols(node.Child(i), source, specs, out)
	}
}

func smackerRange(node *sitter.Node) types.Range {
	start := node.StartPoint()
	end := node.EndPoint()
	return types.Range{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

func smackerFingerprint(node *sitter.Node, kind types.SymbolKind, name string) string {
	var tokens []string
	collectSmackerShapeTokens(node, &tokens, 0)
	return kernel.ASTFingerprint(kernel.ShapeSpec{
		NodeType:     node.Type(),
		Name:         name,
		SubtreeShape: kernel.HashShapeTokens(tokens),
	})
}

func collectSmackerShapeTokens(node *sitter.Node, tokens *[]string, depth int) {
	const maxTokens = 4096
	if node == nil || depth > 64 || len(*tokens) >= maxTokens {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Type()
		if strings.Contains(kind, "comment") {
			continue
		}
		*tokens = append(*tokens, kind)
		collectSmackerShapeTokens(child, tokens, depth+1)
	}
}

func (a *smackerAdapter) ExtractImports(tree *Tree, source []byte, path string) []types.ExtractedImport {
	if tree == nil || len(a.imports) == 0 {
		return nil
	}
	root := tree.rootNode.(*sitter.Node)
	var out []types.ExtractedImport
	walkSmackerImports(root, source, a.imports, &out)
	return out
}

func walkSmackerImports(node *sitter.Node, source []byte, importTypes []string, out *[]types.ExtractedImport) {
	if node == nil {
		return
	}
	for _, t := range importTypes {
		if node.Type() == t {
			text := strings.TrimSpace(node.Content(source))
			if text != "" {
				*out = append(*out, types.ExtractedImport{
					Specifier:  text,
					IsExternal: true,
					Line:       int(node.StartPoint().Row) + 1,
				})
			}
			break
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkSmackerImports(node.Child(i), source, importTypes, out)
	}
}

func (a *smackerAdapter) ExtractCalls(tree *Tree, source []byte, path string, locals []types.ExtractedSymbol) []types.ExtractedCall {
	if tree == nil || len(a.calls) == 0 {
		return nil
	}
	root := tree.rootNode.(*sitter.Node)
	var out []types.ExtractedCall
	walkSmackerCalls(root, source, a.calls, locals, &out)
	return out
}

func walkSmackerCalls(node *sitter.Node, source []byte, callTypes []string, locals []types.ExtractedSymbol, out *[]types.ExtractedCall) {
	if node == nil {
		return
	}
	for _, t := range callTypes {
		if node.Type() != t {
			continue
		}
		callee := node.ChildByFieldName("function")
		if callee == nil && node.ChildCount() > 0 {
			callee = node.Child(0)
		}
		if callee != nil {
			name := strings.TrimSpace(callee.Content(source))
			if name != "" {
				start := node.StartPoint()
				*out = append(*out, types.ExtractedCall{
					CallerNodeID: enclosingSmackerSymbolNodeID(node, locals),
					Callee:       name,
					Type:         types.CallFunction,
					Line:         int(start.Row) + 1,
					Column:       int(start.Column) + 1,
				})
			}
		}
		break
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkSmackerCalls(node.Child(i), source, callTypes, locals, out)
	}
}

func enclosingSmackerSymbolNodeID(node *sitter.Node, locals []types.ExtractedSymbol) uintptr {
	line := int(node.StartPoint().Row) + 1
	col := int(node.StartPoint().Column) + 1
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

func (a *smackerAdapter) ResolveCall(call types.ExtractedCall, maps types.ResolutionMaps) (types.ResolvedCall, bool) {
	return types.ResolvedCall{}, false
}

func registerSmackerBuiltins(r *Registry) {
	r.Register(".c", func() (Adapter, error) {
		return &smackerAdapter{
			lang: "c", exts: []string{".c"}, language: c.GetLanguage(),
			symbols: []symbolSpec{
				{nodeType: "function_definition", kind: types.KindFunction, nameField: "declarator"},
				{nodeType: "struct_specifier", kind: types.KindClass, nameField: "name"},
				{nodeType: "enum_specifier", kind: types.KindType, nameField: "name"},
			},
			imports: []string{"preproc_include"},
			calls:   []string{"call_expression"},
		}, nil
	})

	r.Register(".kt", func() (Adapter, error) {
		return &smackerAdapter{
			lang: "kotlin", exts: []string{".kt", ".kts"}, language: kotlin.GetLanguage(),
			symbols: []symbolSpec{
				{nodeType: "function_declaration", kind: types.KindFunction, nameField: "name"},
				{nodeType: "class_declaration", kind: types.KindClass, nameField: "name"},
				{nodeType: "object_declaration", kind: types.KindModule, nameField: "name"},
			},
			imports: []string{"import_header"},
			calls:   []string{"call_expression"},
		}, nil
	})
	r.Register(".kts", func() (Adapter, error) {
		a, _ := r.For(".kt")
		return a, nil
	})

	r.Register(".sh", func() (Adapter, error) {
		return &smackerAdapter{
			lang: "shell", exts: []string{".sh", ".bash"}, language: bash.GetLanguage(),
			symbols: []symbolSpec{
				{nodeType: "function_definition", kind: types.KindFunction, nameField: "name"},
			},
			imports: []string{},
			calls:   []string{"command"},
		}, nil
	})
	r.Register(".bash", func() (Adapter, error) {
		a, _ := r.For(".sh")
		return a, nil
	})
}
