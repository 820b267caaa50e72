package extract

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"costscope/internal/graph"
)

// dialect selects the tree-sitter grammar for the JS/TS family.
type dialect int

const (
	dialectJavaScript dialect = iota
	dialectTypeScript
	dialectTSX
)

// treeSitterStrategy extracts units from languages with full AST support.
type treeSitterStrategy struct {
	dialect dialect
}

func newTreeSitterStrategy(d dialect) *treeSitterStrategy {
	return &treeSitterStrategy{dialect: d}
}

func (s *treeSitterStrategy) language() *sitter.Language {
	switch s.dialect {
	case dialectTypeScript:
		return typescript.GetLanguage()
	case dialectTSX:
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Parse builds the AST and emits one unit per top-level function, one per
// class, and one per method qualified as ClassName.methodName. Import and
// require statements anywhere in the file become the shared dependency
// list of every unit.
func (s *treeSitterStrategy) Parse(ctx context.Context, path string, source []byte) ([]graph.CodeUnit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(s.language())
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter parse: no root node")
	}

	deps := collectImports(root, source)

	var units []graph.CodeUnit

	for _, fn := range findNodes(root, []string{"function_declaration", "generator_function_declaration"}) {
		name := fieldText(fn, "name", source)
		if name == "" {
			continue
		}
		units = append(units, makeUnit(path, graph.KindFunction, name, fn, source, deps))
	}

	// Arrow functions and function expressions bound by top-level
	// const/let/var declarations count as functions too.
	for _, decl := range findNodes(root, []string{"lexical_declaration", "variable_declaration"}) {
		if !isTopLevel(decl) {
			continue
		}
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			declarator := decl.NamedChild(i)
			if declarator == nil || declarator.Type() != "variable_declarator" {
				continue
			}
			value := declarator.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Type() {
			case "arrow_function", "function_expression", "function":
				name := fieldText(declarator, "name", source)
				if name == "" {
					continue
				}
				units = append(units, makeUnit(path, graph.KindFunction, name, decl, source, deps))
			}
		}
	}

	for _, cls := range findNodes(root, []string{"class_declaration", "abstract_class_declaration"}) {
		className := fieldText(cls, "name", source)
		if className == "" {
			continue
		}
		units = append(units, makeUnit(path, graph.KindClass, className, cls, source, deps))

		for _, method := range findNodes(cls, []string{"method_definition"}) {
			methodName := fieldText(method, "name", source)
			if methodName == "" {
				continue
			}
			qualified := className + "." + methodName
			units = append(units, makeUnit(path, graph.KindMethod, qualified, method, source, deps))
		}
	}

	return units, nil
}

// collectImports gathers import statements and require calls from the
// whole file. Order follows source position, duplicates removed.
func collectImports(root *sitter.Node, source []byte) []string {
	var imports []string
	seen := make(map[string]bool)
	add := func(text string) {
		text = strings.TrimSpace(text)
		if text != "" && !seen[text] {
			seen[text] = true
			imports = append(imports, text)
		}
	}

	for _, imp := range findNodes(root, []string{"import_statement"}) {
		add(nodeText(imp, source))
	}
	for _, call := range findNodes(root, []string{"call_expression"}) {
		fn := call.ChildByFieldName("function")
		if fn != nil && nodeText(fn, source) == "require" {
			add(statementFor(call, source))
		}
	}
	return imports
}

// statementFor returns the source line containing a node, for require
// calls that live inside declarations.
func statementFor(node *sitter.Node, source []byte) string {
	start := int(node.StartByte())
	end := int(node.EndByte())
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for end < len(source) && source[end] != '\n' {
		end++
	}
	return string(source[start:end])
}

func makeUnit(path string, kind graph.UnitKind, name string, node *sitter.Node, source []byte, deps []string) graph.CodeUnit {
	return graph.CodeUnit{
		Kind:         kind,
		Name:         name,
		SourceText:   nodeText(node, source),
		Dependencies: deps,
		Location: graph.Location{
			File:      path,
			StartLine: int(node.StartPoint().Row) + 1,
			StartCol:  int(node.StartPoint().Column) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			EndCol:    int(node.EndPoint().Column) + 1,
		},
	}
}

// isTopLevel reports whether a node sits directly in the program, possibly
// behind an export statement.
func isTopLevel(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	if parent.Type() == "export_statement" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Type() == "program"
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return nodeText(child, source)
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// findNodes collects all nodes of the given types under root.
func findNodes(root *sitter.Node, types []string) []*sitter.Node {
	if len(types) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var result []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if wanted[node.Type()] {
			result = append(result, node)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(root)
	return result
}
