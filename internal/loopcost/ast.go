package loopcost

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// loopNodeTypes are the constructs that put descendants "inside a loop".
var loopNodeTypes = map[string]bool{
	"for_statement":    true,
	"for_in_statement": true, // covers for-in and for-of in the JS grammar
	"while_statement":  true,
	"do_statement":     true,
}

// detectAST walks the tree with an inside-loop flag seeded on loop nodes
// and propagated to descendants; every call expression seen with the flag
// set is tested against the costly signature list.
func (d *Detector) detectAST(file string, content []byte, lang Language) ([]Suggestion, error) {
	parser := sitter.NewParser()
	switch lang {
	case LangTypeScript:
		parser.SetLanguage(typescript.GetLanguage())
	case LangTSX:
		parser.SetLanguage(tsx.GetLanguage())
	default:
		parser.SetLanguage(javascript.GetLanguage())
	}

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse for loop detection: %w", err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parse for loop detection: no root node")
	}

	var suggestions []Suggestion
	var walk func(node *sitter.Node, insideLoop bool)
	walk = func(node *sitter.Node, insideLoop bool) {
		if node == nil {
			return
		}
		if loopNodeTypes[node.Type()] {
			insideLoop = true
		}
		if insideLoop && node.Type() == "call_expression" {
			if callee := calleeName(node, content); callee != "" {
				if sig := d.matchCostly(callee + "("); sig != "" {
					suggestions = append(suggestions, d.suggest(
						file,
						int(node.StartPoint().Row)+1,
						int(node.StartPoint().Column)+1,
						callee,
					))
				}
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i), insideLoop)
		}
	}
	walk(root, false)
	return suggestions, nil
}

// calleeName resolves the full dotted name of a call expression's callee,
// e.g. client.chat.completions.create. Computed or non-identifier callees
// return what the source spells, which is fine for substring matching.
func calleeName(call *sitter.Node, content []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	name := string(content[fn.StartByte():fn.EndByte()])
	// Collapse whitespace so multi-line member chains still match.
	fields := strings.Fields(name)
	return strings.Join(fields, "")
}
