package extract

import (
	"context"
	"regexp"
	"strings"

	"costscope/internal/graph"
)

// pythonStrategy extracts units by scanning def/class headers and tracking
// indentation to determine block extents. No AST, degraded granularity
// accepted: nested functions inside functions are not emitted.
type pythonStrategy struct{}

var (
	pyDefRe    = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassRe  = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_]\w*)`)
	pyImportRe = regexp.MustCompile(`^\s*(?:import\s+\S|from\s+\S+\s+import\s)`)
)

func (s *pythonStrategy) Parse(_ context.Context, path string, source []byte) ([]graph.CodeUnit, error) {
	lines := strings.Split(string(source), "\n")

	var deps []string
	for _, line := range lines {
		if pyImportRe.MatchString(line) {
			deps = append(deps, strings.TrimSpace(line))
		}
	}

	type header struct {
		kind   graph.UnitKind
		name   string
		indent int
		line   int // 0-indexed
	}

	var headers []header
	// classStack tracks enclosing class headers by indentation so methods
	// get qualified names.
	type classFrame struct {
		name   string
		indent int
	}
	var classStack []classFrame

	popTo := func(indent int) {
		for len(classStack) > 0 && classStack[len(classStack)-1].indent >= indent {
			classStack = classStack[:len(classStack)-1]
		}
	}

	for i, line := range lines {
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			indent := indentWidth(m[1])
			popTo(indent)
			headers = append(headers, header{graph.KindClass, m[2], indent, i})
			classStack = append(classStack, classFrame{m[2], indent})
			continue
		}
		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			indent := indentWidth(m[1])
			popTo(indent)
			if len(classStack) > 0 {
				top := classStack[len(classStack)-1]
				if indent > top.indent {
					headers = append(headers, header{graph.KindMethod, top.name + "." + m[2], indent, i})
					continue
				}
			}
			if indent == 0 {
				headers = append(headers, header{graph.KindFunction, m[2], indent, i})
			}
		}
	}

	units := make([]graph.CodeUnit, 0, len(headers))
	for _, h := range headers {
		end := blockEnd(lines, h.line, h.indent)
		units = append(units, graph.CodeUnit{
			Kind:         h.kind,
			Name:         h.name,
			SourceText:   strings.Join(lines[h.line:end+1], "\n"),
			Dependencies: deps,
			Location: graph.Location{
				File:      path,
				StartLine: h.line + 1,
				StartCol:  h.indent + 1,
				EndLine:   end + 1,
				EndCol:    len(lines[end]) + 1,
			},
		})
	}
	return units, nil
}

// blockEnd finds the last line belonging to a block headed at headerLine:
// the last non-blank line indented deeper than the header.
func blockEnd(lines []string, headerLine, headerIndent int) int {
	end := headerLine
	for i := headerLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if indentWidth(leadingWhitespace(lines[i])) <= headerIndent {
			break
		}
		end = i
	}
	return end
}

func leadingWhitespace(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}

// indentWidth measures indentation, counting a tab as 4 columns.
func indentWidth(ws string) int {
	width := 0
	for _, r := range ws {
		if r == '\t' {
			width += 4
		} else {
			width++
		}
	}
	return width
}
