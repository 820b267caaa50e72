package loopcost

import (
	"regexp"
	"strings"
)

var loopHeaderRe = regexp.MustCompile(`^\s*(?:for\s+.+\s+in\s+.+:|while\s+.+:|for\s+.+:)\s*(?:#.*)?$`)

// detectIndented handles languages without an AST strategy by tracking a
// stack of active loop-header indentation levels. A line is inside a loop
// when its indentation exceeds the top of the stack; loop-header lines
// themselves are skipped.
func (d *Detector) detectIndented(file string, content []byte) []Suggestion {
	lines := strings.Split(string(content), "\n")

	type frame struct{ indent int }
	var stack []frame
	var suggestions []Suggestion

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := indentWidth(line)

		// Leaving blocks: drop loop frames the current line is not
		// nested under.
		for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}

		if loopHeaderRe.MatchString(line) {
			stack = append(stack, frame{indent: indent})
			continue
		}

		if len(stack) == 0 {
			continue
		}

		if sig := d.matchCostly(line); sig != "" {
			col := indent + 1
			callee := strings.TrimSpace(sig)
			suggestions = append(suggestions, d.suggest(file, i+1, col, strings.Trim(callee, "(.")))
		}
	}
	return suggestions
}

// indentWidth measures leading whitespace, counting a tab as 4 columns.
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}
