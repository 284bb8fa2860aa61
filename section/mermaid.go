package section

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	diagramTypes = []string{"flowchart", "graph", "sequenceDiagram"}

	arrowSplit = regexp.MustCompile(`-->|---|===|==>`)
	styleDecl  = regexp.MustCompile(`style\s+\w+\s+\w+:`)
)

// ValidateMermaid checks generated Mermaid source for the errors models
// commonly make: a missing diagram-type keyword, unbalanced brackets,
// malformed connectors, and broken style declarations. It returns nil when
// the code is safe to embed.
func ValidateMermaid(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("empty diagram code")
	}

	typed := false
	for _, t := range diagramTypes {
		if strings.HasPrefix(code, t) {
			typed = true
			break
		}
	}
	if !typed {
		return fmt.Errorf("must start with one of: %s", strings.Join(diagramTypes, ", "))
	}

	lines := strings.Split(code, "\n")

	if strings.HasPrefix(code, "flowchart") || strings.HasPrefix(code, "graph") {
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "%%") {
				continue
			}
			open := strings.Count(line, "[") + strings.Count(line, "(") + strings.Count(line, "{")
			closed := strings.Count(line, "]") + strings.Count(line, ")") + strings.Count(line, "}")
			if open != closed {
				return fmt.Errorf("unmatched brackets in line: %s", clipLine(line))
			}
			if strings.Contains(line, "-->") || strings.Contains(line, "--->") || strings.Contains(line, "==>") {
				if len(arrowSplit.Split(line, -1)) < 2 {
					return fmt.Errorf("invalid arrow syntax: %s", clipLine(line))
				}
			}
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "style ") && !styleDecl.MatchString(line) {
			return fmt.Errorf("invalid style syntax: %s", clipLine(line))
		}
	}
	return nil
}

func clipLine(line string) string {
	if len(line) > 50 {
		return line[:50]
	}
	return line
}
