package formats

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codescope-dev/codescope/internal/model"
)

// lineRange locates a symbol found by a line-oriented parser. Column
// precision is not available for these formats.
func lineRange(line, width int) model.Range {
	return model.Range{
		Start: model.Position{Line: line, Column: 0},
		End:   model.Position{Line: line, Column: width},
	}
}

// wholeFile is the range used by parsers of formats without positions.
func wholeFile() model.Range {
	return model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 1}}
}

func nodeRange(n *sitter.Node) model.Range {
	return model.Range{
		Start: model.Position{Line: int(n.StartPoint().Row) + 1, Column: int(n.StartPoint().Column)},
		End:   model.Position{Line: int(n.EndPoint().Row) + 1, Column: int(n.EndPoint().Column)},
	}
}

// visibility derives access modifiers from Python-style name conventions.
func visibility(name string) map[string]bool {
	if strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__") {
		return map[string]bool{"private": true}
	}
	if strings.HasPrefix(name, "_") {
		return map[string]bool{"protected": true}
	}
	return nil
}

func isUpperName(name string) bool {
	hasLetter := false
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func firstDocLine(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		s = s[3 : len(s)-3]
	} else if strings.HasPrefix(s, `'''`) && strings.HasSuffix(s, `'''`) && len(s) >= 6 {
		s = s[3 : len(s)-3]
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func joinParent(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return strings.Join(path, ".")
}
