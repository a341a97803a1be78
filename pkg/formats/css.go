package formats

import (
	"regexp"
	"strings"

	"github.com/codescope-dev/codescope/internal/model"
)

var (
	cssImportPattern = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']([^"']+)["']`)
	cssClassPattern  = regexp.MustCompile(`\.([a-zA-Z][\w-]*)`)
	cssIDPattern     = regexp.MustCompile(`#([a-zA-Z][\w-]*)`)
)

// CSSParser extracts class and id selectors plus @import references.
// It scans line by line; selectors inside comments are not filtered out,
// which matches how lightweight CSS tooling typically behaves.
type CSSParser struct{}

func NewCSSParser() *CSSParser { return &CSSParser{} }

func (p *CSSParser) Format() model.Format { return model.FormatCSS }

func (p *CSSParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatCSS}

	for lineNum, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := cssImportPattern.FindStringSubmatch(line); m != nil {
			record.Dependencies = append(record.Dependencies, model.Dependency{
				Target: m[1],
				Kind:   model.DepCSSImport,
			})
			record.RawImports = append(record.RawImports, m[1])
			continue
		}

		for _, m := range cssClassPattern.FindAllStringSubmatch(line, -1) {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  m[1],
				Kind:  model.KindCSSClass,
				Range: lineRange(lineNum+1, len(line)),
			})
		}
		for _, m := range cssIDPattern.FindAllStringSubmatch(line, -1) {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  m[1],
				Kind:  model.KindCSSID,
				Range: lineRange(lineNum+1, len(line)),
			})
		}
	}
	return record, nil
}
