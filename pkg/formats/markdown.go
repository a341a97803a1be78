package formats

import (
	"regexp"
	"strings"

	"github.com/codescope-dev/codescope/internal/model"
)

var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`)

// MarkdownParser extracts headings as document sections and local link
// targets as references. Fenced code blocks are skipped.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser { return &MarkdownParser{} }

func (p *MarkdownParser) Format() model.Format { return model.FormatMarkdown }

func (p *MarkdownParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatMarkdown}
	inFence := false

	for lineNum, line := range splitLines(content) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if heading != "" {
				record.Symbols = append(record.Symbols, model.Symbol{
					Name:  heading,
					Kind:  model.KindDocSection,
					Range: lineRange(lineNum+1, len(line)),
				})
			}
			continue
		}

		for _, m := range markdownLinkPattern.FindAllStringSubmatch(trimmed, -1) {
			target := strings.TrimSpace(m[1])
			if target == "" || strings.Contains(target, "://") || strings.HasPrefix(target, "#") {
				continue
			}
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  target,
				Kind:  model.KindReference,
				Range: lineRange(lineNum+1, len(line)),
			})
		}
	}
	return record, nil
}
