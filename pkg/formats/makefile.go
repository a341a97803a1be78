package formats

import (
	"strings"

	"github.com/codescope-dev/codescope/internal/model"
)

// MakefileParser extracts build targets, their prerequisites and included
// makefiles. Recipe lines (tab-indented) are skipped.
type MakefileParser struct{}

func NewMakefileParser() *MakefileParser { return &MakefileParser{} }

func (p *MakefileParser) Format() model.Format { return model.FormatMakefile }

func (p *MakefileParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatMakefile}

	for lineNum, line := range splitLines(content) {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "\t") {
			continue
		}

		if strings.HasPrefix(line, "include ") || strings.HasPrefix(line, "-include ") {
			fields := strings.Fields(line)
			if len(fields) > 1 {
				record.Dependencies = append(record.Dependencies, model.Dependency{
					Target: fields[1],
					Kind:   model.DepMakeInclude,
				})
				record.RawImports = append(record.RawImports, fields[1])
			}
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx <= 0 || strings.Contains(line[:idx], "=") {
			continue
		}
		// Assignments like VAR := value also contain a colon.
		if strings.HasPrefix(line[idx:], ":=") {
			continue
		}

		for _, target := range strings.Fields(line[:idx]) {
			if strings.HasPrefix(target, ".") {
				continue // special targets like .PHONY
			}
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  target,
				Kind:  model.KindBuildTarget,
				Range: lineRange(lineNum+1, len(line)),
			})
		}
		for _, prereq := range strings.Fields(line[idx+1:]) {
			record.Dependencies = append(record.Dependencies, model.Dependency{
				Target: prereq,
				Kind:   model.DepMakePrerequisite,
			})
		}
	}
	return record, nil
}
