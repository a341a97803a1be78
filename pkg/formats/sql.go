package formats

import (
	"regexp"

	"github.com/codescope-dev/codescope/internal/model"
)

var (
	sqlTablePattern = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w.]+)`)
	sqlViewPattern  = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?VIEW\s+([\w.]+)`)
	sqlRefPattern   = regexp.MustCompile(`(?i)REFERENCES\s+([\w.]+)`)
)

// SQLParser extracts table and view definitions plus foreign-key
// references from DDL scripts. Line-oriented, not a full SQL grammar.
type SQLParser struct{}

func NewSQLParser() *SQLParser { return &SQLParser{} }

func (p *SQLParser) Format() model.Format { return model.FormatSQL }

func (p *SQLParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatSQL}
	table := ""

	for lineNum, line := range splitLines(content) {
		if m := sqlTablePattern.FindStringSubmatch(line); m != nil {
			table = m[1]
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  m[1],
				Kind:  model.KindDatabaseTable,
				Range: lineRange(lineNum+1, len(line)),
			})
			continue
		}
		if m := sqlViewPattern.FindStringSubmatch(line); m != nil {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  m[1],
				Kind:  model.KindSQLView,
				Range: lineRange(lineNum+1, len(line)),
			})
			continue
		}
		if m := sqlRefPattern.FindStringSubmatch(line); m != nil {
			record.Dependencies = append(record.Dependencies, model.Dependency{
				Target:       m[1],
				SourceSymbol: table,
				TargetSymbol: m[1],
				Kind:         model.DepForeignKey,
			})
		}
	}
	return record, nil
}
