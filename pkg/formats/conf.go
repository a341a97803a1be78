package formats

import (
	"strings"

	"github.com/codescope-dev/codescope/internal/model"
)

// INIParser extracts [section] headers and key=value pairs.
type INIParser struct{}

func NewINIParser() *INIParser { return &INIParser{} }

func (p *INIParser) Format() model.Format { return model.FormatINI }

func (p *INIParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatINI}
	section := ""

	for lineNum, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section != "" {
				record.Symbols = append(record.Symbols, model.Symbol{
					Name:  section,
					Kind:  model.KindConfigSection,
					Range: lineRange(lineNum+1, len(line)),
				})
			}
			continue
		}
		if key := keyBeforeSeparator(line); key != "" {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:   key,
				Kind:   model.KindConfigKey,
				Range:  lineRange(lineNum+1, len(line)),
				Parent: section,
			})
		}
	}
	return record, nil
}

// EnvParser extracts KEY=VALUE declarations from dotenv files.
type EnvParser struct{}

func NewEnvParser() *EnvParser { return &EnvParser{} }

func (p *EnvParser) Format() model.Format { return model.FormatEnv }

func (p *EnvParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatEnv}
	for lineNum, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if key := keyBeforeSeparator(line); key != "" {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  key,
				Kind:  model.KindEnvVariable,
				Range: lineRange(lineNum+1, len(line)),
			})
		}
	}
	return record, nil
}

// PropertiesParser extracts Java-style key=value properties.
type PropertiesParser struct{}

func NewPropertiesParser() *PropertiesParser { return &PropertiesParser{} }

func (p *PropertiesParser) Format() model.Format { return model.FormatProperties }

func (p *PropertiesParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatProperties}
	for lineNum, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key := keyBeforeSeparator(line)
		if key == "" {
			if idx := strings.IndexByte(line, ':'); idx > 0 {
				key = strings.TrimSpace(line[:idx])
			}
		}
		if key != "" {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  key,
				Kind:  model.KindConfigKey,
				Range: lineRange(lineNum+1, len(line)),
			})
		}
	}
	return record, nil
}

func splitLines(content []byte) []string {
	return strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
}

func keyBeforeSeparator(line string) string {
	idx := strings.IndexByte(line, '=')
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(line[:idx])
}
