package formats

import (
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/codescope-dev/codescope/internal/model"
)

// dependencyTables are TOML tables whose keys declare external packages
// (pyproject, Cargo and friends).
var dependencyTables = map[string]bool{
	"dependencies":       true,
	"dev-dependencies":   true,
	"build-dependencies": true,
}

// TOMLParser extracts sections, keys and declared package dependencies
// from TOML manifests.
type TOMLParser struct{}

func NewTOMLParser() *TOMLParser { return &TOMLParser{} }

func (p *TOMLParser) Format() model.Format { return model.FormatTOML }

func (p *TOMLParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	var data map[string]any
	if err := toml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	record := &model.FileRecord{Format: model.FormatTOML}
	p.walk(data, nil, record)
	return record, nil
}

func (p *TOMLParser) walk(data map[string]any, path []string, record *model.FileRecord) {
	for _, key := range sortedKeys(data) {
		value := data[key]
		table, isTable := value.(map[string]any)

		kind := model.KindConfigKey
		if isTable {
			kind = model.KindConfigSection
		}
		record.Symbols = append(record.Symbols, model.Symbol{
			Name:   key,
			Kind:   kind,
			Range:  wholeFile(),
			Parent: joinParent(path),
		})

		if isTable {
			if dependencyTables[strings.ToLower(key)] {
				for _, pkg := range sortedKeys(table) {
					record.Dependencies = append(record.Dependencies, model.Dependency{
						Target: pkg,
						Kind:   model.DepPackageDependency,
					})
				}
			}
			p.walk(table, append(path, key), record)
		}
	}
}
