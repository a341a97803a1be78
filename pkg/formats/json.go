package formats

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/codescope-dev/codescope/internal/model"
)

// referenceKeys are JSON keys whose string values point at other files or
// schemas and therefore become dependencies.
var referenceKeys = map[string]bool{
	"$ref":    true,
	"extends": true,
	"import":  true,
	"include": true,
}

// JSONParser extracts configuration keys and cross-file references from
// JSON documents.
type JSONParser struct{}

func NewJSONParser() *JSONParser { return &JSONParser{} }

func (p *JSONParser) Format() model.Format { return model.FormatJSON }

func (p *JSONParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	record := &model.FileRecord{Format: model.FormatJSON}
	walkJSON(data, nil, record, jsonSymbolKind)
	return record, nil
}

// jsonSymbolKind classifies a JSON key by shape: objects are sections,
// leaves are keys.
func jsonSymbolKind(key string, value any) model.SymbolKind {
	if _, ok := value.(map[string]any); ok {
		return model.KindConfigSection
	}
	return model.KindConfigKey
}

func walkJSON(data any, path []string, record *model.FileRecord, kindOf func(string, any) model.SymbolKind) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := v[key]
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:   key,
				Kind:   kindOf(key, value),
				Range:  wholeFile(),
				Parent: joinParent(path),
			})
			if s, ok := value.(string); ok && referenceKeys[key] && s != "" {
				record.Dependencies = append(record.Dependencies, model.Dependency{
					Target: s,
					Kind:   model.DepJSONReference,
				})
			}
			switch value.(type) {
			case map[string]any, []any:
				walkJSON(value, append(path, key), record, kindOf)
			}
		}
	case []any:
		for i, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				walkJSON(item, append(path, strconv.Itoa(i)), record, kindOf)
			}
		}
	}
}

// PackageJSONParser specializes JSON parsing for npm manifests: declared
// packages become package_dependency symbols and edges, scripts become
// npm_script symbols.
type PackageJSONParser struct{}

func NewPackageJSONParser() *PackageJSONParser { return &PackageJSONParser{} }

func (p *PackageJSONParser) Format() model.Format { return model.FormatNpm }

func (p *PackageJSONParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	var manifest map[string]any
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, err
	}

	record := &model.FileRecord{Format: model.FormatNpm}
	for _, section := range []string{"dependencies", "devDependencies", "peerDependencies"} {
		deps, ok := manifest[section].(map[string]any)
		if !ok {
			continue
		}
		for _, name := range sortedKeys(deps) {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:   name,
				Kind:   model.KindPackageDependency,
				Range:  wholeFile(),
				Parent: section,
			})
			record.Dependencies = append(record.Dependencies, model.Dependency{
				Target: name,
				Kind:   model.DepPackageDependency,
			})
		}
	}
	if scripts, ok := manifest["scripts"].(map[string]any); ok {
		for _, name := range sortedKeys(scripts) {
			doc, _ := scripts[name].(string)
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:      name,
				Kind:      model.KindNpmScript,
				Range:     wholeFile(),
				Parent:    "scripts",
				Docstring: doc,
			})
		}
	}
	return record, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
