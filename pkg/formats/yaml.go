package formats

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codescope-dev/codescope/internal/model"
)

// YAMLParser walks the yaml.v3 node tree, which preserves line numbers,
// anchors and alias references that a plain unmarshal would erase.
type YAMLParser struct {
	format model.Format
}

func NewYAMLParser() *YAMLParser { return &YAMLParser{format: model.FormatYAML} }

// NewComposeParser handles docker-compose manifests; same walk, but
// top-level services/networks/volumes classify as container services.
func NewComposeParser() *YAMLParser { return &YAMLParser{format: model.FormatCompose} }

func (p *YAMLParser) Format() model.Format { return p.format }

func (p *YAMLParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: p.format}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	docIndex := 0
	for {
		var doc yaml.Node
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		root := &doc
		if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
			root = root.Content[0]
		}
		parent := ""
		if docIndex > 0 {
			parent = "doc_" + strconv.Itoa(docIndex)
		}
		p.walk(root, parent, record)
		docIndex++
	}
	return record, nil
}

func (p *YAMLParser) walk(node *yaml.Node, parent string, record *model.FileRecord) {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			name := key.Value
			if name == "" {
				continue
			}
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:   name,
				Kind:   p.symbolKind(name, value, parent),
				Range:  lineRange(key.Line, len(name)),
				Parent: parent,
			})
			childParent := name
			if parent != "" {
				childParent = parent + "." + name
			}
			p.walk(value, childParent, record)
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			p.walk(item, parent+"["+strconv.Itoa(i)+"]", record)
		}
	case yaml.AliasNode:
		record.Dependencies = append(record.Dependencies, model.Dependency{
			Target:       node.Value,
			SourceSymbol: parent,
			Kind:         model.DepYAMLReference,
		})
	}
}

func (p *YAMLParser) symbolKind(key string, value *yaml.Node, parent string) model.SymbolKind {
	lower := strings.ToLower(key)
	if lower == "kind" && value.Kind == yaml.ScalarNode {
		return model.KindK8sResource
	}
	if p.format == model.FormatCompose && parent == "" {
		switch lower {
		case "services", "networks", "volumes":
			return model.KindContainerService
		}
	}
	if value.Kind == yaml.MappingNode {
		return model.KindConfigSection
	}
	return model.KindConfigKey
}
