package formats

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codescope-dev/codescope/internal/model"
)

// JavaScriptParser extracts symbols and imports from JS/JSX sources.
// The TypeScript variant shares the walker; the grammars produce the
// same node types for everything extracted here.
type JavaScriptParser struct {
	lang   *sitter.Language
	format model.Format
}

func NewJavaScriptParser() *JavaScriptParser {
	return &JavaScriptParser{lang: javascript.GetLanguage(), format: model.FormatJavaScript}
}

func NewTypeScriptParser() *JavaScriptParser {
	return &JavaScriptParser{lang: typescript.GetLanguage(), format: model.FormatTypeScript}
}

func (j *JavaScriptParser) Format() model.Format {
	return j.format
}

// Parse builds a fresh tree-sitter parser per call; a parser instance
// must not be used from more than one goroutine.
func (j *JavaScriptParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(j.lang)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("syntax error in %s", path)
	}

	record := &model.FileRecord{
		Format:       j.format,
		Symbols:      make([]model.Symbol, 0),
		Dependencies: make([]model.Dependency, 0),
		RawImports:   make([]string, 0),
	}
	j.extract(root, content, record, "")
	return record, nil
}

func (j *JavaScriptParser) extract(node *sitter.Node, content []byte, record *model.FileRecord, className string) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		if name := fieldText(node, "name", content); name != "" {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:       name,
				Kind:       model.KindFunction,
				Range:      nodeRange(node),
				Parameters: j.extractParams(node.ChildByFieldName("parameters"), content),
			})
		}
		return

	case "method_definition":
		if name := fieldText(node, "name", content); name != "" {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:       name,
				Kind:       model.KindMethod,
				Range:      nodeRange(node),
				Parent:     className,
				Parameters: j.extractParams(node.ChildByFieldName("parameters"), content),
			})
		}
		return

	case "class_declaration":
		name := fieldText(node, "name", content)
		if name == "" {
			return
		}
		record.Symbols = append(record.Symbols, model.Symbol{
			Name:  name,
			Kind:  model.KindClass,
			Range: nodeRange(node),
		})
		if heritage := childOfType(node, "class_heritage"); heritage != nil {
			base := strings.TrimSpace(strings.TrimPrefix(heritage.Content(content), "extends"))
			if base != "" {
				record.Dependencies = append(record.Dependencies, model.Dependency{
					Target:       base,
					SourceSymbol: name,
					TargetSymbol: base,
					Kind:         model.DepInheritance,
				})
			}
		}
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.ChildCount()); i++ {
				j.extract(body.Child(i), content, record, name)
			}
		}
		return

	case "interface_declaration":
		if name := fieldText(node, "name", content); name != "" {
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  name,
				Kind:  model.KindInterface,
				Range: nodeRange(node),
			})
		}
		return

	case "lexical_declaration", "variable_declaration":
		if className == "" {
			record.Symbols = append(record.Symbols, j.extractDeclarations(node, content)...)
		}

	case "import_statement":
		if source := childOfType(node, "string"); source != nil {
			module := strings.Trim(source.Content(content), `"'`)
			if module != "" {
				record.RawImports = append(record.RawImports, module)
				record.Dependencies = append(record.Dependencies, model.Dependency{
					Target: module,
					Kind:   model.DepImport,
				})
			}
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		j.extract(node.Child(i), content, record, className)
	}
}

func (j *JavaScriptParser) extractDeclarations(node *sitter.Node, content []byte) []model.Symbol {
	var out []model.Symbol
	isConst := strings.HasPrefix(node.Content(content), "const")
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := fieldText(decl, "name", content)
		if name == "" {
			continue
		}
		kind := model.KindVariable
		if isConst && isUpperName(name) {
			kind = model.KindConstant
		}
		// Arrow/function expressions assigned to names index as functions.
		if value := decl.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function_expression", "function":
				kind = model.KindFunction
			}
		}
		out = append(out, model.Symbol{
			Name:  name,
			Kind:  kind,
			Range: nodeRange(decl),
		})
	}
	return out
}

func (j *JavaScriptParser) extractParams(params *sitter.Node, content []byte) []string {
	if params == nil {
		return nil
	}
	out := make([]string, 0, params.NamedChildCount())
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := strings.TrimSpace(params.NamedChild(i).Content(content))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fieldText(node *sitter.Node, field string, content []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Content(content))
}

func childOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == typ {
			return child
		}
	}
	return nil
}
