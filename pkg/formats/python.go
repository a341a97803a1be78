package formats

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/codescope-dev/codescope/internal/model"
)

// PythonParser is the primary-language strategy: real syntax-tree
// traversal via tree-sitter.
type PythonParser struct {
	lang *sitter.Language
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	return &PythonParser{lang: python.GetLanguage()}
}

func (p *PythonParser) Format() model.Format {
	return model.FormatPython
}

// Parse builds a fresh tree-sitter parser per call. A tree-sitter parser
// is single-threaded in C, so sharing one across the indexing workers
// would corrupt its state.
func (p *PythonParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.lang)
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
		Format:       model.FormatPython,
		Symbols:      make([]model.Symbol, 0),
		Dependencies: make([]model.Dependency, 0),
		RawImports:   make([]string, 0),
	}
	p.extract(root, content, record, "")
	return record, nil
}

// extract walks the tree carrying the enclosing class name: a function is
// a method only when lexically nested under a class.
func (p *PythonParser) extract(node *sitter.Node, content []byte, record *model.FileRecord, className string) {
	switch node.Type() {
	case "function_definition":
		if sym := p.extractFunction(node, content, className); sym != nil {
			record.Symbols = append(record.Symbols, *sym)
		}
		// Nested defs are scoped locals, not indexable symbols.
		return

	case "class_definition":
		sym, deps := p.extractClass(node, content)
		if sym != nil {
			record.Symbols = append(record.Symbols, *sym)
			record.Dependencies = append(record.Dependencies, deps...)
			if body := node.ChildByFieldName("body"); body != nil {
				for i := 0; i < int(body.ChildCount()); i++ {
					p.extract(body.Child(i), content, record, sym.Name)
				}
			}
		}
		return

	case "import_statement":
		p.extractImport(node, content, record)

	case "import_from_statement":
		p.extractFromImport(node, content, record)

	case "expression_statement":
		if className == "" {
			record.Symbols = append(record.Symbols, p.extractAssignments(node, content)...)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.extract(node.Child(i), content, record, className)
	}
}

func (p *PythonParser) extractFunction(node *sitter.Node, content []byte, className string) *model.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(content)

	kind := model.KindFunction
	if className != "" {
		kind = model.KindMethod
	}

	modifiers := visibility(name)
	if first := node.Child(0); first != nil && first.Type() == "async" {
		if modifiers == nil {
			modifiers = make(map[string]bool)
		}
		modifiers["async"] = true
	}

	returnType := ""
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		returnType = strings.TrimSpace(rt.Content(content))
	}

	return &model.Symbol{
		Name:       name,
		Kind:       kind,
		Range:      nodeRange(node),
		Parent:     className,
		Modifiers:  modifiers,
		Parameters: p.extractParameters(node.ChildByFieldName("parameters"), content),
		ReturnType: returnType,
		Docstring:  p.extractDocstring(node.ChildByFieldName("body"), content),
	}
}

func (p *PythonParser) extractClass(node *sitter.Node, content []byte) (*model.Symbol, []model.Dependency) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil, nil
	}
	name := nameNode.Content(content)

	sym := &model.Symbol{
		Name:      name,
		Kind:      model.KindClass,
		Range:     nodeRange(node),
		Modifiers: visibility(name),
		Docstring: p.extractDocstring(node.ChildByFieldName("body"), content),
	}

	var deps []model.Dependency
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := strings.TrimSpace(supers.NamedChild(i).Content(content))
			if base == "" || base == "object" {
				continue
			}
			deps = append(deps, model.Dependency{
				Target:       base,
				SourceSymbol: name,
				TargetSymbol: base,
				Kind:         model.DepInheritance,
			})
		}
	}
	return sym, deps
}

func (p *PythonParser) extractParameters(params *sitter.Node, content []byte) []string {
	if params == nil {
		return nil
	}
	out := make([]string, 0, params.NamedChildCount())
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		name := ""
		switch child.Type() {
		case "identifier":
			name = child.Content(content)
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			if id := firstIdentifier(child); id != nil {
				name = id.Content(content)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			name = strings.TrimSpace(child.Content(content))
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func firstIdentifier(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			return child
		}
	}
	return nil
}

func (p *PythonParser) extractDocstring(body *sitter.Node, content []byte) string {
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	firstStmt := body.Child(0)
	if firstStmt.Type() != "expression_statement" || firstStmt.ChildCount() == 0 {
		return ""
	}
	if expr := firstStmt.Child(0); expr.Type() == "string" {
		return firstDocLine(expr.Content(content))
	}
	return ""
}

// extractImport records `import a.b, c as d`: one dependency per imported
// module and one raw import per module name.
func (p *PythonParser) extractImport(node *sitter.Node, content []byte, record *model.FileRecord) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			module := strings.TrimSpace(child.Content(content))
			if module != "" {
				record.RawImports = append(record.RawImports, module)
				record.Dependencies = append(record.Dependencies, model.Dependency{
					Target: module,
					Kind:   model.DepImport,
				})
			}
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			module := strings.TrimSpace(nameNode.Content(content))
			if module != "" {
				record.RawImports = append(record.RawImports, module)
				record.Dependencies = append(record.Dependencies, model.Dependency{
					Target: module,
					Kind:   model.DepImport,
				})
			}
		}
	}
}

// extractFromImport records `from X import a, b as c` as exactly one
// dependency targeting X. The imported names are kept on TargetSymbol and
// surface individually in the raw import list as X.a, X.b.
func (p *PythonParser) extractFromImport(node *sitter.Node, content []byte, record *model.FileRecord) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	module := strings.TrimSpace(moduleNode.Content(content))
	if module == "" {
		return
	}

	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "name" {
			continue
		}
		child := node.Child(i)
		switch child.Type() {
		case "aliased_import":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				names = append(names, strings.TrimSpace(nameNode.Content(content)))
			}
		case "dotted_name", "identifier":
			names = append(names, strings.TrimSpace(child.Content(content)))
		}
	}

	for _, n := range names {
		if n != "" {
			record.RawImports = append(record.RawImports, module+"."+n)
		}
	}
	if len(names) == 0 {
		// from X import *
		record.RawImports = append(record.RawImports, module)
	}

	record.Dependencies = append(record.Dependencies, model.Dependency{
		Target:       module,
		TargetSymbol: strings.Join(names, ", "),
		Kind:         model.DepImportFrom,
	})
}

// extractAssignments indexes module-level `NAME = value` statements.
// All-caps targets are constants, the rest variables.
func (p *PythonParser) extractAssignments(stmt *sitter.Node, content []byte) []model.Symbol {
	var out []model.Symbol
	for i := 0; i < int(stmt.ChildCount()); i++ {
		assign := stmt.Child(i)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		name := left.Content(content)
		kind := model.KindVariable
		modifiers := visibility(name)
		if isUpperName(name) {
			kind = model.KindConstant
			if modifiers == nil {
				modifiers = make(map[string]bool)
			}
			modifiers["const"] = true
		}
		returnType := ""
		if t := assign.ChildByFieldName("type"); t != nil {
			returnType = strings.TrimSpace(t.Content(content))
		}
		out = append(out, model.Symbol{
			Name:       name,
			Kind:       kind,
			Range:      nodeRange(assign),
			Modifiers:  modifiers,
			ReturnType: returnType,
		})
	}
	return out
}
