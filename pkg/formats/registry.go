package formats

import "github.com/codescope-dev/codescope/internal/parser"

// NewDefaultRegistry creates a registry with all supported format parsers
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()

	r.Register(NewPythonParser())
	r.Register(NewJavaScriptParser())
	r.Register(NewTypeScriptParser())
	r.Register(NewJSONParser())
	r.Register(NewPackageJSONParser())
	r.Register(NewYAMLParser())
	r.Register(NewComposeParser())
	r.Register(NewTOMLParser())
	r.Register(NewXMLParser())
	r.Register(NewHTMLParser())
	r.Register(NewINIParser())
	r.Register(NewEnvParser())
	r.Register(NewPropertiesParser())
	r.Register(NewSQLParser())
	r.Register(NewCSSParser())
	r.Register(NewDockerfileParser())
	r.Register(NewMakefileParser())
	r.Register(NewMarkdownParser())

	return r
}
