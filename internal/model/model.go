// Package model holds the shared vocabulary of the engine: symbols,
// dependencies, file records and the closed sets of symbol kinds and
// source formats. It carries invariants, not behavior.
package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SymbolKind classifies an indexed symbol.
type SymbolKind string

const (
	// Programming constructs
	KindClass     SymbolKind = "class"
	KindMethod    SymbolKind = "method"
	KindFunction  SymbolKind = "function"
	KindVariable  SymbolKind = "variable"
	KindProperty  SymbolKind = "property"
	KindConstant  SymbolKind = "constant"
	KindModule    SymbolKind = "module"
	KindInterface SymbolKind = "interface"

	// Infrastructure
	KindContainerImage   SymbolKind = "container_image"
	KindContainerService SymbolKind = "container_service"
	KindK8sResource      SymbolKind = "k8s_resource"

	// Configuration and data
	KindConfigSection SymbolKind = "config_section"
	KindConfigKey     SymbolKind = "config_key"
	KindEnvVariable   SymbolKind = "env_variable"

	// Database
	KindDatabaseTable SymbolKind = "database_table"
	KindSQLView       SymbolKind = "sql_view"

	// Web
	KindCSSClass SymbolKind = "css_class"
	KindCSSID    SymbolKind = "css_id"

	// Build and package
	KindBuildTarget       SymbolKind = "build_target"
	KindBuildTask         SymbolKind = "build_task"
	KindPackageDependency SymbolKind = "package_dependency"
	KindNpmScript         SymbolKind = "npm_script"

	// Documentation
	KindDocSection SymbolKind = "doc_section"

	// Generic
	KindReference SymbolKind = "reference"
)

// Format identifies a supported file format.
type Format string

const (
	FormatPython     Format = "python"
	FormatJavaScript Format = "javascript"
	FormatTypeScript Format = "typescript"
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatTOML       Format = "toml"
	FormatXML        Format = "xml"
	FormatINI        Format = "ini"
	FormatEnv        Format = "env"
	FormatProperties Format = "properties"
	FormatSQL        Format = "sql"
	FormatCSS        Format = "css"
	FormatHTML       Format = "html"
	FormatMarkdown   Format = "markdown"
	FormatDockerfile Format = "dockerfile"
	FormatCompose    Format = "compose"
	FormatMakefile   Format = "makefile"
	FormatNpm        Format = "npm"
	FormatUnknown    Format = ""
)

// Dependency kinds. The set is open: parsers may add namespaced kinds of
// their own without touching this list.
const (
	DepImport            = "import"
	DepImportFrom        = "import_from"
	DepInheritance       = "inheritance"
	DepForeignKey        = "foreign_key"
	DepBaseImage         = "base_image"
	DepCSSImport         = "css_import"
	DepMakeInclude       = "make_include"
	DepMakePrerequisite  = "make_prerequisite"
	DepYAMLReference     = "yaml_reference"
	DepJSONReference     = "json_reference"
	DepPackageDependency = "package_dependency"
)

// Position is a location in a source file, 1-based line.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range spans a region in a source file.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Symbol is a named code entity with a source location. Identity is not
// globally unique: uniqueness is scoped to (FilePath, Name, Kind, Range).
// Parent names the enclosing symbol and may be unresolved.
type Symbol struct {
	Name       string          `json:"name"`
	Kind       SymbolKind      `json:"kind"`
	FilePath   string          `json:"file_path"`
	Range      Range           `json:"range"`
	Parent     string          `json:"parent,omitempty"`
	Modifiers  map[string]bool `json:"modifiers,omitempty"`
	Parameters []string        `json:"parameters,omitempty"`
	ReturnType string          `json:"return_type,omitempty"`
	Docstring  string          `json:"docstring,omitempty"`
	References map[string]bool `json:"references,omitempty"`
}

// Dependency is a directed "source file needs target" relationship.
// Target may name an indexed file or an unresolved module.
type Dependency struct {
	SourceFile   string `json:"source_file"`
	Target       string `json:"target"`
	SourceSymbol string `json:"source_symbol,omitempty"`
	TargetSymbol string `json:"target_symbol,omitempty"`
	Kind         string `json:"kind"`
}

// FileRecord is the complete parse result for one file. Records are owned
// by the symbol index: they are replaced on re-index, never mutated in
// place, and removed when the file disappears.
type FileRecord struct {
	FilePath     string       `json:"file_path"`
	Format       Format       `json:"format"`
	LastModified time.Time    `json:"last_modified"`
	Symbols      []Symbol     `json:"symbols"`
	Dependencies []Dependency `json:"dependencies"`
	RawImports   []string     `json:"raw_imports"`
	ContentHash  string       `json:"content_hash"`
	ParseError   string       `json:"parse_error,omitempty"`
}

// Failed reports whether the record degraded due to a parse failure.
func (r *FileRecord) Failed() bool {
	return r.ParseError != ""
}

// IndexStats summarizes the current index contents.
type IndexStats struct {
	TotalFiles        int                `json:"total_files"`
	TotalSymbols      int                `json:"total_symbols"`
	TotalDependencies int                `json:"total_dependencies"`
	SymbolsByKind     map[SymbolKind]int `json:"symbols_by_kind"`
	FilesByFormat     map[Format]int     `json:"files_by_format"`
	LastUpdate        time.Time          `json:"last_update"`
}

// filenameFormats resolves formats that are recognized by exact filename
// before any extension lookup.
var filenameFormats = map[string]Format{
	"dockerfile":          FormatDockerfile,
	"docker-compose.yml":  FormatCompose,
	"docker-compose.yaml": FormatCompose,
	"compose.yml":         FormatCompose,
	"compose.yaml":        FormatCompose,
	"makefile":            FormatMakefile,
	"gnumakefile":         FormatMakefile,
	"package.json":        FormatNpm,
	"requirements.txt":    FormatPython,
	"pyproject.toml":      FormatTOML,
	"cargo.toml":          FormatTOML,
	".env":                FormatEnv,
}

var extensionFormats = map[string]Format{
	".py":         FormatPython,
	".pyw":        FormatPython,
	".js":         FormatJavaScript,
	".jsx":        FormatJavaScript,
	".mjs":        FormatJavaScript,
	".ts":         FormatTypeScript,
	".tsx":        FormatTypeScript,
	".json":       FormatJSON,
	".yaml":       FormatYAML,
	".yml":        FormatYAML,
	".toml":       FormatTOML,
	".xml":        FormatXML,
	".ini":        FormatINI,
	".cfg":        FormatINI,
	".env":        FormatEnv,
	".properties": FormatProperties,
	".sql":        FormatSQL,
	".css":        FormatCSS,
	".scss":       FormatCSS,
	".less":       FormatCSS,
	".html":       FormatHTML,
	".htm":        FormatHTML,
	".md":         FormatMarkdown,
	".mk":         FormatMakefile,
}

// DetectFormat resolves a file's format by exact filename first, then by
// extension. Unresolved formats return FormatUnknown; callers reject them
// rather than guessing.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	if f, ok := filenameFormats[name]; ok {
		return f
	}
	if f, ok := extensionFormats[filepath.Ext(name)]; ok {
		return f
	}
	return FormatUnknown
}

// NormalizePath converts a path to its absolute, slash-separated form so
// the same file always indexes under one key.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.ToSlash(abs)
}

// FileMtime returns the file's modification time, or the zero time when
// the file cannot be inspected (e.g. parsing from in-memory content).
func FileMtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
