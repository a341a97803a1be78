// Package parser dispatches files to format-specific parsing strategies.
// A strategy turns (path, content) into a model.FileRecord; the registry
// resolves the strategy from the detected format and contains per-file
// failures so one bad file never aborts an indexing pass.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/codescope-dev/codescope/internal/model"
)

// FormatParser is the strategy contract each format must implement.
// Parse must be a pure function of (path, content): no filesystem or
// network access beyond the arguments it is handed.
type FormatParser interface {
	// Format returns the format this strategy handles.
	Format() model.Format

	// Parse extracts symbols, dependencies and raw imports from content.
	Parse(path string, content []byte) (*model.FileRecord, error)
}

// Registry maps detected formats to parsing strategies. Adding a language
// is registering a new strategy; existing strategies are never modified.
type Registry struct {
	parsers map[model.Format]FormatParser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[model.Format]FormatParser)}
}

// Register adds a strategy, replacing any prior strategy for its format.
func (r *Registry) Register(p FormatParser) {
	r.parsers[p.Format()] = p
}

// CanParse reports whether a strategy exists for the file's format.
func (r *Registry) CanParse(path string) bool {
	_, ok := r.parsers[model.DetectFormat(path)]
	return ok
}

// ParserFor returns the strategy for a file, resolving the format by exact
// filename first and extension second.
func (r *Registry) ParserFor(path string) (FormatParser, bool) {
	p, ok := r.parsers[model.DetectFormat(path)]
	return p, ok
}

// SupportedFormats returns every registered format, sorted.
func (r *Registry) SupportedFormats() []model.Format {
	formats := make([]model.Format, 0, len(r.parsers))
	for f := range r.parsers {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// ParseFile parses a single file. content may be pre-read; when nil the
// file is read from disk. Unsupported formats return (nil, nil) so callers
// can skip them. A strategy failure degrades to a record with empty symbol
// and dependency lists and a ParseError marker rather than an error: parse
// failures are a queryable state on the record, not a fault.
func (r *Registry) ParseFile(path string, content []byte) (*model.FileRecord, error) {
	strategy, ok := r.ParserFor(path)
	if !ok {
		return nil, nil
	}

	if content == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		content = data
	}

	normalized := model.NormalizePath(path)
	record, err := strategy.Parse(path, content)
	if err != nil || record == nil {
		msg := "parser returned no record"
		if err != nil {
			msg = err.Error()
		}
		slog.Debug("parse degraded to empty record",
			slog.String("file", normalized),
			slog.String("error", msg))
		record = &model.FileRecord{
			Format:     strategy.Format(),
			ParseError: msg,
		}
	}

	record.FilePath = normalized
	if record.Format == model.FormatUnknown {
		record.Format = strategy.Format()
	}
	record.LastModified = model.FileMtime(path)
	record.ContentHash = HashContent(content)
	record.RawImports = normalizeStrings(record.RawImports)
	record.Dependencies = normalizeDependencies(normalized, record.Dependencies)
	for i := range record.Symbols {
		record.Symbols[i].FilePath = normalized
	}
	return record, nil
}

// HashContent returns the hex-encoded xxhash64 of content. The same bytes
// always hash identically, so the hash changes iff the file bytes changed.
func HashContent(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// normalizeDependencies stamps the source file on every dependency and
// drops exact duplicates, keeping first-seen order.
func normalizeDependencies(source string, deps []model.Dependency) []model.Dependency {
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(deps))
	out := make([]model.Dependency, 0, len(deps))
	for _, d := range deps {
		d.SourceFile = source
		d.Target = strings.TrimSpace(d.Target)
		if d.Target == "" {
			continue
		}
		key := d.Target + "|" + d.Kind + "|" + d.SourceSymbol + "|" + d.TargetSymbol
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
