// Package index maintains the authoritative map of parsed files and the
// derived lookup structures built from it. Records are replaced wholesale
// on re-index; derived entries for a path are fully removed before the
// new record's entries are inserted, so the two can never disagree.
package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codescope-dev/codescope/internal/ignore"
	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/internal/parser"
)

// prefixIndexLimit caps how many leading bytes of a symbol name feed the
// completion index.
const prefixIndexLimit = 10

// SymbolIndex is the in-memory symbol store with multi-key lookups.
// All mutation happens under the write lock; parsing happens outside it.
type SymbolIndex struct {
	registry *parser.Registry

	mu           sync.RWMutex
	files        map[string]*model.FileRecord
	byName       map[string][]*model.Symbol
	byKind       map[model.SymbolKind][]*model.Symbol
	byFile       map[string][]*model.Symbol
	byParent     map[string][]*model.Symbol
	depsBySource map[string][]model.Dependency
	depsByTarget map[string][]model.Dependency
	reverseDeps  map[string]map[string]bool
	namePrefixes map[string]map[string]bool
}

func NewSymbolIndex(registry *parser.Registry) *SymbolIndex {
	idx := &SymbolIndex{registry: registry}
	idx.reset()
	return idx
}

func (idx *SymbolIndex) reset() {
	idx.files = make(map[string]*model.FileRecord)
	idx.byName = make(map[string][]*model.Symbol)
	idx.byKind = make(map[model.SymbolKind][]*model.Symbol)
	idx.byFile = make(map[string][]*model.Symbol)
	idx.byParent = make(map[string][]*model.Symbol)
	idx.depsBySource = make(map[string][]model.Dependency)
	idx.depsByTarget = make(map[string][]model.Dependency)
	idx.reverseDeps = make(map[string]map[string]bool)
	idx.namePrefixes = make(map[string]map[string]bool)
}

// IndexFile parses and indexes one file, replacing any prior record.
// content may be pre-read; nil means read from disk. Returns false for
// unsupported formats and for files whose parse degraded, in which case
// the degraded record is still stored so the file stays tracked.
func (idx *SymbolIndex) IndexFile(path string, content []byte) bool {
	record, err := idx.registry.ParseFile(path, content)
	if err != nil {
		slog.Error("indexing failed", slog.String("file", path), slog.String("error", err.Error()))
		return false
	}
	if record == nil {
		slog.Debug("skipping unsupported file", slog.String("file", path))
		return false
	}

	idx.mu.Lock()
	idx.apply(record)
	idx.mu.Unlock()

	if record.Failed() {
		return false
	}
	slog.Debug("indexed file",
		slog.String("file", record.FilePath),
		slog.Int("symbols", len(record.Symbols)))
	return true
}

// IndexDirectory walks root recursively and indexes every supported file,
// skipping paths the matcher excludes. Parsing fans out across workers;
// index mutation stays on the calling goroutine. Per-file failures are
// logged and skipped. Returns the number of files indexed.
func (idx *SymbolIndex) IndexDirectory(ctx context.Context, root string, matcher *ignore.Matcher, workers int) (int, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		slog.Error("directory not found", slog.String("root", root))
		return 0, err
	}
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var candidates []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("walk error", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel != "." && matcher.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.ShouldIgnore(rel, false) {
			return nil
		}
		if idx.registry.CanParse(path) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if walkErr != nil {
		return 0, walkErr
	}
	slog.Info("indexing directory",
		slog.String("root", root),
		slog.Int("files", len(candidates)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	records := make(chan *model.FileRecord, workers)

	go func() {
		for _, path := range candidates {
			p := path
			g.Go(func() error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				record, err := idx.registry.ParseFile(p, nil)
				if err != nil {
					slog.Warn("skipping unreadable file", slog.String("file", p), slog.String("error", err.Error()))
					return nil
				}
				if record != nil {
					records <- record
				}
				return nil
			})
		}
		g.Wait()
		close(records)
	}()

	indexed := 0
	for record := range records {
		idx.mu.Lock()
		idx.apply(record)
		idx.mu.Unlock()
		if !record.Failed() {
			indexed++
		}
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return indexed, err
	}
	return indexed, nil
}

// RemoveFile deletes the record and every derived entry for path.
func (idx *SymbolIndex) RemoveFile(path string) {
	normalized := model.NormalizePath(path)
	idx.mu.Lock()
	idx.removeLocked(normalized)
	idx.mu.Unlock()
}

// NeedsUpdate reports whether path must be (re-)indexed: unknown to the
// index, gone from disk, or modified since it was indexed.
func (idx *SymbolIndex) NeedsUpdate(path string) bool {
	normalized := model.NormalizePath(path)

	idx.mu.RLock()
	record, ok := idx.files[normalized]
	idx.mu.RUnlock()
	if !ok {
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.ModTime().After(record.LastModified)
}

// FindSymbol returns symbols with the exact name, optionally filtered by
// kind (empty kind matches all).
func (idx *SymbolIndex) FindSymbol(name string, kind model.SymbolKind) []model.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]model.Symbol, 0, len(idx.byName[name]))
	for _, sym := range idx.byName[name] {
		if kind == "" || sym.Kind == kind {
			out = append(out, *sym)
		}
	}
	return out
}

// FindByPrefix returns up to limit symbols whose names start with prefix,
// for completion. Results are grouped by name in sorted name order.
func (idx *SymbolIndex) FindByPrefix(prefix string, limit int) []model.Symbol {
	if prefix == "" || limit <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	key := prefix
	if len(key) > prefixIndexLimit {
		key = key[:prefixIndexLimit]
	}

	names := make([]string, 0, len(idx.namePrefixes[key]))
	for name := range idx.namePrefixes[key] {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]model.Symbol, 0, limit)
	for _, name := range names {
		for _, sym := range idx.byName[name] {
			out = append(out, *sym)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// SymbolsInFile returns every symbol defined in path.
func (idx *SymbolIndex) SymbolsInFile(path string) []model.Symbol {
	normalized := model.NormalizePath(path)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copySymbols(idx.byFile[normalized])
}

// SymbolsByKind returns every symbol of the given kind.
func (idx *SymbolIndex) SymbolsByKind(kind model.SymbolKind) []model.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copySymbols(idx.byKind[kind])
}

// MethodsInClass returns the methods whose parent is className.
func (idx *SymbolIndex) MethodsInClass(className string) []model.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []model.Symbol
	for _, sym := range idx.byParent[className] {
		if sym.Kind == model.KindMethod {
			out = append(out, *sym)
		}
	}
	return out
}

// FindReferences returns the symbols in files recorded as referencing
// name. When definitionFile is non-empty only definitions in that file
// are considered.
func (idx *SymbolIndex) FindReferences(name, definitionFile string) []model.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []model.Symbol
	for _, sym := range idx.byName[name] {
		if definitionFile != "" && sym.FilePath != model.NormalizePath(definitionFile) {
			continue
		}
		for refFile := range sym.References {
			out = append(out, copySymbols(idx.byFile[refFile])...)
		}
	}
	return out
}

// Dependencies returns the outgoing dependencies recorded for path.
func (idx *SymbolIndex) Dependencies(path string) []model.Dependency {
	normalized := model.NormalizePath(path)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]model.Dependency(nil), idx.depsBySource[normalized]...)
}

// Dependents returns the set of files whose dependencies target path.
func (idx *SymbolIndex) Dependents(path string) []string {
	normalized := model.NormalizePath(path)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.reverseDeps[normalized]))
	for source := range idx.reverseDeps[normalized] {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

// FileRecord returns the stored record for path, or nil when unindexed.
func (idx *SymbolIndex) FileRecord(path string) *model.FileRecord {
	normalized := model.NormalizePath(path)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.files[normalized]
}

// IsIndexed reports whether path currently has a record.
func (idx *SymbolIndex) IsIndexed(path string) bool {
	normalized := model.NormalizePath(path)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.files[normalized]
	return ok
}

// Files returns the indexed paths, sorted.
func (idx *SymbolIndex) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.files))
	for path := range idx.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Records returns every stored record. The returned slice is a snapshot;
// the records themselves are shared and must not be mutated.
func (idx *SymbolIndex) Records() []*model.FileRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*model.FileRecord, 0, len(idx.files))
	for _, record := range idx.files {
		out = append(out, record)
	}
	return out
}

// Stats summarizes the current index contents.
func (idx *SymbolIndex) Stats() model.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := model.IndexStats{
		TotalFiles:    len(idx.files),
		SymbolsByKind: make(map[model.SymbolKind]int),
		FilesByFormat: make(map[model.Format]int),
		LastUpdate:    time.Now(),
	}
	for _, record := range idx.files {
		stats.TotalSymbols += len(record.Symbols)
		stats.TotalDependencies += len(record.Dependencies)
		stats.FilesByFormat[record.Format]++
		for _, sym := range record.Symbols {
			stats.SymbolsByKind[sym.Kind]++
		}
	}
	return stats
}

// Clear drops every record and derived entry.
func (idx *SymbolIndex) Clear() {
	idx.mu.Lock()
	idx.reset()
	idx.mu.Unlock()
	slog.Info("symbol index cleared")
}

// apply swaps in a new record: old derived entries out first, then the
// record, then its entries. Callers hold the write lock.
func (idx *SymbolIndex) apply(record *model.FileRecord) {
	idx.removeLocked(record.FilePath)
	idx.files[record.FilePath] = record

	for i := range record.Symbols {
		sym := &record.Symbols[i]
		idx.byName[sym.Name] = append(idx.byName[sym.Name], sym)
		idx.byKind[sym.Kind] = append(idx.byKind[sym.Kind], sym)
		idx.byFile[sym.FilePath] = append(idx.byFile[sym.FilePath], sym)
		if sym.Parent != "" {
			idx.byParent[sym.Parent] = append(idx.byParent[sym.Parent], sym)
		}
		idx.addPrefixes(sym.Name)
	}
	for _, dep := range record.Dependencies {
		idx.depsBySource[dep.SourceFile] = append(idx.depsBySource[dep.SourceFile], dep)
		idx.depsByTarget[dep.Target] = append(idx.depsByTarget[dep.Target], dep)
		if idx.reverseDeps[dep.Target] == nil {
			idx.reverseDeps[dep.Target] = make(map[string]bool)
		}
		idx.reverseDeps[dep.Target][dep.SourceFile] = true
	}
}

func (idx *SymbolIndex) removeLocked(path string) {
	record, ok := idx.files[path]
	if !ok {
		return
	}

	for i := range record.Symbols {
		sym := &record.Symbols[i]
		idx.byName[sym.Name] = dropByFile(idx.byName[sym.Name], path)
		if len(idx.byName[sym.Name]) == 0 {
			delete(idx.byName, sym.Name)
			idx.removePrefixes(sym.Name)
		}
		idx.byKind[sym.Kind] = dropByFile(idx.byKind[sym.Kind], path)
		if len(idx.byKind[sym.Kind]) == 0 {
			delete(idx.byKind, sym.Kind)
		}
		if sym.Parent != "" {
			idx.byParent[sym.Parent] = dropByFile(idx.byParent[sym.Parent], path)
			if len(idx.byParent[sym.Parent]) == 0 {
				delete(idx.byParent, sym.Parent)
			}
		}
	}
	delete(idx.byFile, path)

	for _, dep := range record.Dependencies {
		idx.depsBySource[dep.SourceFile] = dropDeps(idx.depsBySource[dep.SourceFile], path)
		if len(idx.depsBySource[dep.SourceFile]) == 0 {
			delete(idx.depsBySource, dep.SourceFile)
		}
		idx.depsByTarget[dep.Target] = dropDeps(idx.depsByTarget[dep.Target], path)
		if len(idx.depsByTarget[dep.Target]) == 0 {
			delete(idx.depsByTarget, dep.Target)
		}
		if sources := idx.reverseDeps[dep.Target]; sources != nil {
			delete(sources, path)
			if len(sources) == 0 {
				delete(idx.reverseDeps, dep.Target)
			}
		}
	}
	delete(idx.files, path)
}

func (idx *SymbolIndex) addPrefixes(name string) {
	end := len(name)
	if end > prefixIndexLimit {
		end = prefixIndexLimit
	}
	for i := 1; i <= end; i++ {
		prefix := name[:i]
		if idx.namePrefixes[prefix] == nil {
			idx.namePrefixes[prefix] = make(map[string]bool)
		}
		idx.namePrefixes[prefix][name] = true
	}
}

// removePrefixes is called once the last symbol with name is gone.
func (idx *SymbolIndex) removePrefixes(name string) {
	end := len(name)
	if end > prefixIndexLimit {
		end = prefixIndexLimit
	}
	for i := 1; i <= end; i++ {
		prefix := name[:i]
		delete(idx.namePrefixes[prefix], name)
		if len(idx.namePrefixes[prefix]) == 0 {
			delete(idx.namePrefixes, prefix)
		}
	}
}

func copySymbols(symbols []*model.Symbol) []model.Symbol {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]model.Symbol, len(symbols))
	for i, sym := range symbols {
		out[i] = *sym
	}
	return out
}

func dropByFile(symbols []*model.Symbol, path string) []*model.Symbol {
	out := symbols[:0]
	for _, sym := range symbols {
		if sym.FilePath != path {
			out = append(out, sym)
		}
	}
	return out
}

func dropDeps(deps []model.Dependency, source string) []model.Dependency {
	out := deps[:0]
	for _, dep := range deps {
		if dep.SourceFile != source {
			out = append(out, dep)
		}
	}
	return out
}
