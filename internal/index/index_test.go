package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope-dev/codescope/internal/ignore"
	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/pkg/formats"
)

func newTestIndex() *SymbolIndex {
	return NewSymbolIndex(formats.NewDefaultRegistry())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexFileAndLookups(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "service.py", `import os

class Service:
    def run(self):
        pass

def helper():
    pass
`)

	require.True(t, idx.IndexFile(path, nil))
	require.True(t, idx.IsIndexed(path))

	classes := idx.FindSymbol("Service", model.KindClass)
	require.Len(t, classes, 1)
	assert.Equal(t, model.NormalizePath(path), classes[0].FilePath)

	methods := idx.MethodsInClass("Service")
	require.Len(t, methods, 1)
	assert.Equal(t, "run", methods[0].Name)

	inFile := idx.SymbolsInFile(path)
	assert.Len(t, inFile, 3)

	deps := idx.Dependencies(path)
	require.Len(t, deps, 1)
	assert.Equal(t, "os", deps[0].Target)

	assert.Contains(t, idx.Dependents("os"), model.NormalizePath(path))
}

func TestIndexFileIdempotent(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "app.py", "def main():\n    pass\n")

	require.True(t, idx.IndexFile(path, nil))
	first := idx.FileRecord(path)
	require.NotNil(t, first)
	statsBefore := idx.Stats()

	require.True(t, idx.IndexFile(path, nil))
	second := idx.FileRecord(path)
	statsAfter := idx.Stats()

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, len(first.Symbols), len(second.Symbols))
	assert.Equal(t, statsBefore.TotalFiles, statsAfter.TotalFiles)
	assert.Equal(t, statsBefore.TotalSymbols, statsAfter.TotalSymbols)
}

func TestReindexReplacesStaleSymbols(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.py", "def old_name():\n    pass\n")

	require.True(t, idx.IndexFile(path, nil))
	before := idx.FileRecord(path)

	writeFile(t, dir, "mod.py", "def new_name():\n    pass\n")
	require.True(t, idx.IndexFile(path, nil))

	assert.NotEqual(t, before.ContentHash, idx.FileRecord(path).ContentHash)
	assert.Empty(t, idx.FindSymbol("old_name", ""), "stale symbol must not linger")
	assert.Len(t, idx.FindSymbol("new_name", ""), 1)
	assert.Empty(t, idx.FindByPrefix("old", 10))
}

func TestIndexFileUnsupportedFormat(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "binary.dat", "\x00\x01")

	assert.False(t, idx.IndexFile(path, nil))
	assert.False(t, idx.IsIndexed(path))
}

func TestIndexFileParseFailureDegrades(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.py", "def broken(:\n")

	assert.False(t, idx.IndexFile(path, nil))

	record := idx.FileRecord(path)
	require.NotNil(t, record, "degraded record must still be tracked")
	assert.True(t, record.Failed())
	assert.Empty(t, record.Symbols)
	assert.NotEmpty(t, record.ContentHash)
}

func TestRemoveFileIsComplete(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "models.py", `import db

class User:
    def save(self):
        pass
`)
	require.True(t, idx.IndexFile(path, nil))

	idx.RemoveFile(path)
	normalized := model.NormalizePath(path)

	assert.False(t, idx.IsIndexed(path))
	assert.Empty(t, idx.FindSymbol("User", ""))
	assert.Empty(t, idx.SymbolsInFile(path))
	assert.Empty(t, idx.MethodsInClass("User"))
	assert.Empty(t, idx.FindByPrefix("Us", 10))
	assert.Empty(t, idx.Dependencies(path))
	assert.NotContains(t, idx.Dependents("db"), normalized)
	for _, kind := range []model.SymbolKind{model.KindClass, model.KindMethod} {
		for _, sym := range idx.SymbolsByKind(kind) {
			assert.NotEqual(t, normalized, sym.FilePath)
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.py", "X = 1\n")

	assert.True(t, idx.NeedsUpdate(path), "unindexed file needs update")

	require.True(t, idx.IndexFile(path, nil))
	assert.False(t, idx.NeedsUpdate(path))

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	assert.True(t, idx.NeedsUpdate(path), "newer mtime needs update")

	require.NoError(t, os.Remove(path))
	assert.True(t, idx.NeedsUpdate(path), "deleted file needs update")
}

func TestFindByPrefixBounded(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "handlers.py", `def handle_get():
    pass

def handle_post():
    pass

def handle_delete():
    pass
`)
	require.True(t, idx.IndexFile(path, nil))

	all := idx.FindByPrefix("handle_", 10)
	assert.Len(t, all, 3)

	bounded := idx.FindByPrefix("handle_", 2)
	assert.Len(t, bounded, 2)

	// Prefixes longer than the indexed width still filter correctly.
	long := idx.FindByPrefix("handle_delet", 10)
	require.Len(t, long, 1)
	assert.Equal(t, "handle_delete", long[0].Name)

	assert.Empty(t, idx.FindByPrefix("nomatch", 10))
}

func TestIndexDirectoryWalksAndExcludes(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def main():\n    pass\n")
	writeFile(t, dir, "conf/settings.yaml", "debug: true\n")
	writeFile(t, dir, "node_modules/lib/index.js", "export const x = 1\n")
	writeFile(t, dir, "notes.txt", "not parseable")

	count, err := idx.IndexDirectory(context.Background(), dir, ignore.NewMatcher(nil), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.True(t, idx.IsIndexed(filepath.Join(dir, "app.py")))
	assert.True(t, idx.IsIndexed(filepath.Join(dir, "conf", "settings.yaml")))
	assert.False(t, idx.IsIndexed(filepath.Join(dir, "node_modules", "lib", "index.js")))

	stats := idx.Stats()
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.FilesByFormat[model.FormatPython])
}

func TestIndexDirectoryToleratesBadFiles(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	writeFile(t, dir, "good.py", "def ok():\n    pass\n")
	writeFile(t, dir, "bad.py", "def broken(:\n")

	count, err := idx.IndexDirectory(context.Background(), dir, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "degraded files do not count as indexed")
	assert.True(t, idx.IsIndexed(filepath.Join(dir, "good.py")))
	assert.True(t, idx.FileRecord(filepath.Join(dir, "bad.py")).Failed())
}

func TestClear(t *testing.T) {
	idx := newTestIndex()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "A = 1\n")
	require.True(t, idx.IndexFile(path, nil))

	idx.Clear()
	assert.Zero(t, idx.Stats().TotalFiles)
	assert.Empty(t, idx.Files())
	assert.Empty(t, idx.FindSymbol("A", ""))
}
