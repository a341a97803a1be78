package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "app.py", `import lib

class AppController:
    def handle(self):
        pass

def helpers():
    pass
`)
	writeFile(t, dir, "lib.py", `def helper():
    pass

class UserModel:
    pass
`)
	return dir
}

func newAnalyzer(t *testing.T, cfg config.Config, roots ...string) *Analyzer {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background(), roots...))
	t.Cleanup(a.Shutdown)
	return a
}

func TestInitializeAndQueries(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	stats := a.Stats()
	assert.Equal(t, 2, stats.TotalFiles)

	classes := a.FindSymbol("AppController", model.KindClass, "")
	require.Len(t, classes, 1)

	methods := a.MethodsInClass("AppController")
	require.Len(t, methods, 1)
	assert.Equal(t, "handle", methods[0].Name)

	appPath := model.NormalizePath(filepath.Join(dir, "app.py"))
	libPath := model.NormalizePath(filepath.Join(dir, "lib.py"))

	deps := a.FileDependencies(appPath)
	assert.Equal(t, []string{libPath}, deps)
	assert.Equal(t, []string{appPath}, a.FileDependents(libPath))
}

func TestInitializeTwiceFails(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})
	assert.Error(t, a.Initialize(context.Background(), dir))
}

func TestInitializeNoUsableRoots(t *testing.T) {
	a, err := New(config.Config{Watch: false})
	require.NoError(t, err)
	err = a.Initialize(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestFindSymbolPrefersFileContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "def shared():\n    pass\n")
	writeFile(t, dir, "b.py", "def shared():\n    pass\n")
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	bPath := filepath.Join(dir, "b.py")
	symbols := a.FindSymbol("shared", "", bPath)
	require.Len(t, symbols, 2)
	assert.Equal(t, model.NormalizePath(bPath), symbols[0].FilePath)
}

func TestAutocomplete(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	appPath := filepath.Join(dir, "app.py")
	completions := a.Autocomplete("help", appPath, 10)
	require.Len(t, completions, 2)

	// helpers lives in the context file, so the same-file bonus wins
	assert.Equal(t, "helpers", completions[0].Symbol.Name)
	assert.Equal(t, "helper", completions[1].Symbol.Name)
	assert.Greater(t, completions[0].Score, completions[1].Score)
	assert.Contains(t, completions[1].Context, "(function)")

	assert.Empty(t, a.Autocomplete("zzz", "", 10))
}

func TestSearchSymbols(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	hits := a.SearchSymbols("controller")
	require.Len(t, hits, 1)
	assert.Equal(t, "AppController", hits[0].Name)

	onlyClasses := a.SearchSymbols("e", model.KindClass)
	for _, sym := range onlyClasses {
		assert.Equal(t, model.KindClass, sym.Kind)
	}
	require.NotEmpty(t, onlyClasses)
}

func TestPlanRefactorWarnsOnCycles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.py", "import y\n")
	writeFile(t, dir, "y.py", "import x\n")
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	xPath := filepath.Join(dir, "x.py")
	plan := a.PlanRefactor([]string{xPath})
	require.NotNil(t, plan)
	assert.NotEmpty(t, plan.Order)
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "circular")
}

func TestProjectOverview(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	overview := a.ProjectOverview()
	assert.Equal(t, 2, overview.Stats.TotalFiles)
	assert.Equal(t, 2, overview.Metrics.TotalFiles)
	assert.Equal(t, 0, overview.CircularCount)
	assert.Len(t, overview.Roots, 1)
	assert.NotEmpty(t, overview.Patterns["controller"])
	assert.NotEmpty(t, overview.Patterns["model"])
}

func TestUpdateFileWithoutWatcher(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	libPath := writeFile(t, dir, "lib.py", `def helper():
    pass

def added():
    pass
`)
	require.True(t, a.UpdateFile(libPath, nil))

	names := make(map[string]bool)
	for _, sym := range a.SymbolsInFile(libPath) {
		names[sym.Name] = true
	}
	assert.True(t, names["added"])
	assert.NotNil(t, a.Knowledge().Node(model.NormalizePath(libPath)+"::added"))
}

func TestRefreshIndex(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	writeFile(t, dir, "extra.py", "def extra():\n    pass\n")
	require.NoError(t, a.RefreshIndex(context.Background()))
	assert.Equal(t, 3, a.Stats().TotalFiles)
}

func TestExports(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	dot, err := a.ExportDependencyGraph("dot")
	require.NoError(t, err)
	assert.Contains(t, dot, "digraph knowledge_graph {")
	assert.Contains(t, dot, `[label="depends_on"];`)

	cypher, err := a.ExportKnowledgeGraph("cypher")
	require.NoError(t, err)
	assert.Contains(t, cypher, "CREATE (:file ")

	out, err := a.ExportKnowledgeGraph("json")
	require.NoError(t, err)
	assert.Contains(t, out, `"nodes"`)

	_, err = a.ExportDependencyGraph("gexf")
	assert.Error(t, err)
}

func TestExportsToFile(t *testing.T) {
	dir := newProject(t)
	a := newAnalyzer(t, config.Config{Root: dir, Watch: false})

	out := filepath.Join(t.TempDir(), "deps.dot")
	require.NoError(t, a.ExportDependencyGraphToFile("dot", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph knowledge_graph {")

	before, err := os.Stat(out)
	require.NoError(t, err)
	require.NoError(t, a.ExportDependencyGraphToFile("dot", out))
	after, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, after.ModTime().Equal(before.ModTime()), "unchanged export rewrote the file")

	kg := filepath.Join(t.TempDir(), "knowledge.json")
	require.NoError(t, a.ExportKnowledgeGraphToFile("json", kg))
	data, err = os.ReadFile(kg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nodes"`)

	assert.Error(t, a.ExportKnowledgeGraphToFile("gexf", kg))
}

func TestShutdownWritesSnapshot(t *testing.T) {
	dir := newProject(t)
	snapshot := filepath.Join(t.TempDir(), "knowledge.json")
	a, err := New(config.Config{Root: dir, Watch: false, SnapshotPath: snapshot})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	a.Shutdown()

	info, err := os.Stat(snapshot)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWatchingPicksUpNewFiles(t *testing.T) {
	dir := newProject(t)
	cfg := config.Config{
		Root:           dir,
		Watch:          true,
		Watcher:        config.WatcherPoll,
		PollIntervalMs: 20,
		BatchTimeoutMs: 20,
	}
	a := newAnalyzer(t, cfg)
	assert.True(t, a.UpdaterStats().Watching)

	writeFile(t, dir, "late.py", "def late():\n    pass\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(a.FindSymbol("late", model.KindFunction, "")) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("new file was not picked up by the watcher")
}
