// Package analyzer is the facade over the indexing core: it wires the
// parser registry, symbol index, dependency tracker, knowledge graph and
// incremental updater together and exposes the query surface external
// collaborators consume.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"

	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/fileutil"
	"github.com/codescope-dev/codescope/internal/ignore"
	"github.com/codescope-dev/codescope/internal/index"
	"github.com/codescope-dev/codescope/internal/knowledge"
	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/internal/parser"
	"github.com/codescope-dev/codescope/internal/tracker"
	"github.com/codescope-dev/codescope/internal/updater"
	"github.com/codescope-dev/codescope/internal/watch"
	"github.com/codescope-dev/codescope/pkg/formats"
)

// Completion is one autocomplete suggestion.
type Completion struct {
	Symbol  model.Symbol `json:"symbol"`
	Score   float64      `json:"score"`
	Context string       `json:"context"`
}

// RefactorPlan sequences a multi-file change.
type RefactorPlan struct {
	Files    []string                `json:"files_to_change"`
	Impact   *tracker.ImpactAnalysis `json:"impact_analysis"`
	Order    []string                `json:"suggested_order"`
	Warnings []string                `json:"warnings"`
}

// Overview summarizes the indexed project.
type Overview struct {
	Stats           model.IndexStats    `json:"statistics"`
	Metrics         tracker.Metrics     `json:"dependency_metrics"`
	CircularCount   int                 `json:"circular_dependencies"`
	CircularSamples [][]string          `json:"circular_dependency_details"`
	Patterns        map[string][]string `json:"architectural_patterns"`
	Roots           []string            `json:"indexed_roots"`
}

// blastRadiusWarning is the affected-file count above which PlanRefactor
// warns.
const blastRadiusWarning = 20

// Analyzer owns the component wiring. Construct with New, then
// Initialize before querying.
type Analyzer struct {
	cfg      config.Config
	registry *parser.Registry

	index     *index.SymbolIndex
	tracker   *tracker.DependencyTracker
	knowledge *knowledge.Graph
	updater   *updater.Updater
	matcher   *ignore.Matcher

	mu          sync.Mutex
	roots       []string
	initialized bool
}

// New builds an analyzer from cfg. The zero Config is usable; missing
// values fall back to defaults.
func New(cfg config.Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	registry := formats.NewDefaultRegistry()
	return &Analyzer{
		cfg:       cfg,
		registry:  registry,
		index:     index.NewSymbolIndex(registry),
		tracker:   tracker.NewDependencyTracker(),
		knowledge: knowledge.NewGraph(),
	}, nil
}

// Initialize indexes the given roots (cfg.Root when none are given),
// builds the dependency and knowledge graphs, and starts watching when
// configured to. Roots that do not exist are skipped with a warning;
// Initialize fails only when no root could be indexed at all.
func (a *Analyzer) Initialize(ctx context.Context, roots ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return fmt.Errorf("analyzer already initialized")
	}
	if len(roots) == 0 {
		roots = []string{a.cfg.Root}
	}

	a.matcher = ignore.NewMatcher(a.cfg.Exclude)

	indexed := 0
	total := 0
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			slog.Warn("skipping missing root", slog.String("root", root))
			continue
		}
		if a.cfg.RespectGitignore {
			if err := a.matcher.LoadGitignore(root); err != nil {
				slog.Warn("gitignore not loaded",
					slog.String("root", root), slog.String("error", err.Error()))
			}
		}
		count, err := a.index.IndexDirectory(ctx, root, a.matcher, a.cfg.Workers)
		if err != nil {
			return fmt.Errorf("index %s: %w", root, err)
		}
		total += count
		indexed++
		a.roots = append(a.roots, model.NormalizePath(root))
	}
	if indexed == 0 {
		return fmt.Errorf("no usable roots among %v", roots)
	}

	a.tracker.Rebuild(a.index.Records())
	a.knowledge.Build(a.index.Records())
	if a.cfg.SnapshotPath != "" {
		if err := a.knowledge.Save(a.cfg.SnapshotPath); err != nil {
			slog.Warn("snapshot not saved", slog.String("error", err.Error()))
		}
	}

	if a.cfg.Watch {
		if err := a.startWatchingLocked(ctx); err != nil {
			return err
		}
	}

	a.initialized = true
	slog.Info("analyzer initialized",
		slog.Int("roots", indexed),
		slog.Int("files", total))
	return nil
}

// startWatchingLocked builds one watch source per root and an updater
// over their merged stream.
func (a *Analyzer) startWatchingLocked(ctx context.Context) error {
	sources := make([]watch.Source, 0, len(a.roots))
	for _, root := range a.roots {
		switch a.cfg.Watcher {
		case config.WatcherNotify:
			source, err := watch.NewNotifySource(root, a.cfg.DebounceWindow(), a.matcher, a.registry)
			if err != nil {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			sources = append(sources, source)
		default:
			sources = append(sources, watch.NewPollingSource(root, a.cfg.PollInterval(), a.matcher, a.registry))
		}
	}

	a.updater = updater.New(a.index, a.tracker, watch.Merge(sources...), updater.Options{
		BatchSize:       a.cfg.BatchSize,
		BatchTimeout:    a.cfg.BatchTimeout(),
		RevalidateHops:  a.cfg.RevalidateHops,
		ShutdownTimeout: a.cfg.ShutdownTimeout(),
	})
	return a.updater.Start(ctx)
}

// Shutdown stops watching, persists the knowledge snapshot when
// configured, and clears the index.
func (a *Analyzer) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.updater != nil {
		a.updater.Stop()
		a.updater = nil
	}
	if a.cfg.SnapshotPath != "" {
		if err := a.knowledge.Save(a.cfg.SnapshotPath); err != nil {
			slog.Warn("snapshot not saved", slog.String("error", err.Error()))
		}
	}
	a.index.Clear()
	a.initialized = false
	slog.Info("analyzer shut down")
}

// FindSymbol returns definitions of name, optionally filtered by kind
// (empty kind matches all). With a file context, definitions from that
// file sort first.
func (a *Analyzer) FindSymbol(name string, kind model.SymbolKind, fileContext string) []model.Symbol {
	symbols := a.index.FindSymbol(name, kind)
	if fileContext == "" {
		return symbols
	}
	ctxPath := model.NormalizePath(fileContext)
	sort.SliceStable(symbols, func(i, j int) bool {
		return symbols[i].FilePath == ctxPath && symbols[j].FilePath != ctxPath
	})
	return symbols
}

// FindReferences returns files whose dependencies mention the named
// symbol.
func (a *Analyzer) FindReferences(name, definitionFile string) []model.Symbol {
	return a.index.FindReferences(name, definitionFile)
}

// SymbolsInFile returns every symbol defined in path.
func (a *Analyzer) SymbolsInFile(path string) []model.Symbol {
	return a.index.SymbolsInFile(path)
}

// MethodsInClass returns the members of the named class.
func (a *Analyzer) MethodsInClass(className string) []model.Symbol {
	return a.index.MethodsInClass(className)
}

// Autocomplete scores prefix-matched symbols and returns the best first.
func (a *Analyzer) Autocomplete(prefix, fileContext string, limit int) []Completion {
	if limit <= 0 {
		limit = 50
	}
	symbols := a.index.FindByPrefix(prefix, limit*2)

	completions := make([]Completion, 0, len(symbols))
	for _, sym := range symbols {
		completions = append(completions, Completion{
			Symbol:  sym,
			Score:   completionScore(sym, prefix, fileContext),
			Context: symbolContext(sym),
		})
	}
	sort.SliceStable(completions, func(i, j int) bool {
		return completions[i].Score > completions[j].Score
	})
	if len(completions) > limit {
		completions = completions[:limit]
	}
	return completions
}

// completionScore ranks a candidate: prefix hits and short names score
// higher, same-file symbols get a strong bonus, and symbol kinds carry
// base weights. A fuzzy similarity against the prefix breaks ties between
// otherwise equal candidates.
func completionScore(sym model.Symbol, prefix, fileContext string) float64 {
	score := 0.0
	if strings.HasPrefix(sym.Name, prefix) {
		score += 10.0
	}
	if len(sym.Name) < 20 {
		score += 5.0 - float64(len(sym.Name))/4.0
	}
	if fileContext != "" && sym.FilePath == model.NormalizePath(fileContext) {
		score += 15.0
	}
	switch sym.Kind {
	case model.KindClass, model.KindInterface:
		score += 9.0
	case model.KindFunction, model.KindMethod:
		score += 8.0
	case model.KindConstant:
		score += 6.0
	case model.KindVariable:
		score += 5.0
	default:
		score += 3.0
	}
	if similarity, err := edlib.StringsSimilarity(prefix, sym.Name, edlib.JaroWinkler); err == nil {
		score += float64(similarity)
	}
	return score
}

// symbolContext renders a short signature line for display.
func symbolContext(sym model.Symbol) string {
	var b strings.Builder
	if sym.Kind == model.KindMethod && sym.Parent != "" {
		b.WriteString(sym.Parent)
		b.WriteString(".")
	}
	b.WriteString(sym.Name)
	b.WriteString(" (")
	b.WriteString(string(sym.Kind))
	b.WriteString(")")
	if len(sym.Parameters) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(sym.Parameters, ", "))
		b.WriteString(")")
	}
	if sym.ReturnType != "" {
		b.WriteString(" -> ")
		b.WriteString(sym.ReturnType)
	}
	return b.String()
}

// SearchSymbols returns symbols whose names contain query, case
// insensitive, optionally filtered by kind.
func (a *Analyzer) SearchSymbols(query string, kinds ...model.SymbolKind) []model.Symbol {
	query = strings.ToLower(query)
	kindSet := make(map[model.SymbolKind]bool, len(kinds))
	for _, kind := range kinds {
		kindSet[kind] = true
	}

	var out []model.Symbol
	for _, path := range a.index.Files() {
		for _, sym := range a.index.SymbolsInFile(path) {
			if !strings.Contains(strings.ToLower(sym.Name), query) {
				continue
			}
			if len(kindSet) > 0 && !kindSet[sym.Kind] {
				continue
			}
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].FilePath < out[j].FilePath
	})
	return out
}

// FileDependencies returns the files path depends on.
func (a *Analyzer) FileDependencies(path string) []string {
	return a.tracker.FileDependencies(model.NormalizePath(path))
}

// FileDependents returns the files depending on path.
func (a *Analyzer) FileDependents(path string) []string {
	return a.tracker.FileDependents(model.NormalizePath(path))
}

// AnalyzeImpact reports the blast radius of changing files.
func (a *Analyzer) AnalyzeImpact(files []string) *tracker.ImpactAnalysis {
	return a.tracker.AnalyzeImpact(files)
}

// FindCircularDependencies returns import cycles between files.
func (a *Analyzer) FindCircularDependencies() [][]string {
	return a.tracker.FindCircularDependencies()
}

// DependencyMetrics summarizes the file dependency graph.
func (a *Analyzer) DependencyMetrics() tracker.Metrics {
	return a.tracker.DependencyMetrics()
}

// PlanRefactor orders a multi-file change and attaches warnings for
// cycles touching the set and for wide blast radii.
func (a *Analyzer) PlanRefactor(files []string) *RefactorPlan {
	normalized := make([]string, len(files))
	for i, f := range files {
		normalized[i] = model.NormalizePath(f)
	}

	impact := a.tracker.AnalyzeImpact(normalized)
	order := a.tracker.SuggestRefactorOrder(normalized)

	var warnings []string
	changing := make(map[string]bool, len(normalized))
	for _, f := range normalized {
		changing[f] = true
	}
	affectedCycles := 0
	for _, cycle := range a.tracker.FindCircularDependencies() {
		for _, member := range cycle {
			if changing[member] {
				affectedCycles++
				break
			}
		}
	}
	if affectedCycles > 0 {
		warnings = append(warnings, fmt.Sprintf("change set touches %d circular dependency chains", affectedCycles))
	}
	if len(impact.TotalAffected) > blastRadiusWarning {
		warnings = append(warnings, fmt.Sprintf("high impact change: %d files affected", len(impact.TotalAffected)))
	}

	return &RefactorPlan{
		Files:    normalized,
		Impact:   impact,
		Order:    order,
		Warnings: warnings,
	}
}

// ProjectOverview aggregates index statistics, graph metrics and detected
// patterns.
func (a *Analyzer) ProjectOverview() Overview {
	cycles := a.tracker.FindCircularDependencies()
	samples := cycles
	if len(samples) > 5 {
		samples = samples[:5]
	}
	a.mu.Lock()
	roots := append([]string(nil), a.roots...)
	a.mu.Unlock()

	return Overview{
		Stats:           a.index.Stats(),
		Metrics:         a.tracker.DependencyMetrics(),
		CircularCount:   len(cycles),
		CircularSamples: samples,
		Patterns:        a.knowledge.DetectPatterns(),
		Roots:           roots,
	}
}

// UpdateFile reindexes one file immediately, outside the batch pipeline
// when no updater is running. A nil content reads from disk.
func (a *Analyzer) UpdateFile(path string, content []byte) bool {
	a.mu.Lock()
	u := a.updater
	a.mu.Unlock()

	var ok bool
	if u != nil {
		ok = u.UpdateFile(path, content)
	} else {
		ok = a.index.IndexFile(path, content)
		a.tracker.Rebuild(a.index.Records())
	}
	a.knowledge.Build(a.index.Records())
	return ok
}

// RefreshIndex drops and rebuilds the whole index from the configured
// roots.
func (a *Analyzer) RefreshIndex(ctx context.Context) error {
	a.mu.Lock()
	roots := append([]string(nil), a.roots...)
	matcher := a.matcher
	a.mu.Unlock()

	slog.Info("refreshing index", slog.Int("roots", len(roots)))
	a.index.Clear()
	for _, root := range roots {
		if _, err := a.index.IndexDirectory(ctx, root, matcher, a.cfg.Workers); err != nil {
			return fmt.Errorf("reindex %s: %w", root, err)
		}
	}
	a.tracker.Rebuild(a.index.Records())
	a.knowledge.Build(a.index.Records())
	return nil
}

// Stats returns index statistics.
func (a *Analyzer) Stats() model.IndexStats {
	return a.index.Stats()
}

// UpdaterStats returns watcher/batch counters, zero when not watching.
func (a *Analyzer) UpdaterStats() updater.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.updater == nil {
		return updater.Stats{}
	}
	return a.updater.Stats()
}

// Knowledge exposes the knowledge graph for direct queries.
func (a *Analyzer) Knowledge() *knowledge.Graph {
	return a.knowledge
}

// ExportKnowledgeGraph serializes the knowledge graph as json, dot or
// cypher.
func (a *Analyzer) ExportKnowledgeGraph(format string) (string, error) {
	return a.knowledge.Export(format)
}

// ExportDependencyGraph serializes the file dependency graph in the same
// formats as the knowledge graph.
func (a *Analyzer) ExportDependencyGraph(format string) (string, error) {
	g := knowledge.NewGraph()
	fileGraph := a.tracker.FileGraph()

	nodes := make([]string, 0, len(fileGraph))
	for node := range fileGraph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		g.AddNode(knowledge.Node{ID: node, Type: knowledge.NodeFile, Name: baseName(node), FilePath: node})
	}
	for _, node := range nodes {
		for _, target := range fileGraph[node] {
			g.AddEdge(knowledge.Edge{Source: node, Target: target, Relationship: knowledge.RelDependsOn})
		}
	}
	return g.Export(format)
}

// ExportKnowledgeGraphToFile writes the serialized knowledge graph to
// path. The file is left untouched when the content is unchanged, so a
// re-export does not wake anything watching the output.
func (a *Analyzer) ExportKnowledgeGraphToFile(format, path string) error {
	out, err := a.knowledge.Export(format)
	if err != nil {
		return err
	}
	return fileutil.WriteIfChanged(path, []byte(out))
}

// ExportDependencyGraphToFile writes the serialized dependency graph to
// path, skipping the write when the content is unchanged.
func (a *Analyzer) ExportDependencyGraphToFile(format, path string) error {
	out, err := a.ExportDependencyGraph(format)
	if err != nil {
		return err
	}
	return fileutil.WriteIfChanged(path, []byte(out))
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
