// Package tracker maintains dependency graphs derived from indexed file
// records and answers reachability questions over them: transitive
// closures, change impact, cycles, topological order and refactor
// sequencing. Graphs are rebuilt from scratch on every update; derived
// results are cached against a generation counter and recomputed lazily
// once the graphs move on.
package tracker

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/codescope-dev/codescope/internal/model"
)

// transitiveDepthLimit bounds the BFS used for impact analysis.
const transitiveDepthLimit = 5

// Risk levels reported by impact analysis.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Graph is a directed graph with reverse edges maintained alongside the
// forward ones.
type Graph struct {
	nodes   map[string]bool
	edges   map[string]map[string]bool
	reverse map[string]map[string]bool
}

func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		edges:   make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

func (g *Graph) AddNode(node string) {
	g.nodes[node] = true
}

func (g *Graph) AddEdge(from, to string) {
	g.nodes[from] = true
	g.nodes[to] = true
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]bool)
	}
	g.edges[from][to] = true
	if g.reverse[to] == nil {
		g.reverse[to] = make(map[string]bool)
	}
	g.reverse[to][from] = true
}

// Neighbors returns the edge targets of node, sorted.
func (g *Graph) Neighbors(node string) []string {
	return sortedKeys(g.edges[node])
}

// ReverseNeighbors returns the edge sources pointing at node, sorted.
func (g *Graph) ReverseNeighbors(node string) []string {
	return sortedKeys(g.reverse[node])
}

// Nodes returns every node, sorted.
func (g *Graph) Nodes() []string {
	return sortedKeys(g.nodes)
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int {
	n := 0
	for _, targets := range g.edges {
		n += len(targets)
	}
	return n
}

// ImpactAnalysis is the result of asking "what breaks if these files
// change". Directly affected files are the immediate dependents of the
// changed set; transitively affected files are reached by following
// reverse edges outward from those, depth-limited.
type ImpactAnalysis struct {
	ChangedFiles         []string            `json:"changed_files"`
	DirectlyAffected     []string            `json:"directly_affected"`
	TransitivelyAffected []string            `json:"transitively_affected"`
	TotalAffected        []string            `json:"total_affected"`
	DependencyChains     map[string][]string `json:"dependency_chains"`
	RiskLevel            string              `json:"risk_level"`
}

// Metrics summarizes the shape of the file dependency graph.
type Metrics struct {
	TotalFiles          int     `json:"total_files"`
	TotalDependencies   int     `json:"total_dependencies"`
	AverageDependencies float64 `json:"average_dependencies_per_file"`
	MaxDependencies     int     `json:"max_dependencies"`
	MaxDependents       int     `json:"max_dependents"`
	CircularDependency  int     `json:"circular_dependencies"`
	DependencyDepth     int     `json:"dependency_depth"`
}

// DependencyTracker holds the file, symbol and import graphs and the
// generation-stamped caches over them.
type DependencyTracker struct {
	mu sync.RWMutex

	fileGraph   *Graph
	symbolGraph *Graph
	importGraph *Graph

	generation uint64

	cycles    [][]string
	cyclesGen uint64
	topo      []string
	topoOK    bool
	topoGen   uint64
}

func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		fileGraph:   NewGraph(),
		symbolGraph: NewGraph(),
		importGraph: NewGraph(),
		cyclesGen:   ^uint64(0),
		topoGen:     ^uint64(0),
	}
}

// Rebuild replaces all three graphs from the given records. Dependency
// targets that resolve to an indexed file become file-graph edges;
// unresolved targets are dropped here (the knowledge layer keeps them as
// external nodes). Symbol edges link symbols to their lexical parents;
// import edges keep raw import names unresolved.
func (t *DependencyTracker) Rebuild(records []*model.FileRecord) {
	files := make(map[string]*model.FileRecord, len(records))
	for _, record := range records {
		files[record.FilePath] = record
	}

	fileGraph := NewGraph()
	symbolGraph := NewGraph()
	importGraph := NewGraph()

	for path, record := range files {
		fileGraph.AddNode(path)
		for _, dep := range record.Dependencies {
			if target := ResolveImport(dep.Target, files); target != "" {
				fileGraph.AddEdge(path, target)
			}
		}
	}
	for path, record := range files {
		for _, sym := range record.Symbols {
			key := symbolKey(path, sym.Name)
			symbolGraph.AddNode(key)
			if sym.Parent != "" {
				symbolGraph.AddEdge(key, symbolKey(path, sym.Parent))
			}
		}
	}
	for path, record := range files {
		importGraph.AddNode(path)
		for _, name := range record.RawImports {
			importGraph.AddEdge(path, name)
		}
	}

	t.mu.Lock()
	t.fileGraph = fileGraph
	t.symbolGraph = symbolGraph
	t.importGraph = importGraph
	t.generation++
	t.mu.Unlock()

	slog.Info("dependency graphs rebuilt",
		slog.Int("files", fileGraph.NodeCount()),
		slog.Int("symbols", symbolGraph.NodeCount()),
		slog.Int("edges", fileGraph.EdgeCount()))
}

// Generation returns the current rebuild counter.
func (t *DependencyTracker) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

// FileDependencies returns the files path directly depends on.
func (t *DependencyTracker) FileDependencies(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fileGraph.Neighbors(model.NormalizePath(path))
}

// FileDependents returns the files that directly depend on path.
func (t *DependencyTracker) FileDependents(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fileGraph.ReverseNeighbors(model.NormalizePath(path))
}

// SymbolDependencies returns the parent links for a symbol in a file.
func (t *DependencyTracker) SymbolDependencies(path, name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.symbolGraph.Neighbors(symbolKey(model.NormalizePath(path), name))
}

// ImportersOf returns the files whose raw imports include name.
func (t *DependencyTracker) ImportersOf(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.importGraph.ReverseNeighbors(name)
}

// TransitiveDependencies returns dependencies of path grouped by BFS
// depth, 1-based, up to maxDepth levels.
func (t *DependencyTracker) TransitiveDependencies(path string, maxDepth int) map[int][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return bfsByDepth(t.fileGraph.edges, model.NormalizePath(path), maxDepth)
}

// TransitiveDependents returns dependents of path grouped by BFS depth.
func (t *DependencyTracker) TransitiveDependents(path string, maxDepth int) map[int][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return bfsByDepth(t.fileGraph.reverse, model.NormalizePath(path), maxDepth)
}

// AnalyzeImpact computes the blast radius of changing the given files.
func (t *DependencyTracker) AnalyzeImpact(changedFiles []string) *ImpactAnalysis {
	t.mu.RLock()
	defer t.mu.RUnlock()

	changed := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changed[model.NormalizePath(f)] = true
	}

	direct := make(map[string]bool)
	chains := make(map[string][]string)
	for _, path := range sortedKeys(changed) {
		for dependent := range t.fileGraph.reverse[path] {
			direct[dependent] = true
			chains[dependent] = []string{path, dependent}
		}
	}

	transitive := make(map[string]bool)
	for _, path := range sortedKeys(direct) {
		byDepth := bfsByDepth(t.fileGraph.reverse, path, transitiveDepthLimit)
		depths := make([]int, 0, len(byDepth))
		for depth := range byDepth {
			depths = append(depths, depth)
		}
		sort.Ints(depths)
		for _, depth := range depths {
			for _, dependent := range byDepth[depth] {
				transitive[dependent] = true
				if _, seen := chains[dependent]; !seen {
					base := chains[path]
					if base == nil {
						base = []string{path}
					}
					chain := make([]string, 0, len(base)+1)
					chain = append(chain, base...)
					chains[dependent] = append(chain, dependent)
				}
			}
		}
	}

	total := make(map[string]bool, len(changed)+len(direct)+len(transitive))
	for f := range changed {
		total[f] = true
	}
	for f := range direct {
		total[f] = true
	}
	for f := range transitive {
		total[f] = true
	}

	return &ImpactAnalysis{
		ChangedFiles:         sortedKeys(changed),
		DirectlyAffected:     sortedKeys(direct),
		TransitivelyAffected: sortedKeys(transitive),
		TotalAffected:        sortedKeys(total),
		DependencyChains:     chains,
		RiskLevel:            riskLevel(len(total)),
	}
}

func riskLevel(affected int) string {
	switch {
	case affected > 10:
		return RiskHigh
	case affected > 5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// FindCircularDependencies returns the cycles in the file graph. Each
// cycle lists its members in discovery order with the entry node repeated
// at the end. Results are cached per graph generation.
func (t *DependencyTracker) FindCircularDependencies() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cyclesLocked()
}

func (t *DependencyTracker) cyclesLocked() [][]string {
	if t.cyclesGen == t.generation {
		return t.cycles
	}

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, neighbor := range sortedKeys(t.fileGraph.edges[node]) {
			if !visited[neighbor] {
				if dfs(neighbor) {
					return true
				}
			} else if onStack[neighbor] {
				start := 0
				for i, p := range path {
					if p == neighbor {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, neighbor)
				cycles = append(cycles, cycle)
				return true
			}
		}

		delete(onStack, node)
		path = path[:len(path)-1]
		return false
	}

	for _, node := range t.fileGraph.Nodes() {
		if !visited[node] {
			path = path[:0]
			for k := range onStack {
				delete(onStack, k)
			}
			dfs(node)
		}
	}

	t.cycles = cycles
	t.cyclesGen = t.generation
	return cycles
}

// TopologicalOrder returns a dependency-respecting order of all files via
// Kahn's algorithm, or ok=false when the graph has cycles. Cached per
// graph generation.
func (t *DependencyTracker) TopologicalOrder() ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.topoGen == t.generation {
		return t.topo, t.topoOK
	}

	if len(t.cyclesLocked()) > 0 {
		t.topo, t.topoOK = nil, false
		t.topoGen = t.generation
		return nil, false
	}

	order := kahn(t.fileGraph.Nodes(), t.fileGraph.edges)
	if len(order) != t.fileGraph.NodeCount() {
		t.topo, t.topoOK = nil, false
	} else {
		t.topo, t.topoOK = order, true
	}
	t.topoGen = t.generation
	return t.topo, t.topoOK
}

// SuggestRefactorOrder orders the given files so dependencies come after
// their dependents within the set, using Kahn's algorithm on the induced
// subgraph. Files stranded in cycles are appended in lexicographic order.
func (t *DependencyTracker) SuggestRefactorOrder(files []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := make(map[string]bool, len(files))
	for _, f := range files {
		members[model.NormalizePath(f)] = true
	}

	induced := make(map[string]map[string]bool, len(members))
	for member := range members {
		targets := make(map[string]bool)
		for dep := range t.fileGraph.edges[member] {
			if members[dep] {
				targets[dep] = true
			}
		}
		induced[member] = targets
	}

	order := kahn(sortedKeys(members), induced)

	placed := make(map[string]bool, len(order))
	for _, f := range order {
		placed[f] = true
	}
	var remaining []string
	for member := range members {
		if !placed[member] {
			remaining = append(remaining, member)
		}
	}
	sort.Strings(remaining)
	return append(order, remaining...)
}

// DependencyMetrics reports aggregate measurements over the file graph.
func (t *DependencyTracker) DependencyMetrics() Metrics {
	t.mu.Lock()
	cycles := len(t.cyclesLocked())
	graph := t.fileGraph
	t.mu.Unlock()

	m := Metrics{
		TotalFiles:         graph.NodeCount(),
		TotalDependencies:  graph.EdgeCount(),
		CircularDependency: cycles,
	}
	if m.TotalFiles > 0 {
		m.AverageDependencies = float64(m.TotalDependencies) / float64(m.TotalFiles)
	}
	for node := range graph.nodes {
		if n := len(graph.edges[node]); n > m.MaxDependencies {
			m.MaxDependencies = n
		}
		if n := len(graph.reverse[node]); n > m.MaxDependents {
			m.MaxDependents = n
		}
	}
	if cycles == 0 {
		m.DependencyDepth = maxDepth(graph)
	}
	return m
}

// FileGraph returns a snapshot copy of the file dependency graph edges.
func (t *DependencyTracker) FileGraph() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]string, len(t.fileGraph.nodes))
	for node := range t.fileGraph.nodes {
		out[node] = sortedKeys(t.fileGraph.edges[node])
	}
	return out
}

// ResolveImport maps a dependency target to an indexed file. Best effort:
// exact path, then the target with a source extension appended, then the
// first file whose basename starts with the target. Unresolvable targets
// return "".
func ResolveImport(target string, files map[string]*model.FileRecord) string {
	if _, ok := files[target]; ok {
		return target
	}
	for _, ext := range []string{".py", ".js", ".ts"} {
		if _, ok := files[target+ext]; ok {
			return target + ext
		}
	}
	var paths []string
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if strings.HasPrefix(filepath.Base(path), target) {
			return path
		}
	}
	return ""
}

func symbolKey(path, name string) string {
	return path + "::" + name
}

// bfsByDepth walks edges outward from start, grouping discovered nodes by
// the depth at which they first appear. Depth keys start at 1; start
// itself is not included.
func bfsByDepth(edges map[string]map[string]bool, start string, maxDepth int) map[int][]string {
	if maxDepth <= 0 {
		return map[int][]string{}
	}

	type item struct {
		node  string
		depth int
	}
	result := make(map[int]map[string]bool)
	visited := make(map[string]bool)
	queue := []item{{start, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current.node] || current.depth >= maxDepth {
			continue
		}
		visited[current.node] = true

		for next := range edges[current.node] {
			if result[current.depth+1] == nil {
				result[current.depth+1] = make(map[string]bool)
			}
			result[current.depth+1][next] = true
			if !visited[next] {
				queue = append(queue, item{next, current.depth + 1})
			}
		}
	}

	out := make(map[int][]string, len(result))
	for depth, nodes := range result {
		out[depth] = sortedKeys(nodes)
	}
	return out
}

// kahn runs Kahn's algorithm over nodes restricted to the given edges,
// consuming zero in-degree nodes in lexicographic order so the result is
// deterministic.
func kahn(nodes []string, edges map[string]map[string]bool) []string {
	inDegree := make(map[string]int, len(nodes))
	for _, node := range nodes {
		inDegree[node] = 0
	}
	for _, node := range nodes {
		for neighbor := range edges[node] {
			if _, ok := inDegree[neighbor]; ok {
				inDegree[neighbor]++
			}
		}
	}

	var queue []string
	for _, node := range nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		ready := make([]string, 0, len(edges[node]))
		for neighbor := range edges[node] {
			if _, ok := inDegree[neighbor]; !ok {
				continue
			}
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}
	return order
}

func maxDepth(g *Graph) int {
	depth := 0
	for node := range g.nodes {
		if d := nodeDepth(g, node, make(map[string]bool)); d > depth {
			depth = d
		}
	}
	return depth
}

func nodeDepth(g *Graph, node string, seen map[string]bool) int {
	if seen[node] {
		return 0
	}
	seen[node] = true
	defer delete(seen, node)

	if len(g.edges[node]) == 0 {
		return 0
	}
	best := 0
	for dep := range g.edges[node] {
		if d := nodeDepth(g, dep, seen); d > best {
			best = d
		}
	}
	return best + 1
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
