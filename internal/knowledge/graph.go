// Package knowledge maintains a semantic graph layered on top of the
// symbol index: files, symbols and unresolved imports become nodes,
// dependencies become typed edges, and simple keyword heuristics tag
// nodes with architectural patterns and frameworks. The graph answers
// path, similarity, clustering and impact queries and serializes to
// JSON, DOT and Cypher.
package knowledge

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/codescope-dev/codescope/internal/model"
	"github.com/codescope-dev/codescope/internal/tracker"
)

// Node types.
const (
	NodeFile     = "file"
	NodeSymbol   = "symbol"
	NodeExternal = "external"
)

// Edge relationships.
const (
	RelDependsOn    = "depends_on"
	RelImplements   = "implements"
	RelExtends      = "extends"
	RelCalls        = "calls"
	RelContains     = "contains"
	RelSimilarTo    = "similar_to"
	RelPartOf       = "part_of"
	RelUsesPattern  = "uses_pattern"
	RelHasFramework = "has_framework"
	RelConfiguredBy = "configured_by"
)

// couplingThreshold is the outgoing-edge count above which a node is
// flagged as a refactoring candidate.
const couplingThreshold = 15

// impactDepthLimit bounds the BFS behind Impact.
const impactDepthLimit = 3

// Node is a vertex in the knowledge graph.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	FilePath   string            `json:"file_path,omitempty"`
	Line       int               `json:"line_number,omitempty"`
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	Relationship string            `json:"relationship"`
	Weight       float64           `json:"weight"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Match pairs a node with a similarity score.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ImpactReport describes the blast radius of changing one node.
type ImpactReport struct {
	Node               string   `json:"node"`
	DirectDependents   []string `json:"direct_dependents"`
	IndirectDependents []string `json:"indirect_dependents"`
	AffectedPatterns   []string `json:"affected_patterns"`
	RiskLevel          string   `json:"risk_level"`
}

// Suggestion is one refactoring opportunity surfaced by SuggestRefactors.
type Suggestion struct {
	Type     string     `json:"type"`
	Nodes    []string   `json:"nodes,omitempty"`
	Cycles   [][]string `json:"cycles,omitempty"`
	Detail   string     `json:"detail"`
	Advice   string     `json:"advice"`
	Priority string     `json:"priority"`
}

// frameworkIndicators maps a framework to name substrings that signal it.
var frameworkIndicators = map[string][]string{
	"fastapi": {"fastapi", "starlette", "pydantic"},
	"django":  {"django", "models.model", "views.view"},
	"flask":   {"flask", "app.route"},
	"react":   {"react", "usestate", "jsx"},
	"angular": {"angular", "ngmodule"},
	"spring":  {"springframework", "autowired"},
}

// patternIndicators maps an architectural pattern to name substrings.
var patternIndicators = map[string][]string{
	"controller": {"controller", "handler", "endpoint"},
	"service":    {"service", "business"},
	"repository": {"repository", "dao"},
	"model":      {"model", "entity", "dto"},
	"factory":    {"factory", "builder", "creator"},
	"singleton":  {"singleton", "instance"},
	"observer":   {"observer", "listener", "subscriber"},
}

// Graph is the knowledge graph. All methods are safe for concurrent use.
type Graph struct {
	mu          sync.RWMutex
	nodes       map[string]*Node
	edges       []Edge
	edgeSet     map[string]bool
	adjacency   map[string][]string
	reverse     map[string][]string
	nodesByType map[string][]string
	patterns    map[string]map[string]bool
	frameworks  map[string]map[string]bool
}

func NewGraph() *Graph {
	g := &Graph{}
	g.resetLocked()
	return g
}

func (g *Graph) resetLocked() {
	g.nodes = make(map[string]*Node)
	g.edges = nil
	g.edgeSet = make(map[string]bool)
	g.adjacency = make(map[string][]string)
	g.reverse = make(map[string][]string)
	g.nodesByType = make(map[string][]string)
	g.patterns = make(map[string]map[string]bool)
	g.frameworks = make(map[string]map[string]bool)
}

// AddNode inserts node, replacing any node with the same ID. Pattern and
// framework tags are derived from the node name on insert.
func (g *Graph) AddNode(node Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(node)
}

func (g *Graph) addNodeLocked(node Node) {
	if _, exists := g.nodes[node.ID]; !exists {
		g.nodesByType[node.Type] = append(g.nodesByType[node.Type], node.ID)
	}
	stored := node
	g.nodes[node.ID] = &stored
	g.classifyLocked(&stored)
}

// AddEdge inserts edge. Duplicate (source, target, relationship) triples
// are dropped.
func (g *Graph) AddEdge(edge Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(edge)
}

func (g *Graph) addEdgeLocked(edge Edge) {
	key := edge.Source + "\x00" + edge.Target + "\x00" + edge.Relationship
	if g.edgeSet[key] {
		return
	}
	g.edgeSet[key] = true
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	g.edges = append(g.edges, edge)
	g.adjacency[edge.Source] = append(g.adjacency[edge.Source], edge.Target)
	g.reverse[edge.Target] = append(g.reverse[edge.Target], edge.Source)
}

// classifyLocked tags a node with frameworks and patterns by substring
// matching its lowercased name against the indicator tables. Heuristic
// only, not a type analysis.
func (g *Graph) classifyLocked(node *Node) {
	name := strings.ToLower(node.Name)
	for framework, indicators := range frameworkIndicators {
		for _, indicator := range indicators {
			if strings.Contains(name, indicator) {
				if g.frameworks[framework] == nil {
					g.frameworks[framework] = make(map[string]bool)
				}
				g.frameworks[framework][node.ID] = true
				break
			}
		}
	}
	for pattern, indicators := range patternIndicators {
		for _, indicator := range indicators {
			if strings.Contains(name, indicator) {
				if g.patterns[pattern] == nil {
					g.patterns[pattern] = make(map[string]bool)
				}
				g.patterns[pattern][node.ID] = true
				break
			}
		}
	}
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	copied := *node
	return &copied
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, id := range sortedKeys(g.nodes) {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodesByType returns the IDs of all nodes of the given type, sorted.
func (g *Graph) NodesByType(nodeType string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := append([]string(nil), g.nodesByType[nodeType]...)
	sort.Strings(out)
	return out
}

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Frameworks returns the detected framework tags and their member nodes.
func (g *Graph) Frameworks() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]string, len(g.frameworks))
	for framework, members := range g.frameworks {
		out[framework] = sortedKeys(members)
	}
	return out
}

// FindPath returns the shortest directed path from source to target, or
// nil when no path exists within maxDepth edges. maxDepth <= 0 applies a
// default of 5.
func (g *Graph) FindPath(source, target string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[source]; !ok {
		return nil
	}
	if source == target {
		return []string{source}
	}

	visited := map[string]bool{source: true}
	type item struct {
		node string
		path []string
	}
	queue := []item{{source, []string{source}}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.path) > maxDepth {
			continue
		}
		for _, neighbor := range sortedCopy(g.adjacency[current.node]) {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			path := append(append([]string(nil), current.path...), neighbor)
			if neighbor == target {
				return path
			}
			queue = append(queue, item{neighbor, path})
		}
	}
	return nil
}

// FindSimilar scores every node of the same type against the given node
// and returns those at or above threshold, best first. The score is the
// average of name-token overlap and shared-attribute-key overlap.
func (g *Graph) FindSimilar(nodeID string, threshold float64) []Match {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	var matches []Match
	for _, candidateID := range g.nodesByType[node.Type] {
		if candidateID == nodeID {
			continue
		}
		score := similarity(node, g.nodes[candidateID])
		if score >= threshold {
			matches = append(matches, Match{ID: candidateID, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

// similarity averages name-token overlap and attribute-key overlap, both
// normalized by the larger operand. Nodes of different types score zero.
func similarity(a, b *Node) float64 {
	if a.Type != b.Type {
		return 0
	}

	aTokens := nameTokens(a.Name)
	bTokens := nameTokens(b.Name)
	nameSim := 0.0
	if len(aTokens) > 0 && len(bTokens) > 0 {
		common := 0
		for token := range aTokens {
			if bTokens[token] {
				common++
			}
		}
		nameSim = float64(common) / float64(max(len(aTokens), len(bTokens)))
	}

	attrSim := 0.0
	if len(a.Attributes) > 0 && len(b.Attributes) > 0 {
		common := 0
		for key := range a.Attributes {
			if _, ok := b.Attributes[key]; ok {
				common++
			}
		}
		attrSim = float64(common) / float64(max(len(a.Attributes), len(b.Attributes)))
	}

	return (nameSim + attrSim) / 2
}

// nameTokens splits a name into lowercased tokens on underscores, dots,
// dashes and whitespace.
func nameTokens(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '.' || r == '-' || r == ' ' || r == ':' || r == '/'
	}) {
		tokens[token] = true
	}
	return tokens
}

// DetectPatterns classifies nodes into architectural pattern buckets, plus
// an MVC bucket when both controller- and model-tagged symbols exist.
func (g *Graph) DetectPatterns() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string][]string)
	for pattern, members := range g.patterns {
		if len(members) > 0 {
			out[pattern] = sortedKeys(members)
		}
	}

	if len(g.patterns["controller"]) > 0 && len(g.patterns["model"]) > 0 {
		mvc := make(map[string]bool)
		for id := range g.patterns["controller"] {
			mvc[id] = true
		}
		for id := range g.patterns["model"] {
			mvc[id] = true
		}
		for _, id := range g.nodesByType[NodeFile] {
			path := strings.ToLower(g.nodes[id].FilePath)
			if strings.Contains(path, ".html") || strings.Contains(path, ".template") || strings.Contains(path, ".view") {
				mvc[id] = true
			}
		}
		out["mvc"] = sortedKeys(mvc)
	}
	return out
}

// FindClusters returns connected components of the undirected edge union,
// keeping only components with at least minSize nodes. Components are
// ordered by their smallest member.
func (g *Graph) FindClusters(minSize int) [][]string {
	if minSize <= 0 {
		minSize = 3
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var clusters [][]string
	visited := make(map[string]bool)
	for _, id := range sortedKeys(g.nodes) {
		if visited[id] {
			continue
		}
		cluster := g.collectComponentLocked(id, visited)
		if len(cluster) >= minSize {
			sort.Strings(cluster)
			clusters = append(clusters, cluster)
		}
	}
	return clusters
}

// collectComponentLocked walks forward and reverse edges from start,
// iteratively to stay safe on deep graphs.
func (g *Graph) collectComponentLocked(start string, visited map[string]bool) []string {
	var component []string
	stack := []string{start}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node] {
			continue
		}
		visited[node] = true
		component = append(component, node)
		stack = append(stack, g.adjacency[node]...)
		stack = append(stack, g.reverse[node]...)
	}
	return component
}

// Impact reports the dependents reachable from nodeID through reverse
// edges. Direct dependents are one hop away; indirect ones are found by
// BFS out to maxDepth hops (default 3). Risk follows the same thresholds
// as file-level impact analysis.
func (g *Graph) Impact(nodeID string, maxDepth int) *ImpactReport {
	if maxDepth <= 0 {
		maxDepth = impactDepthLimit
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil
	}

	report := &ImpactReport{
		Node:               nodeID,
		DirectDependents:   sortedCopy(g.reverse[nodeID]),
		IndirectDependents: []string{},
		RiskLevel:          tracker.RiskLow,
	}

	visited := map[string]bool{nodeID: true}
	for _, dep := range report.DirectDependents {
		visited[dep] = true
	}
	frontier := report.DirectDependents
	for depth := 2; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, dep := range sortedCopy(g.reverse[node]) {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				report.IndirectDependents = append(report.IndirectDependents, dep)
				next = append(next, dep)
			}
		}
		frontier = next
	}

	report.AffectedPatterns = g.affectedPatternsLocked(visited)

	total := len(report.DirectDependents) + len(report.IndirectDependents)
	switch {
	case total > 10:
		report.RiskLevel = tracker.RiskHigh
	case total > 5:
		report.RiskLevel = tracker.RiskMedium
	}
	return report
}

// affectedPatternsLocked names every pattern bucket with a member in the
// affected set.
func (g *Graph) affectedPatternsLocked(affected map[string]bool) []string {
	var out []string
	for pattern, members := range g.patterns {
		for id := range members {
			if affected[id] {
				out = append(out, pattern)
				break
			}
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// SuggestRefactors flags high-coupling nodes, orphaned nodes and circular
// dependency chains.
func (g *Graph) SuggestRefactors() []Suggestion {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var suggestions []Suggestion

	for _, id := range sortedKeys(g.nodes) {
		if fanOut := len(g.adjacency[id]); fanOut > couplingThreshold {
			suggestions = append(suggestions, Suggestion{
				Type:     "high_coupling",
				Nodes:    []string{id},
				Detail:   g.nodes[id].Name + " has " + strconv.Itoa(fanOut) + " outgoing dependencies",
				Advice:   "consider splitting into smaller components",
				Priority: "high",
			})
		}
	}

	var orphans []string
	for _, id := range sortedKeys(g.nodes) {
		if len(g.adjacency[id]) == 0 && len(g.reverse[id]) == 0 {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		suggestions = append(suggestions, Suggestion{
			Type:     "orphaned_components",
			Nodes:    orphans,
			Detail:   strconv.Itoa(len(orphans)) + " components have no relationships",
			Advice:   "review whether these components are still needed",
			Priority: "medium",
		})
	}

	if cycles := g.cyclesLocked(); len(cycles) > 0 {
		suggestions = append(suggestions, Suggestion{
			Type:     "circular_dependencies",
			Cycles:   cycles,
			Detail:   strconv.Itoa(len(cycles)) + " circular dependency chains detected",
			Advice:   "break cycles with interfaces or dependency inversion",
			Priority: "high",
		})
	}

	return suggestions
}

// cyclesLocked finds cycles with a recursion-stack DFS over sorted
// adjacency, so output is deterministic.
func (g *Graph) cyclesLocked() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		if onStack[node] {
			for i, p := range path {
				if p == node {
					cycle := append(append([]string(nil), path[i:]...), node)
					cycles = append(cycles, cycle)
					return
				}
			}
			return
		}
		if visited[node] {
			return
		}
		visited[node] = true
		onStack[node] = true
		for _, neighbor := range sortedCopy(g.adjacency[node]) {
			dfs(neighbor, append(path, neighbor))
		}
		onStack[node] = false
	}

	for _, node := range sortedKeys(g.nodes) {
		if !visited[node] {
			dfs(node, []string{node})
		}
	}
	return cycles
}

// Build replaces the graph contents from indexed file records. Every file
// and symbol becomes a node; files contain their symbols; dependency
// targets resolve to file nodes where possible and otherwise produce
// synthetic external nodes.
func (g *Graph) Build(records []*model.FileRecord) {
	files := make(map[string]*model.FileRecord, len(records))
	for _, record := range records {
		files[record.FilePath] = record
	}

	sorted := make([]*model.FileRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FilePath < sorted[j].FilePath })

	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()

	for _, record := range sorted {
		g.addNodeLocked(Node{
			ID:       record.FilePath,
			Type:     NodeFile,
			Name:     baseName(record.FilePath),
			FilePath: record.FilePath,
			Attributes: map[string]string{
				"format":       string(record.Format),
				"symbol_count": strconv.Itoa(len(record.Symbols)),
			},
		})
	}

	for _, record := range sorted {
		for _, symbol := range record.Symbols {
			id := record.FilePath + "::" + symbol.Name
			attrs := map[string]string{"kind": string(symbol.Kind)}
			if symbol.Parent != "" {
				attrs["parent"] = symbol.Parent
			}
			g.addNodeLocked(Node{
				ID:         id,
				Type:       NodeSymbol,
				Name:       symbol.Name,
				Attributes: attrs,
				FilePath:   record.FilePath,
				Line:       symbol.Range.Start.Line,
			})
			g.addEdgeLocked(Edge{Source: record.FilePath, Target: id, Relationship: RelContains})
		}

		for _, dep := range record.Dependencies {
			target := tracker.ResolveImport(dep.Target, files)
			if target == "" {
				target = "external:" + dep.Target
				if _, ok := g.nodes[target]; !ok {
					g.addNodeLocked(Node{ID: target, Type: NodeExternal, Name: dep.Target})
				}
			}
			if target == record.FilePath {
				continue
			}
			g.addEdgeLocked(Edge{
				Source:       record.FilePath,
				Target:       target,
				Relationship: relationshipFor(dep.Kind),
			})
		}
	}
}

// relationshipFor maps a dependency kind to an edge relationship.
func relationshipFor(kind string) string {
	switch kind {
	case model.DepInheritance:
		return RelExtends
	case model.DepYAMLReference, model.DepJSONReference:
		return RelConfiguredBy
	default:
		return RelDependsOn
	}
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
