package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codescope-dev/codescope/internal/fileutil"
)

const snapshotVersion = "1.0"

// snapshot is the on-disk form of the graph. Derived indexes are stored
// alongside nodes and edges so a load does not have to re-derive them.
type snapshot struct {
	Metadata  snapshotMetadata    `json:"metadata"`
	Nodes     []Node              `json:"nodes"`
	Edges     []Edge              `json:"edges"`
	Indexes   snapshotIndexes     `json:"semantic_indexes"`
	Adjacency map[string][]string `json:"adjacency"`
	Reverse   map[string][]string `json:"reverse_adjacency"`
}

type snapshotMetadata struct {
	Version   string `json:"version"`
	UpdatedAt string `json:"updated_at"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

type snapshotIndexes struct {
	NodesByType map[string][]string `json:"nodes_by_type"`
	Patterns    map[string][]string `json:"concept_patterns"`
	Frameworks  map[string][]string `json:"framework_detection"`
}

// Save writes the graph to path atomically.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	snap := snapshot{
		Metadata: snapshotMetadata{
			Version:   snapshotVersion,
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
			NodeCount: len(g.nodes),
			EdgeCount: len(g.edges),
		},
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: append([]Edge(nil), g.edges...),
		Indexes: snapshotIndexes{
			NodesByType: setless(g.nodesByType),
			Patterns:    flatten(g.patterns),
			Frameworks:  flatten(g.frameworks),
		},
		Adjacency: setless(g.adjacency),
		Reverse:   setless(g.reverse),
	}
	for _, id := range sortedKeys(g.nodes) {
		snap.Nodes = append(snap.Nodes, *g.nodes[id])
	}
	g.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	slog.Debug("knowledge graph saved",
		slog.String("path", path),
		slog.Int("nodes", snap.Metadata.NodeCount),
		slog.Int("edges", snap.Metadata.EdgeCount))
	return nil
}

// Load replaces the graph contents from a snapshot at path. A missing
// file is not an error: it reports false with a nil error, meaning build
// from scratch.
func (g *Graph) Load(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}

	g.mu.Lock()
	g.resetLocked()
	for _, node := range snap.Nodes {
		g.addNodeLocked(node)
	}
	for _, edge := range snap.Edges {
		g.addEdgeLocked(edge)
	}
	g.mu.Unlock()

	slog.Info("knowledge graph loaded",
		slog.String("path", path),
		slog.Int("nodes", len(snap.Nodes)),
		slog.Int("edges", len(snap.Edges)))
	return true, nil
}

// StorageInfo describes the snapshot file on disk.
type StorageInfo struct {
	Exists       bool      `json:"exists"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Inspect reports whether a snapshot exists at path and its size.
func Inspect(path string) StorageInfo {
	info, err := os.Stat(path)
	if err != nil {
		return StorageInfo{Exists: false, Path: path}
	}
	return StorageInfo{
		Exists:       true,
		Path:         path,
		SizeBytes:    info.Size(),
		LastModified: info.ModTime(),
	}
}

func setless(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for key, values := range m {
		out[key] = sortedCopy(values)
	}
	return out
}

func flatten(m map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(m))
	for key, members := range m {
		out[key] = sortedKeys(members)
	}
	return out
}
