package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Export formats.
const (
	FormatJSON   = "json"
	FormatDOT    = "dot"
	FormatCypher = "cypher"
)

// Export serializes the node and edge sets in the requested format.
func (g *Graph) Export(format string) (string, error) {
	switch format {
	case FormatJSON:
		return g.exportJSON()
	case FormatDOT:
		return g.exportDOT(), nil
	case FormatCypher:
		return g.exportCypher(), nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (g *Graph) exportJSON() (string, error) {
	doc := struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode graph: %w", err)
	}
	return string(data), nil
}

func (g *Graph) exportDOT() string {
	var b strings.Builder
	b.WriteString("digraph knowledge_graph {\n")
	for _, node := range g.Nodes() {
		fmt.Fprintf(&b, "  %q [label=%q shape=box];\n", node.ID, node.Name)
	}
	for _, edge := range g.Edges() {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", edge.Source, edge.Target, edge.Relationship)
	}
	b.WriteString("}\n")
	return b.String()
}

// exportCypher emits CREATE statements for nodes followed by MATCH/CREATE
// statements for relationships, one per line, semicolon terminated.
func (g *Graph) exportCypher() string {
	var statements []string
	for _, node := range g.Nodes() {
		attrs := "{}"
		if len(node.Attributes) > 0 {
			if data, err := json.Marshal(node.Attributes); err == nil {
				attrs = string(data)
			}
		}
		statements = append(statements, fmt.Sprintf(
			"CREATE (:%s {id: '%s', name: '%s', attributes: %s})",
			cypherLabel(node.Type), cypherEscape(node.ID), cypherEscape(node.Name), attrs))
	}
	for _, edge := range g.Edges() {
		statements = append(statements, fmt.Sprintf(
			"MATCH (a {id: '%s'}), (b {id: '%s'}) CREATE (a)-[:%s]->(b)",
			cypherEscape(edge.Source), cypherEscape(edge.Target), strings.ToUpper(edge.Relationship)))
	}
	if len(statements) == 0 {
		return ""
	}
	return strings.Join(statements, ";\n") + ";"
}

// cypherLabel keeps labels to identifier characters.
func cypherLabel(nodeType string) string {
	if nodeType == "" {
		return "Node"
	}
	var b strings.Builder
	for _, r := range nodeType {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Node"
	}
	return b.String()
}

func cypherEscape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`)
}
