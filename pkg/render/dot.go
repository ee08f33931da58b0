// Package render draws the override layer as a Graphviz diagram for
// debugging edits.
//
// [ToDOT] produces DOT text: manual nodes are boxes labelled with their id and
// how they were placed, base endpoints referenced by manual edges are grey
// ellipses, and one-way edges keep their arrowhead. [RenderSVG] lays the DOT
// out with Graphviz.
package render

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/patch"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

// ToDOT converts manual nodes and edges to Graphviz DOT.
func ToDOT(nodes []patch.Node, edges []patch.Edge) string {
	var buf bytes.Buffer
	buf.WriteString("digraph overrides {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	manual := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		id := n.NodeID().String()
		manual[id] = true
		fmt.Fprintf(&buf, "  %q [label=%q];\n", id, nodeLabel(n))
	}

	var base []string
	for _, e := range edges {
		for _, id := range []graph.NodeID{e.U, e.V} {
			if s := id.String(); !manual[s] && !slices.Contains(base, s) {
				base = append(base, s)
			}
		}
	}
	for _, id := range base {
		fmt.Fprintf(&buf, "  %q [shape=ellipse, fillcolor=lightgrey];\n", id)
	}

	buf.WriteString("\n")
	for _, e := range edges {
		attrs := []string{fmt.Sprintf("label=%q", fmt.Sprintf("%s %.1fm", e.Highway, e.Length))}
		if !e.Oneway {
			attrs = append(attrs, "dir=none")
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.U.String(), e.V.String(), strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeLabel(n patch.Node) string {
	p := n.Properties
	switch p.SnapType {
	case snap.KindNode:
		return fmt.Sprintf("%d\nnode %s", n.ID, p.SnappedTo)
	case snap.KindEdge:
		if p.Edge != nil {
			return fmt.Sprintf("%d\nedge %s-%s t=%.2f", n.ID, p.Edge.U, p.Edge.V, p.T)
		}
	}
	return fmt.Sprintf("%d", n.ID)
}

// RenderSVG lays out a DOT graph with Graphviz and returns SVG bytes.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
