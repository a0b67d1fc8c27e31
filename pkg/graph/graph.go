// Package graph renders a compiled feature set as a dependency diagram.
//
// The diagram shows each feature as a node, ordering constraints as edges,
// and the resolved pipeline position as part of the label. Output is DOT
// text or an SVG rendered through Graphviz.
package graph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/rowkit/rowkit/pkg/engine"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes the resolved pipeline position and contributed
	// stages in node labels. When false, only the feature id is shown.
	Detailed bool
}

// ToDOT converts a feature set to Graphviz DOT format. The features must
// resolve; the resolved order drives the position annotations.
//
// Features that contribute a derive step are drawn solid; hook-only
// features are drawn dashed.
func ToDOT(features []engine.Feature, opts Options) (string, error) {
	order, err := engine.Resolve(features)
	if err != nil {
		return "", err
	}
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	byID := make(map[string]engine.Feature, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}

	var buf bytes.Buffer
	buf.WriteString("digraph features {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, id := range order {
		f := byID[id]
		label := fmtLabel(f, position[id], opts.Detailed)
		attrs := fmtAttrs(f, label)
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range engine.Edges(features) {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtLabel(f engine.Feature, position int, detailed bool) string {
	if !detailed {
		return f.ID
	}

	parts := []string{fmt.Sprintf("pos: %d", position)}
	if stages := fmtStages(f); stages != "" {
		parts = append(parts, "stages: "+stages)
	}
	return f.ID + "\n" + strings.Join(parts, "\n")
}

func fmtStages(f engine.Feature) string {
	var stages []string
	if f.Derive != nil {
		stages = append(stages, "derive")
	}
	if f.OnInit != nil {
		stages = append(stages, "init")
	}
	if f.OnRefresh != nil {
		stages = append(stages, "refresh")
	}
	if f.OnDestroy != nil {
		stages = append(stages, "destroy")
	}
	return strings.Join(stages, ",")
}

func fmtAttrs(f engine.Feature, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if f.Derive == nil {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
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
