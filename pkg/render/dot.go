// Package render turns a device tree into Graphviz diagrams.
//
// The topology is drawn bottom-up: disks at the bottom rank, stacked
// layers above them. Planned (not yet existing) devices get dashed
// outlines so a plan review can see at a glance what will be created.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/japokorn/blivet/pkg/devicetree"
	"github.com/japokorn/blivet/pkg/errors"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes sizes and format labels in node labels.
	// When false, only the device name is shown.
	Detailed bool
}

// ToDOT converts a device tree to Graphviz DOT format. The resulting
// string can be rendered with [RenderSVG] or [RenderPNG].
func ToDOT(tree *devicetree.Tree, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph storage {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, d := range tree.Devices() {
		label := d.Name
		if opts.Detailed {
			parts := []string{d.Kind.String()}
			if d.Size != 0 {
				parts = append(parts, d.Size.String())
			}
			if d.Format != nil {
				parts = append(parts, d.Format.String())
			}
			label = d.Name + "\n" + strings.Join(parts, "\n")
		}

		attrs := []string{fmt.Sprintf("label=%q", label)}
		if !d.Exists {
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", d.Name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, d := range tree.Devices() {
		for _, p := range tree.Parents(d.ID) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", p.Name, d.Name)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return renderFormat(ctx, dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return renderFormat(ctx, dot, graphviz.PNG)
}

func renderFormat(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render graph")
	}
	return buf.Bytes(), nil
}

// WriteFile renders the tree to path, choosing the output format from
// the extension: .dot, .svg, or .png.
func WriteFile(ctx context.Context, path string, tree *devicetree.Tree, opts Options) error {
	dot := ToDOT(tree, opts)

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dot":
		data = []byte(dot)
	case ".svg":
		data, err = RenderSVG(ctx, dot)
	case ".png":
		data, err = RenderPNG(ctx, dot)
	default:
		return errors.New(errors.ErrCodeInvalidName, "unsupported render extension %q", ext)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing rendered graph")
	}
	return nil
}
