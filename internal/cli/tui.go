package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/deps"
	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// treeRow is one visible line of the topology browser: a device at a
// given stacking depth.
type treeRow struct {
	device *devices.Device
	depth  int
}

// TreeModel is the bubbletea model for interactive topology browsing.
// The upper pane lists devices depth-first from the roots; the lower
// pane shows details and external dependencies of the selected device.
type TreeModel struct {
	tree     *devicetree.Tree
	resolver *deps.Resolver
	rows     []treeRow
	cursor   int
	height   int
	offset   int
}

// newTreeModel flattens the tree into display rows, roots first.
func newTreeModel(tree *devicetree.Tree) TreeModel {
	m := TreeModel{
		tree:     tree,
		resolver: deps.New(tree, availability.Default()),
		height:   15,
	}

	seen := map[string]bool{}
	var walk func(d *devices.Device, depth int)
	walk = func(d *devices.Device, depth int) {
		m.rows = append(m.rows, treeRow{device: d, depth: depth})
		if seen[d.ID] {
			return // multi-parent device, expand it only once
		}
		seen[d.ID] = true
		for _, child := range tree.Children(d.ID) {
			walk(child, depth+1)
		}
	}
	for _, root := range tree.Roots() {
		walk(root, 0)
	}
	return m
}

func (m TreeModel) Init() tea.Cmd {
	return nil
}

func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 10
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

func (m TreeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Storage Topology"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := m.offset; i < end; i++ {
		row := m.rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		line := cursor + strings.Repeat("  ", row.depth) + row.device.Name
		if !row.device.Exists {
			line += " *"
		}
		if i == m.cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	if len(m.rows) > 0 {
		b.WriteString("\n")
		b.WriteString(m.detailView(m.rows[m.cursor].device))
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  * planned", m.cursor+1, len(m.rows))))
	}

	return b.String()
}

// detailView renders the selected device's facts as a bordered table.
func (m TreeModel) detailView(d *devices.Device) string {
	state := "existing"
	if !d.Exists {
		state = "planned"
	}

	format := "none"
	if d.Format != nil {
		format = d.Format.String()
	}

	size := "unknown"
	if d.Size != 0 {
		size = d.Size.String()
	}

	external := strings.Join(m.resolver.ExternalDependencies(d), ", ")
	if external == "" {
		external = "none"
	}

	rows := [][]string{
		{"Kind", d.Kind.String()},
		{"State", state},
		{"Size", size},
		{"Format", format},
		{"Requires", external},
	}
	if missing := m.resolver.UnavailableDependencies(d); len(missing) > 0 {
		rows = append(rows, []string{"Missing", strings.Join(missing, ", ")})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorGray).Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
		})

	return t.Render()
}
