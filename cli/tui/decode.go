package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DecodeView is a decoded codec message prepared for display. Value holds
// plain maps, slices and scalars.
type DecodeView struct {
	Source string
	Size   int
	Value  any
}

// DecodeModel shows a decoded message as a scrollable tree.
type DecodeModel struct {
	view     *DecodeView
	viewport viewport.Model
	ready    bool
	quitting bool
}

// NewDecodeModel creates a decode model.
func NewDecodeModel(v *DecodeView) DecodeModel {
	return DecodeModel{view: v}
}

// Init implements tea.Model.
func (m DecodeModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m DecodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-6, 3)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(strings.Join(Tree(m.view.Value), "\n"))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m DecodeModel) View() string {
	if m.quitting {
		return ""
	}
	title := TitleStyle.Render(fmt.Sprintf("%s (%d bytes)", m.view.Source, m.view.Size))
	if !m.ready {
		return title + "\n" + strings.Join(Tree(m.view.Value), "\n")
	}
	help := HelpStyle.Render(fmt.Sprintf("%3.f%%  arrows to scroll, q to quit", m.viewport.ScrollPercent()*100))
	return title + "\n" + m.viewport.View() + "\n" + help
}

// Tree renders a plain value as indented lines, one per node.
func Tree(v any) []string {
	var lines []string
	walk(&lines, "", "", v)
	return lines
}

func walk(lines *[]string, indent, label string, v any) {
	switch x := v.(type) {
	case []any:
		*lines = append(*lines, indent+label+TypeStyle.Render(fmt.Sprintf("list[%d]", len(x))))
		for i, item := range x {
			walk(lines, indent+"  ", fmt.Sprintf("%d: ", i), item)
		}
	case map[string]any:
		*lines = append(*lines, indent+label+TypeStyle.Render(fmt.Sprintf("map[%d]", len(x))))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(lines, indent+"  ", k+": ", x[k])
		}
	case nil:
		*lines = append(*lines, indent+label+TypeStyle.Render("null"))
	case string:
		*lines = append(*lines, indent+label+ValueStyle.Render(fmt.Sprintf("%q", x)))
	default:
		*lines = append(*lines, indent+label+ValueStyle.Render(fmt.Sprint(x)))
	}
}
