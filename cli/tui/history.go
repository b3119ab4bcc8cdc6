package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/ferry/archive"
)

// HistoryView is a page of call records, newest first.
type HistoryView struct {
	Namespace string
	Records   []archive.Record
}

// Counts tallies records per outcome.
func (v *HistoryView) Counts() (succeeded, cancelled, failed int) {
	for _, r := range v.Records {
		switch r.Outcome {
		case "succeeded":
			succeeded++
		case "cancelled":
			cancelled++
		case "failed":
			failed++
		}
	}
	return succeeded, cancelled, failed
}

// HistoryModel shows outcome totals and a table of recent calls.
type HistoryModel struct {
	view     *HistoryView
	table    table.Model
	quitting bool
}

var historyColumns = []table.Column{
	{Title: "Completed", Width: 20},
	{Title: "Method", Width: 16},
	{Title: "Outcome", Width: 10},
	{Title: "Error", Width: 22},
	{Title: "Files", Width: 6},
	{Title: "Bytes", Width: 10},
	{Title: "Call ID", Width: 36},
}

// NewHistoryModel creates a history model.
func NewHistoryModel(v *HistoryView) HistoryModel {
	rows := make([]table.Row, len(v.Records))
	for i, r := range v.Records {
		rows[i] = table.Row{
			r.Completed,
			r.Method,
			r.Outcome,
			r.ErrorCode,
			fmt.Sprintf("%d", r.Files),
			fmt.Sprintf("%d", r.Bytes),
			r.CallID,
		}
	}
	t := table.New(
		table.WithColumns(historyColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+2, 15)),
	)
	return HistoryModel{view: v, table: t}
}

// Init implements tea.Model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(min(len(m.view.Records)+2, msg.Height-12), 3))
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := "Call History"
	if m.view.Namespace != "" {
		title += " · " + m.view.Namespace
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	succeeded, cancelled, failed := m.view.Counts()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Total", len(m.view.Records), highlightColor),
		renderStatBox("Succeeded", succeeded, outcomeColor("succeeded")),
		renderStatBox("Cancelled", cancelled, outcomeColor("cancelled")),
		renderStatBox("Failed", failed, outcomeColor("failed")),
	))
	b.WriteString("\n\n")

	if len(m.view.Records) == 0 {
		b.WriteString(LabelStyle.Render("(no calls)"))
	} else {
		b.WriteString(BoxStyle.Padding(0, 1).Render(m.table.View()))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("arrows to move, q to quit"))
	return b.String()
}

func renderStatBox(label string, value int, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
