package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// View types.
const (
	ViewDecode  = "decode"
	ViewHistory = "history"
)

// SupportedTUIViews returns the view types that have a TUI.
func SupportedTUIViews() []string {
	return []string{ViewDecode, ViewHistory}
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// Model builds the model for viewType.
func Model(viewType string, data any) (tea.Model, error) {
	switch viewType {
	case ViewDecode:
		v, ok := data.(*DecodeView)
		if !ok {
			return nil, fmt.Errorf("%s view needs *tui.DecodeView, got %T", viewType, data)
		}
		return NewDecodeModel(v), nil
	case ViewHistory:
		v, ok := data.(*HistoryView)
		if !ok {
			return nil, fmt.Errorf("%s view needs *tui.HistoryView, got %T", viewType, data)
		}
		return NewHistoryModel(v), nil
	default:
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// Run starts the TUI for viewType and blocks until the user quits.
func Run(viewType string, data any) error {
	model, err := Model(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// RenderStatic renders the first frame of a view without starting a
// program.
func RenderStatic(viewType string, data any) (string, error) {
	model, err := Model(viewType, data)
	if err != nil {
		return "", err
	}
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View()), nil
}
