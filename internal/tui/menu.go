package tui

import (
	"io"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

// compactDelegate reduces per-item height to 1 line to make list dense
type compactDelegate struct{ list.DefaultDelegate }

func (d compactDelegate) Height() int { return 1 }

// remove extra spacing between rows
func (d compactDelegate) Spacing() int { return 0 }

// Render the key with its hint dimmed on the same line
func (d compactDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	it := listItem.(menuItem)
	prefix := "  "
	title := d.Styles.NormalTitle
	if index == m.Index() {
		prefix = "> "
		title = d.Styles.SelectedTitle
	}
	line := title.Render(prefix + it.Key)
	if it.Hint != "" {
		line += " " + d.Styles.NormalDesc.Render(it.Hint)
	}
	_, _ = io.WriteString(w, line)
}

func NewMenu(entries []Entry, title string) *menuModel {
	var lItems []list.Item
	for _, e := range entries {
		lItems = append(lItems, menuItem(e))
	}

	delegate := compactDelegate{list.NewDefaultDelegate()}
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")).Bold(true)
	delegate.Styles.NormalTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2"))
	delegate.Styles.NormalDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))

	l := list.New(lItems, delegate, 60, len(lItems)+4)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)

	return &menuModel{list: l}
}
