// Package tui shows the interactive main menu.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// Cancelled is returned by ShowMenu when the user leaves with esc, q or
// ctrl+c.
const Cancelled = "cancelled"

// Entry is one menu line. Key is what ShowMenu returns.
type Entry struct {
	Key  string
	Hint string
}

type menuItem Entry

func (m menuItem) Title() string       { return m.Key }
func (m menuItem) Description() string { return m.Hint }
func (m menuItem) FilterValue() string { return m.Key }

type menuModel struct {
	list   list.Model
	choice string
}

func (m *menuModel) Init() tea.Cmd { return nil }

func (m *menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// explicit handle cursor movement to ensure up/down work with compact delegate
		switch msg.String() {
		case "enter":
			if itm := m.list.SelectedItem(); itm != nil {
				m.choice = itm.(menuItem).Key
			}
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			m.choice = Cancelled
			return m, tea.Quit
		case "up", "k":
			m.list.CursorUp()
			return m, nil
		case "down", "j":
			m.list.CursorDown()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *menuModel) View() string {
	if m.choice != "" {
		return fmt.Sprintf("Selected: %s\n", m.choice)
	}
	return m.list.View()
}

// ShowMenu blocks and returns the selected key (or Cancelled)
func ShowMenu(entries []Entry, title string) (string, error) {
	m := NewMenu(entries, title)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return "", err
	}
	if m.choice == "" {
		return Cancelled, nil
	}
	return m.choice, nil
}
