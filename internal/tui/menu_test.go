package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestMenuSelection(t *testing.T) {
	m := NewMenu([]Entry{{Key: "index"}, {Key: "dupes", Hint: "resolve duplicates"}, {Key: "exit"}}, "nas-tidy")
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.choice != "dupes" {
		t.Fatalf("expected dupes, got %q", m.choice)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestMenuCancel(t *testing.T) {
	m := NewMenu([]Entry{{Key: "index"}}, "nas-tidy")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.choice != Cancelled {
		t.Fatalf("expected cancel, got %q", m.choice)
	}
}
