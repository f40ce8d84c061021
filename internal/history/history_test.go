package history

import (
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if got := Recent("", 0); len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
	if err := Record("home", "/Photos/a.jpg", 10, "duplicate"); err != nil {
		t.Fatal(err)
	}
	if err := Record("home", "/Photos/b.jpg", 20, "small"); err != nil {
		t.Fatal(err)
	}
	if err := Record("home", "/Docs/c.txt", 30, "small"); err != nil {
		t.Fatal(err)
	}

	got := Recent("photos", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	if got[0].Path != "/Photos/b.jpg" {
		t.Fatalf("expected newest first, got %v", got)
	}
	if last := Recent("", 1); len(last) != 1 || last[0].Path != "/Docs/c.txt" {
		t.Fatalf("unexpected limit result %v", last)
	}
}
