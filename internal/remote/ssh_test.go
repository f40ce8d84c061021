package remote

import (
	"testing"
	"time"

	"nas-tidy/internal/failure"
)

func TestParseStatLine(t *testing.T) {
	testCases := []struct {
		line    string
		ok      bool
		name    string
		isDir   bool
		size    int64
		created int64
		desc    string
	}{
		{"regular file|5000|1700000000|1700000500|/volume1/photos/a.jpg", true, "a.jpg", false, 5000, 1700000000, "birth time available"},
		{"regular file|10|0|1700000500|/volume1/photos/b.jpg", true, "b.jpg", false, 10, 1700000500, "birth unknown falls back to mtime"},
		{"regular file|10|-|1700000500|/volume1/photos/c.jpg", true, "c.jpg", false, 10, 1700000500, "dash birth falls back to mtime"},
		{"directory|4096|0|1700000000|/volume1/photos/2024", true, "2024", true, 4096, 1700000000, "directory"},
		{"regular empty file|0|0|1|/volume1/x|y.txt", true, "x|y.txt", false, 0, 1, "pipe in name"},
		{"garbage", false, "", false, 0, 0, "too few fields"},
		{"regular file|abc|0|1|/a", false, "", false, 0, 0, "bad size"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			e, ok := parseStatLine(tc.line)
			if ok != tc.ok {
				t.Fatalf("parseStatLine(%q) ok = %v, expected %v", tc.line, ok, tc.ok)
			}
			if !ok {
				return
			}
			if e.Name != tc.name || e.IsDir != tc.isDir || e.Size != tc.size || !e.CreateTime.Equal(time.Unix(tc.created, 0)) {
				t.Errorf("parseStatLine(%q) = %+v", tc.line, e)
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("/a b/it's"); got != `'/a b/it'\''s'` {
		t.Fatalf("got %s", got)
	}
}

func TestSSHSessionRequiresAuth(t *testing.T) {
	_, err := NewSSHSession(SSHConfig{Host: "nas", Username: "luiz"})
	if !failure.Is(err, failure.Config) {
		t.Fatalf("expected config failure, got %v", err)
	}
}

func TestSSHSessionResolve(t *testing.T) {
	s, err := NewSSHSession(SSHConfig{
		Host:     "nas",
		Username: "luiz",
		Password: "secret",
		Shares:   map[string]string{"home": "/volume1/homes/luiz"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.resolve("home", "Photos/../Photos/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/volume1/homes/luiz/Photos/a.jpg" {
		t.Fatalf("got %s", got)
	}
	if _, err := s.resolve("other", "/a"); !failure.Is(err, failure.Connection) {
		t.Fatalf("expected connection failure for unknown share, got %v", err)
	}
	if s.cfg.Port != "22" {
		t.Fatalf("expected default port 22, got %s", s.cfg.Port)
	}
}
