package index

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nas-tidy/internal/remote"
)

const testShare = "home"

// newShare lays files out under a temp dir and mounts it as testShare.
// Keys are share paths, values the content.
func newShare(t *testing.T, files map[string]string) (*remote.MountSession, string) {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	s := remote.NewMountSession(map[string]string{testShare: root})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s, root
}

func setTime(t *testing.T, root, p string, ts time.Time) {
	t.Helper()
	if err := os.Chtimes(filepath.Join(root, filepath.FromSlash(p)), ts, ts); err != nil {
		t.Fatal(err)
	}
}

// flakySession fails List or Retrieve for selected paths.
type flakySession struct {
	remote.Session
	failList map[string]bool
	failRead map[string]bool
}

var errInjected = errors.New("injected failure")

func (f *flakySession) List(ctx context.Context, share, dir string) ([]remote.Entry, error) {
	if f.failList[dir] {
		return nil, errInjected
	}
	return f.Session.List(ctx, share, dir)
}

func (f *flakySession) Retrieve(ctx context.Context, share, p string, w io.Writer) error {
	if f.failRead[p] {
		return errInjected
	}
	return f.Session.Retrieve(ctx, share, p, w)
}

// countingHasher counts how many digests were started.
type countingHasher struct {
	inner Hasher
	calls int
}

func (c *countingHasher) New() Digest {
	c.calls++
	return c.inner.New()
}
