package syncdata

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nas-tidy/internal/remote"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T) (*Pusher, string, string) {
	t.Helper()
	shareRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(shareRoot, "photo"), 0755); err != nil {
		t.Fatal(err)
	}
	sess := remote.NewMountSession(map[string]string{"home": shareRoot})
	if err := sess.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(t.TempDir(), "camera")
	return &Pusher{Session: sess, Logger: log.New(&bytes.Buffer{}, "", 0)}, shareRoot, local
}

func opts(local string) Options {
	return Options{LocalDir: local, Share: "home", TargetPath: "/photo", FolderName: "Trip"}
}

func TestPushCreatesFolderAndUploads(t *testing.T) {
	p, shareRoot, local := setup(t)
	writeFile(t, filepath.Join(local, "a.jpg"), 20000)
	writeFile(t, filepath.Join(local, "b.jpg"), 300)
	writeFile(t, filepath.Join(local, "sub", "c.jpg"), 20000)

	var uploaded []string
	p.OnUpload = func(path string) { uploaded = append(uploaded, path) }
	rep, err := p.Push(context.Background(), opts(local))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if strings.Join(rep.Uploaded, ",") != "a.jpg,b.jpg" {
		t.Fatalf("unexpected uploads %v", rep.Uploaded)
	}
	if strings.Join(uploaded, ",") != "/photo/Trip/a.jpg,/photo/Trip/b.jpg" {
		t.Fatalf("unexpected upload paths %v", uploaded)
	}
	data, err := os.ReadFile(filepath.Join(shareRoot, "photo", "Trip", "a.jpg"))
	if err != nil || len(data) != 20000 {
		t.Fatalf("remote copy missing or short: %v", err)
	}
	if _, err := os.Stat(filepath.Join(local, "a.jpg")); err != nil {
		t.Fatal("copy removed the local file")
	}
}

func TestPushSkipsExistingNames(t *testing.T) {
	p, shareRoot, local := setup(t)
	writeFile(t, filepath.Join(shareRoot, "photo", "Trip", "photo.jpg"), 10)
	writeFile(t, filepath.Join(local, "photo.jpg"), 20000)

	rep, err := p.Push(context.Background(), opts(local))
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Skipped) != 1 || len(rep.Uploaded) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	remoteData, _ := os.ReadFile(filepath.Join(shareRoot, "photo", "Trip", "photo.jpg"))
	if len(remoteData) != 10 {
		t.Fatal("existing remote file was overwritten")
	}
	if _, err := os.Stat(filepath.Join(local, "photo.jpg")); err != nil {
		t.Fatal("skipped local file was removed")
	}
}

func TestPushDropsSmallFiles(t *testing.T) {
	p, shareRoot, local := setup(t)
	writeFile(t, filepath.Join(local, "thumb.jpg"), 9999)
	writeFile(t, filepath.Join(local, "edge.jpg"), 10000)

	o := opts(local)
	o.DropSmallFiles = true
	rep, err := p.Push(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(rep.Dropped, ",") != "thumb.jpg" || strings.Join(rep.Uploaded, ",") != "edge.jpg" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(local, "thumb.jpg")); !os.IsNotExist(err) {
		t.Fatal("small file still present locally")
	}
	if _, err := os.Stat(filepath.Join(shareRoot, "photo", "Trip", "thumb.jpg")); !os.IsNotExist(err) {
		t.Fatal("small file was uploaded")
	}
}

func TestPushMoveRemovesLocalFolder(t *testing.T) {
	p, _, local := setup(t)
	writeFile(t, filepath.Join(local, "a.jpg"), 20000)
	writeFile(t, filepath.Join(local, "b.jpg"), 20000)

	o := opts(local)
	o.Move = true
	rep, err := p.Push(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Uploaded) != 2 || !rep.DirRemoved {
		t.Fatalf("unexpected report %+v", rep)
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Fatal("local folder still exists")
	}
}

func TestPushMoveKeepsFolderWithLeftovers(t *testing.T) {
	p, shareRoot, local := setup(t)
	writeFile(t, filepath.Join(shareRoot, "photo", "Trip", "dup.jpg"), 1)
	writeFile(t, filepath.Join(local, "dup.jpg"), 20000)

	o := opts(local)
	o.Move = true
	rep, err := p.Push(context.Background(), o)
	if err != nil {
		t.Fatalf("rmdir failure must not fail the push: %v", err)
	}
	if rep.DirRemoved {
		t.Fatal("folder with a skipped file reported removed")
	}
	if _, err := os.Stat(filepath.Join(local, "dup.jpg")); err != nil {
		t.Fatal("skipped file lost")
	}
}

func TestPushMissingLocalDir(t *testing.T) {
	p, _, local := setup(t)
	if _, err := p.Push(context.Background(), opts(local)); err == nil {
		t.Fatal("expected error for missing local dir")
	}
}

func TestPushHonorsIgnoreFile(t *testing.T) {
	p, shareRoot, local := setup(t)
	writeFile(t, filepath.Join(local, "a.jpg"), 20000)
	writeFile(t, filepath.Join(local, "notes.txt"), 20000)
	writeFile(t, filepath.Join(local, "Thumbs.db"), 20000)
	if err := os.WriteFile(filepath.Join(local, IgnoreFile), []byte("# local only\n*.txt\nThumbs.db\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rep, err := p.Push(context.Background(), opts(local))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if strings.Join(rep.Uploaded, ",") != "a.jpg" {
		t.Fatalf("unexpected uploads %v", rep.Uploaded)
	}
	if len(rep.Ignored) != 3 {
		t.Fatalf("expected ignore file and two matches ignored, got %v", rep.Ignored)
	}
	if _, err := os.Stat(filepath.Join(shareRoot, "photo", "Trip", IgnoreFile)); !os.IsNotExist(err) {
		t.Fatalf("ignore file uploaded: %v", err)
	}
}
