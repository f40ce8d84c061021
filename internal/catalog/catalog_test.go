package catalog

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"

	"nas-tidy/internal/confirm"
	"nas-tidy/internal/dedup"
	"nas-tidy/internal/failure"
	"nas-tidy/internal/index"
	"nas-tidy/internal/remote"
	"nas-tidy/internal/syncdata"
)

type fixture struct {
	cat       *Catalog
	root      string
	indexPath string
	bus       EventBus.Bus
	deleted   []string
}

func put(t *testing.T, root, p, content string, ts time.Time) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if !ts.IsZero() {
		if err := os.Chtimes(full, ts, ts); err != nil {
			t.Fatal(err)
		}
	}
}

func newFixture(t *testing.T, store index.Store) *fixture {
	t.Helper()
	f := &fixture{root: t.TempDir(), bus: EventBus.New()}
	f.indexPath = filepath.Join(t.TempDir(), "index.json")
	if store == nil {
		store = index.NewJSONStore(f.indexPath, nil)
	}
	f.bus.Subscribe("file:deleted", func(share, p string, size int64, reason string) {
		f.deleted = append(f.deleted, p)
	})
	f.cat = New(Options{
		Session:   remote.NewMountSession(map[string]string{"home": f.root}),
		Store:     store,
		Share:     "home",
		Confirmer: confirm.Func(func(context.Context, confirm.Prompt) (bool, error) { return true, nil }),
		Bus:       f.bus,
		Logger:    log.New(&bytes.Buffer{}, "", 0),
	})
	return f
}

func paths(idx index.Index) string {
	var out []string
	for _, r := range idx {
		out = append(out, r.Path)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

var (
	older = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	big   = strings.Repeat("B", 20000)
)

func TestCleanupWorkflow(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/Photos/a.jpg", big, older)
	put(t, f.root, "/Photos/2024/b.jpg", big, newer)
	put(t, f.root, "/Photos/tiny.jpg", "t", older)
	put(t, f.root, "/Photos/unique.jpg", big+"u", older)

	policy := dedup.OlderWins
	var previewed int
	rep, err := f.cat.Cleanup(context.Background(), CleanupOptions{
		Root:       "/",
		MinSize:    10000,
		Duplicates: &policy,
		Preview:    func(g []dedup.Group) { previewed = len(g) },
	})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !rep.Rebuilt || previewed != 1 {
		t.Fatalf("unexpected report %+v preview %d", rep, previewed)
	}
	if rep.Records != 2 {
		t.Fatalf("expected 2 records left, got %d", rep.Records)
	}
	if _, err := os.Stat(filepath.Join(f.root, "Photos", "2024", "b.jpg")); !os.IsNotExist(err) {
		t.Fatal("newer duplicate still on share")
	}
	if _, err := os.Stat(filepath.Join(f.root, "Photos", "a.jpg")); err != nil {
		t.Fatal("older duplicate removed")
	}
	if strings.Join(f.deleted, ",") != "/Photos/tiny.jpg,/Photos/2024/b.jpg" {
		t.Fatalf("unexpected delete events %v", f.deleted)
	}

	saved, ok := index.NewJSONStore(f.indexPath, nil).Load()
	if !ok || paths(saved) != "/Photos/a.jpg,/Photos/unique.jpg" {
		t.Fatalf("persisted index wrong: %v %v", paths(saved), ok)
	}
}

func TestOpenWithoutIndexStartsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	found, err := f.cat.Open(context.Background())
	if err != nil || found {
		t.Fatalf("expected no index, got %v %v", found, err)
	}
	defer f.cat.Close()
	if len(f.cat.Index()) != 0 {
		t.Fatal("expected empty index")
	}
}

func TestRebuildFailureKeepsIndex(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/a.jpg", "a", time.Time{})
	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()
	if _, err := f.cat.Rebuild(ctx, "/", false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.cat.Rebuild(ctx, "/does-not-exist", false); err == nil {
		t.Fatal("expected error")
	}
	if paths(f.cat.Index()) != "/a.jpg" {
		t.Fatalf("index replaced after failed rebuild: %v", f.cat.Index())
	}
}

func TestPushRefreshesDestinationOnly(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/Docs/keep.txt", "k", time.Time{})
	if err := os.MkdirAll(filepath.Join(f.root, "photo"), 0755); err != nil {
		t.Fatal(err)
	}
	local := t.TempDir()
	put(t, local, "/new.jpg", big, time.Time{})

	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()
	if _, err := f.cat.Rebuild(ctx, "/", false); err != nil {
		t.Fatal(err)
	}
	var uploaded []string
	f.bus.Subscribe("file:uploaded", func(share, p string) { uploaded = append(uploaded, p) })

	rep, err := f.cat.Push(ctx, syncdata.Options{LocalDir: local, TargetPath: "/photo", FolderName: "Trip"})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(rep.Uploaded) != 1 || len(uploaded) != 1 {
		t.Fatalf("unexpected report %+v events %v", rep, uploaded)
	}
	if paths(f.cat.Index()) != "/Docs/keep.txt,/photo/Trip/new.jpg" {
		t.Fatalf("unexpected index %v", paths(f.cat.Index()))
	}
}

func TestRemoveOriginals(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/p/cat.jpg", "small", time.Time{})
	put(t, f.root, "/p/cat_upscaled.jpg", "bigger", time.Time{})
	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()
	if _, err := f.cat.Rebuild(ctx, "/", false); err != nil {
		t.Fatal(err)
	}
	out, err := f.cat.RemoveOriginals(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Deleted) != 1 || paths(f.cat.Index()) != "/p/cat_upscaled.jpg" {
		t.Fatalf("unexpected outcome %+v index %v", out, paths(f.cat.Index()))
	}
}

// brokenStore loads nothing and fails every save.
type brokenStore struct{ saves int }

func (b *brokenStore) Load() (index.Index, bool) { return nil, false }
func (b *brokenStore) Save(index.Index) error {
	b.saves++
	return failure.New(failure.Persistence, "save", "broken", errors.New("disk full"))
}
func (b *brokenStore) Location() string { return "broken" }
func (b *brokenStore) Close() error     { return nil }

func TestSaveFailureKeepsMemoryIndex(t *testing.T) {
	st := &brokenStore{}
	f := newFixture(t, st)
	put(t, f.root, "/a.jpg", "x", time.Time{})
	put(t, f.root, "/b.jpg", strings.Repeat("y", 50), time.Time{})
	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()

	if _, err := f.cat.Rebuild(ctx, "/", false); !failure.Is(err, failure.Persistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(f.cat.Index()) != 2 {
		t.Fatal("rebuild result dropped after save failure")
	}
	out, err := f.cat.DeleteSmall(ctx, 10)
	if !failure.Is(err, failure.Persistence) || len(out.Deleted) != 1 {
		t.Fatalf("unexpected %+v %v", out, err)
	}
	if paths(f.cat.Index()) != "/b.jpg" || st.saves != 2 {
		t.Fatalf("index %v saves %d", paths(f.cat.Index()), st.saves)
	}
}

func TestListSmallIsStrict(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/five", strings.Repeat("5", 5000), time.Time{})
	put(t, f.root, "/ten", strings.Repeat("t", 10000), time.Time{})
	put(t, f.root, "/fifteen", strings.Repeat("f", 15000), time.Time{})
	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()
	if _, err := f.cat.Rebuild(ctx, "/", false); err != nil {
		t.Fatal(err)
	}
	if got := f.cat.ListSmall(10000); paths(got) != "/five" {
		t.Fatalf("unexpected listing %v", paths(got))
	}
	out, err := f.cat.DeleteSmall(ctx, 10000)
	if err != nil || len(out.Deleted) != 2 {
		t.Fatalf("unexpected %+v %v", out, err)
	}
}

func TestDeclinedDuplicatesDeleteNothing(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/a.jpg", "same", older)
	put(t, f.root, "/b.jpg", "same", newer)
	var asked confirm.Prompt
	f.cat.confirmer = confirm.Func(func(_ context.Context, p confirm.Prompt) (bool, error) {
		asked = p
		return false, nil
	})
	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()
	if _, err := f.cat.Rebuild(ctx, "/", false); err != nil {
		t.Fatal(err)
	}
	results, err := f.cat.ResolveDuplicates(ctx, dedup.NewerWins)
	if err != nil || results != nil {
		t.Fatalf("unexpected %v %v", results, err)
	}
	if len(asked.Items) != 1 || asked.Items[0].Path != "/a.jpg" {
		t.Fatalf("unexpected prompt %+v", asked)
	}
	if len(f.cat.Index()) != 2 || len(f.deleted) != 0 {
		t.Fatal("declined prompt deleted files")
	}
}

func TestPushWithNothingUploadedStillIndexesDestination(t *testing.T) {
	f := newFixture(t, nil)
	put(t, f.root, "/photo/Trip/new.jpg", big, time.Time{})
	local := t.TempDir()
	put(t, local, "/new.jpg", big, time.Time{})

	var seen []string
	f.cat.onPush = func(name string) { seen = append(seen, name) }
	ctx := context.Background()
	if _, err := f.cat.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.cat.Close()

	rep, err := f.cat.Push(ctx, syncdata.Options{LocalDir: local, TargetPath: "/photo", FolderName: "Trip"})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(rep.Uploaded) != 0 || strings.Join(rep.Skipped, ",") != "new.jpg" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if strings.Join(seen, ",") != "new.jpg" {
		t.Fatalf("unexpected push progress %v", seen)
	}
	if paths(f.cat.Index()) != "/photo/Trip/new.jpg" {
		t.Fatalf("unexpected index %v", paths(f.cat.Index()))
	}
}

type flakyConnect struct {
	remote.Session
	failures int
	err      error
	calls    int
}

func (s *flakyConnect) Connect(ctx context.Context) error {
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return s.Session.Connect(ctx)
}

func TestOpenRetriesConnectionFailureOnce(t *testing.T) {
	saved := reconnectDelay
	reconnectDelay = 0
	defer func() { reconnectDelay = saved }()

	dropped := failure.New(failure.Connection, "dial", "nas:22", errors.New("connection refused"))
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"first attempt fails", 1, dropped, 2, false},
		{"both attempts fail", 2, dropped, 2, true},
		{"config error is not retried", 1, failure.New(failure.Config, "ssh auth", "", errors.New("no key")), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			sess := &flakyConnect{Session: f.cat.sess, failures: tt.failures, err: tt.err}
			f.cat.sess = sess
			_, err := f.cat.Open(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if sess.calls != tt.wantCalls {
				t.Fatalf("expected %d connect call(s), got %d", tt.wantCalls, sess.calls)
			}
			f.cat.Close()
		})
	}
}
