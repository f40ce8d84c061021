// Package remote defines the file-share session the indexer works against and
// ships two adapters for it: an SSH adapter that drives shell commands on the
// NAS and a mount adapter for shares already mounted on this machine.
package remote

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// Entry is one item of a directory listing. "." and ".." are never returned.
type Entry struct {
	Name       string
	IsDir      bool
	Size       int64
	CreateTime time.Time
}

// Attributes is the metadata of a single share path.
type Attributes struct {
	IsDir      bool
	CreateTime time.Time
	Size       int64
}

// Session is a connection to a file-sharing host exposing one or more named
// shares. Paths are share-relative and slash separated.
//
// A Session is not safe for concurrent use; callers serialize access.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect() error

	List(ctx context.Context, share, dir string) ([]Entry, error)
	GetAttributes(ctx context.Context, share, p string) (Attributes, error)
	// Retrieve streams the content of p into w.
	Retrieve(ctx context.Context, share, p string, w io.Writer) error
	// Store creates or truncates p and streams r into it.
	Store(ctx context.Context, share, p string, r io.Reader) error
	Delete(ctx context.Context, share, p string) error
	CreateDirectory(ctx context.Context, share, p string) error
}

// Normalize returns p as an absolute, cleaned, slash separated share path.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// Join joins share path elements and normalizes the result.
func Join(elem ...string) string {
	return Normalize(path.Join(elem...))
}

// Parent returns the directory containing p; the parent of "/" is "/".
func Parent(p string) string {
	return path.Dir(Normalize(p))
}

// Depth counts the separators in a normalized path. "/" has depth 0,
// "/a" depth 1, "/a/b" depth 2.
func Depth(p string) int {
	n := Normalize(p)
	if n == "/" {
		return 0
	}
	return strings.Count(n, "/")
}

func skipEntry(name string) bool {
	return name == "" || name == "." || name == ".."
}
