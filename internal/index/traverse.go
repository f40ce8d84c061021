package index

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"nas-tidy/internal/remote"
)

// ItemType selects what a traversal yields.
type ItemType int

const (
	Both ItemType = iota
	Files
	Folders
)

// ParseItemType accepts "files", "folders" or "both".
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return Both, nil
	case "files":
		return Files, nil
	case "folders":
		return Folders, nil
	}
	return Both, fmt.Errorf("unknown item type %q (want files, folders or both)", s)
}

func (t ItemType) files() bool   { return t == Files || t == Both }
func (t ItemType) folders() bool { return t == Folders || t == Both }

// Unlimited disables the depth bound.
const Unlimited = 0

// Item is one yielded path together with the listing entry that produced it.
type Item struct {
	Path  string
	Entry remote.Entry
}

// Walker carries one traversal: the session it lists through, the share,
// the filters and the logger for subtree failures.
type Walker struct {
	Session  remote.Session
	Share    string
	ItemType ItemType
	// MaxDepth bounds which directories are listed, counted in path
	// separators below the root: the root's own entries are depth 1, and a
	// directory deeper than MaxDepth is yielded but not listed. MaxDepth 1
	// therefore lists the root and its direct subfolders. Unlimited
	// disables it.
	MaxDepth int
	// Exclude holds doublestar patterns matched against share paths without
	// the leading slash, e.g. "**/@eaDir". Matching directories are pruned.
	Exclude []string
	Logger  *log.Logger
}

func (w *Walker) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

func (w *Walker) excluded(p string) bool {
	rel := strings.TrimPrefix(p, "/")
	for _, pattern := range w.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Walk lists root depth-first and calls visit for every yielded item.
// Failing to list root is returned; failing to list a subtree below it is
// logged and only that subtree is skipped. An error from visit stops the walk.
func (w *Walker) Walk(ctx context.Context, root string, visit func(Item) error) error {
	root = remote.Normalize(root)
	entries, err := w.Session.List(ctx, w.Share, root)
	if err != nil {
		return err
	}
	return w.walkEntries(ctx, root, remote.Depth(root), entries, visit)
}

func (w *Walker) walk(ctx context.Context, dir string, base int, visit func(Item) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := w.Session.List(ctx, w.Share, dir)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger().Printf("Error listing items in %s: %v", dir, err)
		return nil
	}
	return w.walkEntries(ctx, dir, base, entries, visit)
}

func (w *Walker) walkEntries(ctx context.Context, dir string, base int, entries []remote.Entry, visit func(Item) error) error {
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		p := remote.Join(dir, e.Name)
		if w.excluded(p) {
			continue
		}
		if e.IsDir {
			if w.ItemType.folders() {
				if err := visit(Item{Path: p, Entry: e}); err != nil {
					return err
				}
			}
			if w.MaxDepth > 0 && remote.Depth(p)-base > w.MaxDepth {
				continue
			}
			if err := w.walk(ctx, p, base, visit); err != nil {
				return err
			}
			continue
		}
		if w.ItemType.files() {
			if err := visit(Item{Path: p, Entry: e}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Traverse returns the paths under root selected by itemType, bounded by
// maxDepth (Unlimited for no bound).
func Traverse(ctx context.Context, sess remote.Session, share, root string, itemType ItemType, maxDepth int) ([]string, error) {
	w := &Walker{Session: sess, Share: share, ItemType: itemType, MaxDepth: maxDepth}
	var out []string
	err := w.Walk(ctx, root, func(it Item) error {
		out = append(out, it.Path)
		return nil
	})
	return out, err
}
