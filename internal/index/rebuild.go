package index

import (
	"context"
	"log"

	"nas-tidy/internal/remote"
)

// Builder recomputes the index of one share subtree.
type Builder struct {
	Session remote.Session
	Share   string
	Hasher  Hasher
	Exclude []string
	Logger  *log.Logger
	// OnFile, when set, is called for every file seen; hashed is false when
	// the prior record was carried forward.
	OnFile func(path string, hashed bool)
}

func (b *Builder) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.Default()
}

// Rebuild walks root and returns a fresh index of its files.
//
// A file whose exact path has a record in prior is carried forward as is,
// without reading it again; content changed in place under a stable path
// is therefore not noticed. Other files are stat'ed, read and hashed.
// Files that cannot be read are logged and left out. Paths missing from
// the share are dropped.
//
// prior is not modified. The result is only returned once the walk is
// complete; on error the caller keeps its current index.
func (b *Builder) Rebuild(ctx context.Context, root string, prior Index) (Index, error) {
	known := prior.ByPath()
	hasher := b.Hasher
	if hasher == nil {
		hasher = XXHash{}
	}
	w := &Walker{
		Session:  b.Session,
		Share:    b.Share,
		ItemType: Both,
		Exclude:  b.Exclude,
		Logger:   b.Logger,
	}

	fresh := Index{}
	err := w.Walk(ctx, root, func(it Item) error {
		if it.Entry.IsDir {
			return nil
		}
		if rec, ok := known[it.Path]; ok {
			b.logger().Printf("Skipping file %s", it.Path)
			fresh = append(fresh, rec)
			b.notify(it.Path, false)
			return nil
		}
		rec, err := b.hashFile(ctx, hasher, it.Path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger().Printf("Skipping unreadable file %s: %v", it.Path, err)
			return nil
		}
		b.logger().Printf("Processing file %s; Hash %s", rec.Path, rec.Hash)
		fresh = append(fresh, rec)
		b.notify(it.Path, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (b *Builder) notify(p string, hashed bool) {
	if b.OnFile != nil {
		b.OnFile(p, hashed)
	}
}

// hashFile computes a record for p. Size is counted from the bytes read so
// it always matches the hash.
func (b *Builder) hashFile(ctx context.Context, hasher Hasher, p string) (FileRecord, error) {
	attrs, err := b.Session.GetAttributes(ctx, b.Share, p)
	if err != nil {
		return FileRecord{}, err
	}
	d := hasher.New()
	cw := &countingWriter{w: d}
	if err := b.Session.Retrieve(ctx, b.Share, p, cw); err != nil {
		return FileRecord{}, err
	}
	return FileRecord{
		Path:         p,
		Hash:         d.Hex(),
		CreationTime: attrs.CreateTime,
		Size:         cw.n,
	}, nil
}
