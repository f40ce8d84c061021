// Package catalog owns one session, one index store and the in-memory index
// for the duration of a run. Every operation holds the catalog lock, and
// every change to the index is persisted before the operation returns.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"

	"nas-tidy/internal/cleaner"
	"nas-tidy/internal/confirm"
	"nas-tidy/internal/dedup"
	"nas-tidy/internal/events"
	"nas-tidy/internal/failure"
	"nas-tidy/internal/index"
	"nas-tidy/internal/remote"
	"nas-tidy/internal/syncdata"
)

type Options struct {
	Session   remote.Session
	Store     index.Store
	Share     string
	Hasher    index.Hasher
	Exclude   []string
	Confirmer confirm.Confirmer
	// Bus receives index and file events; nil uses events.GlobalBus.
	Bus    EventBus.Bus
	Logger *log.Logger
	// OnFile reports rebuild progress.
	OnFile func(path string, hashed bool)
	// OnPushFile reports each local file a push processes.
	OnPushFile func(name string)
}

type Catalog struct {
	mu sync.Mutex

	sess      remote.Session
	store     index.Store
	share     string
	hasher    index.Hasher
	exclude   []string
	confirmer confirm.Confirmer
	bus       EventBus.Bus
	logger    *log.Logger
	onFile    func(string, bool)
	onPush    func(string)

	idx       index.Index
	loaded    bool
	connected bool
}

func New(opts Options) *Catalog {
	c := &Catalog{
		sess:      opts.Session,
		store:     opts.Store,
		share:     opts.Share,
		hasher:    opts.Hasher,
		exclude:   opts.Exclude,
		confirmer: opts.Confirmer,
		bus:       opts.Bus,
		logger:    opts.Logger,
		onFile:    opts.OnFile,
		onPush:    opts.OnPushFile,
		idx:       index.Index{},
	}
	if c.hasher == nil {
		c.hasher = index.XXHash{}
	}
	if c.bus == nil {
		c.bus = events.GlobalBus
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.confirmer == nil {
		c.confirmer = confirm.NewInteractive()
	}
	return c
}

func (c *Catalog) Share() string { return c.share }

// Open connects the session and loads the persisted index. It reports
// whether an index was found; when none was, the catalog starts empty.
func (c *Catalog) Open(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		if err := c.connect(ctx); err != nil {
			return false, err
		}
		c.connected = true
	}
	idx, ok := c.store.Load()
	if ok {
		c.idx = idx
		c.logger.Printf("Loaded %d record(s) from %s", len(idx), c.store.Location())
	} else {
		c.idx = index.Index{}
	}
	c.loaded = ok
	return ok, nil
}

// reconnectDelay is the pause before the single retry of a failed connect.
var reconnectDelay = 2 * time.Second

// connect retries once when the first attempt fails with a connection
// error, which covers a NAS waking from sleep.
func (c *Catalog) connect(ctx context.Context) error {
	err := c.sess.Connect(ctx)
	if err == nil || !failure.Retryable(err) {
		return err
	}
	c.logger.Printf("Connect failed, retrying in %s: %v", reconnectDelay, err)
	select {
	case <-time.After(reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.sess.Connect(ctx)
}

// Close disconnects the session and closes the store.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if c.connected {
		if err := c.sess.Disconnect(); err != nil {
			firstErr = err
		}
		c.connected = false
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Index returns a copy of the current index.
func (c *Catalog) Index() index.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.Clone()
}

// persist saves the index. A failure is logged and returned; the in-memory
// index stays authoritative either way.
func (c *Catalog) persist() error {
	if err := c.store.Save(c.idx); err != nil {
		c.logger.Printf("Failed to save index to %s: %v", c.store.Location(), err)
		return err
	}
	return nil
}

func (c *Catalog) builder() *index.Builder {
	return &index.Builder{
		Session: c.sess,
		Share:   c.share,
		Hasher:  c.hasher,
		Exclude: c.exclude,
		Logger:  c.logger,
		OnFile:  c.onFile,
	}
}

// Rebuild recomputes the index for root and replaces the whole index with
// the result. Known paths keep their records unless rehash is set. On error
// the current index is kept.
func (c *Catalog) Rebuild(ctx context.Context, root string, rehash bool) (index.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuild(ctx, root, rehash)
}

func (c *Catalog) rebuild(ctx context.Context, root string, rehash bool) (index.Index, error) {
	prior := c.idx
	if rehash {
		prior = nil
	}
	c.logger.Printf("Updating %s...", c.store.Location())
	fresh, err := c.builder().Rebuild(ctx, root, prior)
	if err != nil {
		return c.idx.Clone(), err
	}
	c.idx = fresh
	c.logger.Printf("Updated %s with %d entries", c.store.Location(), len(fresh))
	c.bus.Publish(events.EventIndexRebuilt, c.share, len(fresh))
	return fresh.Clone(), c.persist()
}

// RebuildScope recomputes only the records under scope and keeps the rest.
func (c *Catalog) RebuildScope(ctx context.Context, scope string) (index.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildScope(ctx, scope)
}

func (c *Catalog) rebuildScope(ctx context.Context, scope string) (index.Index, error) {
	fresh, err := c.builder().Rebuild(ctx, scope, c.idx)
	if err != nil {
		return c.idx.Clone(), err
	}
	c.idx = index.Merge(c.idx, scope, fresh)
	c.bus.Publish(events.EventIndexRebuilt, c.share, len(c.idx))
	return c.idx.Clone(), c.persist()
}

// Duplicates groups the current index by hash.
func (c *Catalog) Duplicates() []dedup.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dedup.FindDuplicates(c.idx)
}

func (c *Catalog) publishDeleted(reason string) func(index.FileRecord) {
	return func(r index.FileRecord) {
		c.bus.Publish(events.EventFileDeleted, c.share, r.Path, r.Size, reason)
	}
}

// ResolveDuplicates keeps one copy per duplicate group according to policy
// and, once the confirmer approves the list, deletes the others. The index
// is persisted after every group so a failure part way leaves it consistent
// with the share. Declining returns no results and no error.
func (c *Catalog) ResolveDuplicates(ctx context.Context, policy dedup.Policy) ([]dedup.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveDuplicates(ctx, policy)
}

func (c *Catalog) resolveDuplicates(ctx context.Context, policy dedup.Policy) ([]dedup.Result, error) {
	groups := dedup.FindDuplicates(c.idx)
	if len(groups) == 0 {
		return nil, nil
	}
	p := confirm.Prompt{Title: fmt.Sprintf("Duplicate copies on %s to delete (keeping the %s one):", c.share, policy)}
	for _, g := range groups {
		for _, rec := range dedup.Order(g, policy)[1:] {
			p.Items = append(p.Items, confirm.Item{Path: rec.Path, Size: rec.Size, Date: rec.CreationTime})
		}
	}
	ok, err := c.confirmer.Confirm(ctx, p)
	if err != nil || !ok {
		return nil, err
	}

	r := &dedup.Resolver{Session: c.sess, Share: c.share, Logger: c.logger, OnDelete: c.publishDeleted("duplicate")}
	var (
		results []dedup.Result
		saveErr error
	)
	for _, g := range groups {
		res, err := r.Resolve(ctx, g, policy)
		if len(res.Deleted) > 0 {
			c.idx = c.idx.Without(res.Deleted)
			if perr := c.persist(); perr != nil {
				saveErr = perr
			}
			c.logger.Printf("Removed %d entries from index", len(res.Deleted))
		}
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, saveErr
}

// DeleteSmall offers every file of at most limit bytes for deletion.
func (c *Catalog) DeleteSmall(ctx context.Context, limit int64) (cleaner.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteSmall(ctx, limit)
}

func (c *Catalog) deleteSmall(ctx context.Context, limit int64) (cleaner.Outcome, error) {
	cl := c.cleaner("small")
	idx, out, err := cl.DeleteSmallerThan(ctx, c.idx, limit)
	return out, c.apply(idx, out, err)
}

// ListSmall returns the files strictly smaller than limit bytes.
func (c *Catalog) ListSmall(limit int64) index.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cleaner.ListSmallerThan(c.idx, limit)
}

// RemoveOriginals offers the originals of marker-tagged files for deletion.
func (c *Catalog) RemoveOriginals(ctx context.Context, marker string) (cleaner.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if marker == "" {
		marker = dedup.DefaultMarker
	}
	cands := index.Index(dedup.Originals(c.idx, marker))
	title := fmt.Sprintf("Originals superseded by %s copies on %s:", marker, c.share)
	idx, out, err := c.cleaner("original").DeleteRecords(ctx, c.idx, title, cands)
	return out, c.apply(idx, out, err)
}

func (c *Catalog) cleaner(reason string) *cleaner.Cleaner {
	return &cleaner.Cleaner{
		Session:   c.sess,
		Share:     c.share,
		Confirmer: c.confirmer,
		Logger:    c.logger,
		OnDelete:  c.publishDeleted(reason),
	}
}

// apply swaps in idx when anything was deleted and persists it. err from
// the operation wins over a save error.
func (c *Catalog) apply(idx index.Index, out cleaner.Outcome, err error) error {
	if len(out.Deleted) == 0 {
		return err
	}
	c.idx = idx
	perr := c.persist()
	if err != nil {
		return err
	}
	return perr
}

// Push uploads a local folder into the catalog's share and then refreshes
// the index below the destination folder, also when nothing was uploaded,
// so files already present there get indexed.
func (c *Catalog) Push(ctx context.Context, opts syncdata.Options) (syncdata.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts.Share = c.share
	p := &syncdata.Pusher{
		Session: c.sess,
		Logger:  c.logger,
		OnFile:  c.onPush,
		OnUpload: func(path string) {
			c.bus.Publish(events.EventFileUploaded, c.share, path)
		},
	}
	rep, err := p.Push(ctx, opts)
	if err != nil {
		return rep, err
	}
	if _, err := c.rebuildScope(ctx, rep.Destination); err != nil {
		return rep, fmt.Errorf("uploaded %d file(s) but index refresh failed: %w", len(rep.Uploaded), err)
	}
	return rep, nil
}

// CleanupOptions drives the one-shot cleanup workflow.
type CleanupOptions struct {
	Root string
	// Rebuild forces a rebuild even when an index was loaded.
	Rebuild bool
	// MinSize > 0 offers files of at most MinSize bytes for deletion.
	MinSize int64
	// Duplicates nil skips duplicate resolution.
	Duplicates *dedup.Policy
	// Preview, when set, is shown every duplicate group before any is
	// resolved.
	Preview func([]dedup.Group)
}

type CleanupReport struct {
	Rebuilt    bool
	Records    int
	Small      cleaner.Outcome
	Duplicates []dedup.Result
}

// Cleanup connects, loads the index (rebuilding it when absent or asked),
// optionally removes small files, optionally resolves duplicates and
// disconnects.
func (c *Catalog) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupReport, error) {
	var rep CleanupReport
	found, err := c.Open(ctx)
	if err != nil {
		return rep, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			c.logger.Printf("Close failed: %v", cerr)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	var saveErr error
	keep := func(err error) error {
		if failure.Is(err, failure.Persistence) {
			if saveErr == nil {
				saveErr = err
			}
			return nil
		}
		return err
	}

	if !found || opts.Rebuild {
		if _, err := c.rebuild(ctx, opts.Root, false); keep(err) != nil {
			return rep, err
		}
		rep.Rebuilt = true
	}

	if opts.MinSize > 0 {
		out, err := c.deleteSmall(ctx, opts.MinSize)
		rep.Small = out
		if keep(err) != nil {
			return rep, err
		}
	}

	if opts.Duplicates != nil {
		groups := dedup.FindDuplicates(c.idx)
		if len(groups) > 0 && opts.Preview != nil {
			opts.Preview(groups)
		}
		results, err := c.resolveDuplicates(ctx, *opts.Duplicates)
		rep.Duplicates = results
		if keep(err) != nil {
			return rep, err
		}
	}
	rep.Records = len(c.idx)
	return rep, saveErr
}
