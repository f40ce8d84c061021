// Package cleaner removes files from a share by size, after confirmation.
package cleaner

import (
	"context"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"nas-tidy/internal/confirm"
	"nas-tidy/internal/index"
	"nas-tidy/internal/remote"
)

// AtMost returns the records of idx no larger than limit bytes.
func AtMost(idx index.Index, limit int64) index.Index {
	var out index.Index
	for _, r := range idx {
		if r.Size <= limit {
			out = append(out, r)
		}
	}
	return out
}

// ListSmallerThan returns the records strictly smaller than limit bytes.
// It is display only. A file of exactly limit bytes is not listed here but
// is deleted by DeleteSmallerThan.
func ListSmallerThan(idx index.Index, limit int64) index.Index {
	var out index.Index
	for _, r := range idx {
		if r.Size < limit {
			out = append(out, r)
		}
	}
	return out
}

// Cleaner deletes confirmed records through a session.
type Cleaner struct {
	Session   remote.Session
	Share     string
	Confirmer confirm.Confirmer
	Logger    *log.Logger
	OnDelete  func(r index.FileRecord)
}

func (c *Cleaner) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// Outcome is what a cleaning pass did.
type Outcome struct {
	Candidates index.Index
	Confirmed  bool
	Deleted    []index.FileRecord
	Failed     []index.FileRecord
}

// DeleteSmallerThan deletes every file of at most limit bytes once the
// confirmer approves. It returns idx minus the files actually deleted.
func (c *Cleaner) DeleteSmallerThan(ctx context.Context, idx index.Index, limit int64) (index.Index, Outcome, error) {
	title := fmt.Sprintf("Files of %s or less on %s:", humanize.IBytes(uint64(limit)), c.Share)
	return c.DeleteRecords(ctx, idx, title, AtMost(idx, limit))
}

// DeleteRecords asks to delete candidates and, when approved, deletes them
// one by one. A failed delete is logged and its record kept.
func (c *Cleaner) DeleteRecords(ctx context.Context, idx index.Index, title string, candidates index.Index) (index.Index, Outcome, error) {
	out := Outcome{Candidates: candidates}
	if len(candidates) == 0 {
		return idx, out, nil
	}
	p := confirm.Prompt{Title: title}
	for _, r := range candidates {
		p.Items = append(p.Items, confirm.Item{Path: r.Path, Size: r.Size, Date: r.CreationTime})
	}
	ok, err := c.Confirmer.Confirm(ctx, p)
	if err != nil {
		return idx, out, err
	}
	if !ok {
		c.logger().Printf("Deletion of %d file(s) declined", len(candidates))
		return idx, out, nil
	}
	out.Confirmed = true
	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			return idx.Without(out.Deleted), out, err
		}
		if err := c.Session.Delete(ctx, c.Share, r.Path); err != nil {
			c.logger().Printf("Failed to delete %s: %v", r.Path, err)
			out.Failed = append(out.Failed, r)
			continue
		}
		c.logger().Printf("Deleted file: %s", r.Path)
		out.Deleted = append(out.Deleted, r)
		if c.OnDelete != nil {
			c.OnDelete(r)
		}
	}
	return idx.Without(out.Deleted), out, nil
}
