// Package dedup finds files with identical content in an index and deletes
// all but one copy of each.
package dedup

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"nas-tidy/internal/index"
	"nas-tidy/internal/remote"
)

// Policy picks the survivor of a duplicate group.
type Policy int

const (
	// OlderWins keeps the copy with the earliest creation time.
	OlderWins Policy = iota
	// NewerWins keeps the copy with the latest creation time.
	NewerWins
)

func (p Policy) String() string {
	if p == NewerWins {
		return "newer"
	}
	return "older"
}

// ParsePolicy accepts "older"/"olderWins" and "newer"/"newerWins".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "older", "olderwins", "oldest":
		return OlderWins, nil
	case "newer", "newerwins", "newest":
		return NewerWins, nil
	}
	return OlderWins, fmt.Errorf("unknown duplicate policy %q (want older or newer)", s)
}

// Group is every record sharing one hash. A group always has two or more
// members.
type Group struct {
	Hash    string
	Records []index.FileRecord
}

// Wasted is the space the extra copies take.
func (g Group) Wasted() int64 {
	var n int64
	for _, r := range g.Records[1:] {
		n += r.Size
	}
	return n
}

// FindDuplicates groups idx by hash. Groups and their members keep the
// order in which they first appear in idx.
func FindDuplicates(idx index.Index) []Group {
	pos := make(map[string]int)
	var groups []Group
	for _, r := range idx {
		i, ok := pos[r.Hash]
		if !ok {
			i = len(groups)
			pos[r.Hash] = i
			groups = append(groups, Group{Hash: r.Hash})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g.Records) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Order returns the group's records survivor first. Equal timestamps keep
// their index order.
func Order(g Group, policy Policy) []index.FileRecord {
	recs := make([]index.FileRecord, len(g.Records))
	copy(recs, g.Records)
	sort.SliceStable(recs, func(i, j int) bool {
		if policy == NewerWins {
			return recs[i].CreationTime.After(recs[j].CreationTime)
		}
		return recs[i].CreationTime.Before(recs[j].CreationTime)
	})
	return recs
}

// Resolver deletes the losing copies of duplicate groups through a session.
type Resolver struct {
	Session remote.Session
	Share   string
	Logger  *log.Logger
	// OnDelete, when set, is called after each successful delete.
	OnDelete func(r index.FileRecord)
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Result reports one group's outcome.
type Result struct {
	Survivor index.FileRecord
	Deleted  []index.FileRecord
	Failed   []index.FileRecord
}

// Resolve deletes every member of g except the survivor chosen by policy.
// A failed delete is logged and the record stays in the index; only
// successfully deleted records are returned in Deleted.
func (r *Resolver) Resolve(ctx context.Context, g Group, policy Policy) (Result, error) {
	recs := Order(g, policy)
	res := Result{Survivor: recs[0]}
	for _, rec := range recs[1:] {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.Session.Delete(ctx, r.Share, rec.Path); err != nil {
			r.logger().Printf("Failed to delete %s: %v", rec.Path, err)
			res.Failed = append(res.Failed, rec)
			continue
		}
		r.logger().Printf("Deleted file: %s", rec.Path)
		res.Deleted = append(res.Deleted, rec)
		if r.OnDelete != nil {
			r.OnDelete(rec)
		}
	}
	return res, nil
}
