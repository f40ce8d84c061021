// Package index keeps the content index of a file share: one record per
// file with its content hash, creation time and size.
package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nas-tidy/internal/remote"
)

// FileRecord is the last known state of one file on the share.
type FileRecord struct {
	Path         string    `json:"path"`
	Hash         string    `json:"hash"`
	CreationTime time.Time `json:"creation_time"`
	Size         int64     `json:"size"`
}

// UnmarshalJSON also accepts the legacy layout written by the old Python
// tool, where the timestamp lives in "creation_date" as epoch seconds or as
// a "2006-01-02 15:04:05" string.
func (r *FileRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path         string          `json:"path"`
		Hash         string          `json:"hash"`
		CreationTime json.RawMessage `json:"creation_time"`
		CreationDate json.RawMessage `json:"creation_date"`
		Size         int64           `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts := raw.CreationTime
	if len(ts) == 0 {
		ts = raw.CreationDate
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return fmt.Errorf("record %s: %w", raw.Path, err)
	}
	if raw.Size < 0 {
		return fmt.Errorf("record %s: negative size %d", raw.Path, raw.Size)
	}
	*r = FileRecord{Path: raw.Path, Hash: strings.ToLower(raw.Hash), CreationTime: t, Size: raw.Size}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		sec := int64(epoch)
		return time.Unix(sec, int64((epoch-float64(sec))*1e9)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp %s", raw)
	}
	return ParseTime(s)
}

// FormatTime is the string form timestamps take in persisted indexes.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ParseTime reads a persisted timestamp.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}

// Index is an ordered list of file records.
type Index []FileRecord

// ByPath maps each path to its first record.
func (idx Index) ByPath() map[string]FileRecord {
	m := make(map[string]FileRecord, len(idx))
	for _, r := range idx {
		if _, ok := m[r.Path]; !ok {
			m[r.Path] = r
		}
	}
	return m
}

// Without returns a copy of idx minus every record whose path appears in
// removed. The original order is kept.
func (idx Index) Without(removed []FileRecord) Index {
	if len(removed) == 0 {
		return idx.Clone()
	}
	gone := make(map[string]struct{}, len(removed))
	for _, r := range removed {
		gone[r.Path] = struct{}{}
	}
	out := make(Index, 0, len(idx))
	for _, r := range idx {
		if _, ok := gone[r.Path]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (idx Index) Clone() Index {
	out := make(Index, len(idx))
	copy(out, idx)
	return out
}

// TotalSize sums the size of every record.
func (idx Index) TotalSize() int64 {
	var n int64
	for _, r := range idx {
		n += r.Size
	}
	return n
}

// InScope reports whether p is scope itself or lies below it.
func InScope(p, scope string) bool {
	p, scope = remote.Normalize(p), remote.Normalize(scope)
	if scope == "/" {
		return true
	}
	return p == scope || strings.HasPrefix(p, scope+"/")
}

// Merge replaces the part of prior that lies under scope with fresh,
// leaving records outside scope untouched.
func Merge(prior Index, scope string, fresh Index) Index {
	out := make(Index, 0, len(prior)+len(fresh))
	for _, r := range prior {
		if !InScope(r.Path, scope) {
			out = append(out, r)
		}
	}
	return append(out, fresh...)
}
