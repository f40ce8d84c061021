package dedup

import (
	"path"
	"strings"

	"nas-tidy/internal/index"
)

// DefaultMarker tags files produced by an upscaler.
const DefaultMarker = "_upscaled"

// Originals lists, for every record whose file name contains marker, the
// record of the same path with the marker removed, when the index has one.
// Each original is listed once, in index order.
func Originals(idx index.Index, marker string) []index.FileRecord {
	if marker == "" {
		marker = DefaultMarker
	}
	byPath := idx.ByPath()
	wanted := make(map[string]bool)
	for _, r := range idx {
		dir, name := path.Split(r.Path)
		if !strings.Contains(name, marker) {
			continue
		}
		orig := dir + strings.Replace(name, marker, "", 1)
		if orig == r.Path {
			continue
		}
		if _, ok := byPath[orig]; ok {
			wanted[orig] = true
		}
	}
	var out []index.FileRecord
	for _, r := range idx {
		if wanted[r.Path] {
			out = append(out, r)
			delete(wanted, r.Path)
		}
	}
	return out
}
