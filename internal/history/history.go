// Package history keeps an audit log of files deleted from shares.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const HistoryDir = ".nas-tidy"
const HistoryFile = "history.json"

// MaxEntries caps the log; the oldest entries are dropped first.
const MaxEntries = 10000

type HistoryEntry struct {
	Time   time.Time `json:"time"`
	Share  string    `json:"share"`
	Path   string    `json:"path"`
	Size   int64     `json:"size"`
	Reason string    `json:"reason,omitempty"`
}

type History struct {
	Entries []HistoryEntry `json:"entries"`
}

var mu sync.Mutex

func GetHistoryDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HistoryDir)
}

func GetHistoryPath() string {
	return filepath.Join(GetHistoryDir(), HistoryFile)
}

func LoadHistory() (*History, error) {
	path := GetHistoryPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &History{Entries: []HistoryEntry{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func SaveHistory(h *History) error {
	dir := GetHistoryDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(GetHistoryPath(), data, 0644)
}

// Record appends one deletion.
func Record(share, path string, size int64, reason string) error {
	mu.Lock()
	defer mu.Unlock()
	h, err := LoadHistory()
	if err != nil {
		return err
	}
	h.Entries = append(h.Entries, HistoryEntry{
		Time:   time.Now(),
		Share:  share,
		Path:   path,
		Size:   size,
		Reason: reason,
	})
	if over := len(h.Entries) - MaxEntries; over > 0 {
		h.Entries = h.Entries[over:]
	}
	return SaveHistory(h)
}

// Recent returns up to n entries whose path contains query, newest first.
// n <= 0 returns all matches.
func Recent(query string, n int) []HistoryEntry {
	h, err := LoadHistory()
	if err != nil {
		return []HistoryEntry{}
	}
	q := strings.ToLower(query)
	var result []HistoryEntry
	// entries are appended in time order
	for i := len(h.Entries) - 1; i >= 0; i-- {
		e := h.Entries[i]
		if q == "" || strings.Contains(strings.ToLower(e.Path), q) {
			result = append(result, e)
		}
		if n > 0 && len(result) == n {
			break
		}
	}
	return result
}
