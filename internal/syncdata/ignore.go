package syncdata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	ig "github.com/sabhiram/go-gitignore"
)

// IgnoreFile holds gitignore-style patterns for local files that a push
// leaves alone. It is read from the folder being pushed and never uploaded.
const IgnoreFile = ".nas-tidyignore"

// ignoreMatcher matches local file names against the folder's IgnoreFile.
type ignoreMatcher struct {
	m *ig.GitIgnore
}

// loadIgnore reads dir/IgnoreFile. A missing file matches nothing.
func loadIgnore(dir string) (*ignoreMatcher, error) {
	data, err := os.ReadFile(filepath.Join(dir, IgnoreFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ignoreMatcher{}, nil
		}
		return nil, err
	}
	var lines []string
	for _, ln := range strings.Split(string(data), "\n") {
		l := strings.TrimSpace(ln)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return &ignoreMatcher{}, nil
	}
	return &ignoreMatcher{m: ig.CompileIgnoreLines(lines...)}, nil
}

func (i *ignoreMatcher) Match(name string) bool {
	if strings.EqualFold(name, IgnoreFile) {
		return true
	}
	return i.m != nil && i.m.MatchesPath(name)
}
