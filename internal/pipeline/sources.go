package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListSources returns the *.html files of dir in lexical order, skipping the
// first offset of them so that an aborted run can be resumed.
func ListSources(dir string, offset int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	if offset >= len(paths) {
		return nil, nil
	}
	return paths[offset:], nil
}
