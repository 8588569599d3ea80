package ingest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/tphakala/medtel-go/internal/errors"
)

// listSpoolFiles returns the JSON files waiting in a spool directory. A
// missing spool directory means nothing to acquire, not an error.
func listSpoolFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("spool_dir", dir).
			Build()
	}
	sort.Strings(paths)
	return paths, nil
}
