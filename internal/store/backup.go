package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// backupPrimary copies the current primary file into the backup
// directory before it is overwritten, then prunes the directory down to
// the configured bound, oldest first. A missing primary is a no-op.
func (r *Repository) backupPrimary() error {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrStorage, r.Path(), err)
	}
	dir := filepath.Join(r.dir, backupDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// Every name carries a zero-padded sequence so that backups taken
	// within the same second still sort lexically in creation order.
	ts := timeNow().Format("20060102-150405")
	var path string
	for i := 0; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("tasks-%s-%03d.json", ts, i))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return err
	}
	return r.pruneBackups()
}

func (r *Repository) pruneBackups() error {
	names, err := r.Backups()
	if err != nil {
		return err
	}
	for len(names) > r.backupCount {
		oldest := filepath.Join(r.dir, backupDirName, names[0])
		if err := os.Remove(oldest); err != nil {
			return fmt.Errorf("%w: prune %s: %v", ErrStorage, oldest, err)
		}
		names = names[1:]
	}
	return nil
}

// Backups lists backup file names, oldest first. The stamped names sort
// lexically in chronological order.
func (r *Repository) Backups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.dir, backupDirName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
