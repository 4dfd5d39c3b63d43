package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LogArchive stores raw flight logs under <data_path>/logs.
type LogArchive struct {
	Dir string
}

// NewLogArchive creates the archive for a data path.
func NewLogArchive(dataPath string) *LogArchive {
	return &LogArchive{Dir: LogsDir(dataPath)}
}

// Save writes a raw log and returns its path. An existing copy is replaced.
func (a *LogArchive) Save(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid log name %q", name)
	}
	path := filepath.Join(a.Dir, name)
	if err := WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", name, err)
	}
	return path, nil
}

// List returns the archived log names, newest name first.
func (a *LogArchive) List() ([]string, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Read returns an archived log.
func (a *LogArchive) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.Dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("log not found: %w", err)
	}
	return data, nil
}
