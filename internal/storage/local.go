package storage

import (
	"context"
	"log"
	"os"
	"path/filepath"
)

// Local serves logs from a mounted directory.
type Local struct {
	dir string
}

// NewLocal creates a feed over dir.
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) LogDir() string { return l.dir }

// Version checks that the directory is readable.
func (l *Local) Version(ctx context.Context) (string, error) {
	if _, err := os.Stat(l.dir); err != nil {
		return "", &TransportError{Op: "version", Err: err}
	}
	return "local", nil
}

func (l *Local) List(ctx context.Context, dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}

	var files []File
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		files = append(files, File{
			Handle:    filepath.Join(dir, entry.Name()),
			Name:      entry.Name(),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}
	return files, nil
}

func (l *Local) Download(ctx context.Context, handle string) ([]byte, error) {
	data, err := os.ReadFile(handle)
	if err != nil {
		return nil, &TransportError{Op: "download", Err: err}
	}
	log.Printf("[storage] Read %s (%d bytes)", handle, len(data))
	return data, nil
}
