package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore keeps files in one flat directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("artifact: empty upload dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (d *DiskStore) Dir() string { return d.dir }

func (d *DiskStore) Put(ctx context.Context, name string, r io.Reader, _ string) (int64, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("artifact: invalid name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p := filepath.Join(d.dir, name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrExists
		}
		return 0, fmt.Errorf("artifact: create: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return n, fmt.Errorf("artifact: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return n, fmt.Errorf("artifact: close: %w", err)
	}
	return n, nil
}

func (d *DiskStore) Open(_ context.Context, name string) (*Blob, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("artifact: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("artifact: stat: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}

	return &Blob{Content: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (d *DiskStore) Ping(context.Context) error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact: %s is not a directory", d.dir)
	}
	return nil
}
