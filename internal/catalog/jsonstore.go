package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// JSONStore keeps the catalog as a single indented JSON array on disk.
//
// Writers are serialised twice: a mutex for goroutines in this process and
// an advisory lock file for other processes sharing the document. The
// document is replaced with a rename so readers never observe a partial write.
type JSONStore struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

// NewJSONStore returns a store for the document at path. The parent
// directory is created if needed; the document itself is created on the
// first Append.
func NewJSONStore(path string, logger *zap.Logger) (*JSONStore, error) {
	if path == "" {
		return nil, errors.New("catalog: empty json path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: create dir: %w", err)
	}
	return &JSONStore{
		path:   path,
		logger: logger,
		lock:   flock.New(path + ".lock"),
		now:    time.Now,
	}, nil
}

// Path returns the catalog document location.
func (s *JSONStore) Path() string { return s.path }

// List returns every record. A missing document yields an empty list; an
// undecodable one yields ErrCorrupt.
func (s *JSONStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("catalog: shared lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.readLocked()
}

// Append adds rec to the end of the catalog.
//
// A corrupt document is moved aside to <path>.corrupt-<unixMillis> and the
// append starts from an empty catalog, so the upload still succeeds and the
// old bytes survive for manual recovery.
func (s *JSONStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("catalog: exclusive lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	records, err := s.readLocked()
	if errors.Is(err, ErrCorrupt) {
		quarantined, qerr := s.quarantineLocked()
		if qerr != nil {
			return qerr
		}
		s.logger.Warn("catalog document malformed, moved aside",
			zap.String("path", s.path),
			zap.String("quarantine", quarantined),
			zap.Error(err))
		records = nil
	} else if err != nil {
		return err
	}

	records = append(records, rec)
	return s.writeLocked(records)
}

// Close is a no-op; the lock file is released after each operation.
func (s *JSONStore) Close() error { return nil }

// Ping reports whether the catalog directory is reachable.
func (s *JSONStore) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *JSONStore) readLocked() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("catalog: read: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *JSONStore) writeLocked(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("catalog: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("catalog: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("catalog: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("catalog: replace: %w", err)
	}
	return nil
}

func (s *JSONStore) quarantineLocked() (string, error) {
	dst := s.path + ".corrupt-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("catalog: quarantine: %w", err)
	}
	return dst, nil
}
