// Package artifact stores uploaded book files under collision-resistant
// names and serves them back by name.
package artifact

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Open for unknown or invalid names.
	ErrNotFound = errors.New("artifact: not found")
	// ErrExists is returned by Put when the name is already taken.
	ErrExists = errors.New("artifact: already exists")
)

// Blob is an opened stored file.
type Blob struct {
	Content     io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store is where uploaded files live.
type Store interface {
	// Put writes r under name and returns the bytes written.
	Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, name string) (*Blob, error)
	Ping(ctx context.Context) error
}

// StoredName builds "<unixMillis>-<base name>" for an upload received at t.
// Directory components of the client filename are dropped.
func StoredName(t time.Time, original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "upload"
	}
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + base
}

// ValidName reports whether name can address a stored file: a single
// path element that is not "." or "..".
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
