// Package catalog persists the ordered list of uploaded book records.
//
// A Store has exactly two capabilities: append one record and list every
// record in append order. Several backends implement it; all of them
// serialise writers so concurrent uploads never lose an append.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Record is one catalog entry. File names the stored artifact.
type Record struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	File   string `json:"file"`
}

// ErrCorrupt is returned by List when the persisted catalog exists but
// cannot be decoded. A missing catalog is not an error.
var ErrCorrupt = errors.New("catalog: malformed catalog document")

// Store is the catalog persistence capability.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the JSON document, SQLite file or Badger directory.
	Path string
	// DatabaseURL is used by the postgres backend.
	DatabaseURL string
	Logger      *zap.Logger
}

// Open constructs the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendJSON, "":
		return NewJSONStore(opts.Path, opts.Logger)
	case BackendSQLite:
		return OpenSQLite(ctx, opts.Path)
	case BackendBadger:
		return OpenBadger(opts.Path)
	case BackendPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("catalog: unknown backend %q", opts.Backend)
	}
}
