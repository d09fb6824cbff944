package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// exerciseStore checks the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	want := []Record{
		{Title: "Moby Dick", Author: "Melville", File: "1700000000000-whale.pdf"},
		{Title: "", Author: "", File: "1700000000001-blank.pdf"},
		{Title: "Moby Dick", Author: "Melville", File: "1700000000002-whale.pdf"},
	}
	for _, rec := range want {
		require.NoError(t, s.Append(ctx, rec))
	}

	got, err = s.List(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	again, err := s.List(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("second List differs (-first +second):\n%s", diff)
	}

	if p, ok := s.(Pinger); ok {
		require.NoError(t, p.Ping(ctx))
	}
}

// exerciseConcurrentAppends checks no append is lost under contention.
func exerciseConcurrentAppends(t *testing.T, s Store, n int) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Append(ctx, Record{
				Title:  fmt.Sprintf("book-%02d", i),
				Author: "author",
				File:   fmt.Sprintf("%d-book.pdf", i),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, n)

	titles := make([]string, 0, n)
	for _, rec := range got {
		titles = append(titles, rec.Title)
	}
	sort.Strings(titles)
	for i, title := range titles {
		require.Equal(t, fmt.Sprintf("book-%02d", i), title)
	}
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		backend string
		path    string
	}{
		{"", filepath.Join(dir, "default", "books.json")},
		{BackendJSON, filepath.Join(dir, "json", "books.json")},
		{BackendSQLite, filepath.Join(dir, "sqlite", "books.db")},
		{BackendBadger, filepath.Join(dir, "badger")},
	}

	for _, tt := range tests {
		t.Run("backend="+tt.backend, func(t *testing.T) {
			s, err := Open(ctx, Options{Backend: tt.backend, Path: tt.path, Logger: zaptest.NewLogger(t)})
			require.NoError(t, err)
			defer func() { require.NoError(t, s.Close()) }()

			exerciseStore(t, s)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "cassandra"})
	require.Error(t, err)
}

func TestOpen_PostgresRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendPostgres})
	require.Error(t, err)
}

func TestSQLiteStore_ConcurrentAppends(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseConcurrentAppends(t, s, 25)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "books.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, Record{Title: "T", Author: "A", File: "1-t.pdf"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []Record{{Title: "T", Author: "A", File: "1-t.pdf"}}, got)
}

func TestBadgerStore_ConcurrentAppendsAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	exerciseConcurrentAppends(t, s, 25)
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(ctx, Record{Title: "last", Author: "A", File: "99-last.pdf"}))
	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 26)
	require.Equal(t, "last", got[len(got)-1].Title)
}
