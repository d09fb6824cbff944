package server

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"blind-book-reader/internal/artifact"
	"blind-book-reader/internal/catalog"
	"blind-book-reader/internal/explain"
)

// fixedNow is the upload clock used by tests.
var fixedNow = time.UnixMilli(1700000000000)

type testEnv struct {
	srv       *Server
	catalog   *catalog.JSONStore
	artifacts *artifact.DiskStore
	dir       string
}

type envOption func(*Config)

func withExplainer(e explain.Explainer) envOption {
	return func(c *Config) { c.Explainer = e }
}

func withCatalog(s catalog.Store) envOption {
	return func(c *Config) { c.Catalog = s }
}

func withArtifacts(s artifact.Store) envOption {
	return func(c *Config) { c.Artifacts = s }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cat, err := catalog.NewJSONStore(filepath.Join(dir, "books.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	arts, err := artifact.NewDiskStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	cfg := Config{
		Addr:       "127.0.0.1:0",
		Catalog:    cat,
		Artifacts:  arts,
		Explainer:  explain.Func(func(context.Context, string) (string, error) { return "", errors.New("not configured") }),
		Logger:     zaptest.NewLogger(t),
		CORSOrigin: "*",
		Version:    "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := New(cfg)
	srv.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, catalog: cat, artifacts: arts, dir: dir}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

// multipartUpload builds a POST /upload request. fileFirst controls
// whether the file part precedes the text fields.
func multipartUpload(t *testing.T, title, author, filename string, content []byte, fileFirst bool) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	writeFields := func() {
		require.NoError(t, mw.WriteField("title", title))
		require.NoError(t, mw.WriteField("author", author))
	}
	writeFile := func() {
		if filename == "" {
			return
		}
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}

	if fileFirst {
		writeFile()
		writeFields()
	} else {
		writeFields()
		writeFile()
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type failingCatalog struct {
	err error
}

func (f failingCatalog) Append(context.Context, catalog.Record) error   { return f.err }
func (f failingCatalog) List(context.Context) ([]catalog.Record, error) { return nil, f.err }
func (f failingCatalog) Close() error                                   { return nil }

type failingArtifacts struct {
	artifact.Store
	pingErr error
	openErr error
}

func (f failingArtifacts) Ping(context.Context) error { return f.pingErr }

func (f failingArtifacts) Open(ctx context.Context, name string) (*artifact.Blob, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.Store.Open(ctx, name)
}
