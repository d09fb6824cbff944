// compression.go - gzip for JSON and text responses.
package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// compressionResponseWriter wraps http.ResponseWriter to compress responses.
type compressionResponseWriter struct {
	http.ResponseWriter
	writer io.Writer
}

// Write compresses data before writing to the underlying writer.
func (crw *compressionResponseWriter) Write(b []byte) (int, error) {
	return crw.writer.Write(b)
}

// WriteHeader drops any Content-Length a handler set for the plain body.
func (crw *compressionResponseWriter) WriteHeader(code int) {
	crw.Header().Del("Content-Length")
	crw.ResponseWriter.WriteHeader(code)
}

// CompressionMiddleware returns middleware that compresses HTTP responses.
func CompressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !acceptsCompression(r) || shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzip.NewWriter(w)
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.Header().Del("Content-Length") // Length will change with compression

		next.ServeHTTP(&compressionResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

// acceptsCompression checks if the client accepts gzip encoding.
func acceptsCompression(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// shouldSkipCompression skips bodies that are binary or carry no payload.
func shouldSkipCompression(r *http.Request) bool {
	path := r.URL.Path

	// Stored PDFs are binary and served with ranges.
	if strings.HasPrefix(path, "/pdf/") {
		return true
	}
	if r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return true
	}
	return false
}
