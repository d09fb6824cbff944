package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"blind-book-reader/internal/artifact"
)

// pdfHandler handles GET /pdf/{name}, serving stored files with
// http.ServeContent so ranges and conditional requests work.
func (s *Server) pdfHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !artifact.ValidName(name) {
			http.NotFound(w, r)
			return
		}

		blob, err := s.artifacts.Open(r.Context(), name)
		if err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.metrics.RecordDownloadError()
			s.logger.Error("open stored file failed",
				zap.String("rid", RequestIDFromContext(r.Context())),
				zap.String("file", name),
				zap.Error(err))
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		defer func() { _ = blob.Content.Close() }()

		// Empty Content-Type lets ServeContent infer it from the extension.
		if blob.ContentType != "" && blob.ContentType != "application/octet-stream" {
			w.Header().Set("Content-Type", blob.ContentType)
		}

		s.metrics.RecordDownload(blob.Size)
		http.ServeContent(w, r, name, blob.ModTime, blob.Content)
	})
}
