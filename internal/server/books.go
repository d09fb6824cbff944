package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"blind-book-reader/internal/catalog"
)

// booksHandler handles GET /books. Listing is fail-soft: any catalog
// failure is logged and answered with an empty array and status 200.
func (s *Server) booksHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records, err := s.catalog.List(r.Context())
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			if errors.Is(err, catalog.ErrCorrupt) {
				s.metrics.RecordCatalogCorrupt()
				s.logger.Warn("catalog malformed, serving empty list", zap.String("rid", rid), zap.Error(err))
			} else {
				s.logger.Error("catalog list failed", zap.String("rid", rid), zap.Error(err))
			}
			records = nil
		}
		if records == nil {
			records = []catalog.Record{}
		}

		s.metrics.RecordListing()
		writeJSON(w, http.StatusOK, records)
	})
}
