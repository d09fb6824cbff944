package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type explainReq struct {
	Paragraph string `json:"paragraph"`
}

type explainResp struct {
	Explanation string `json:"explanation"`
}

// explainFailureMessage is the only error detail callers ever see.
const explainFailureMessage = "Error generating explanation from Gemini"

// explainHandler handles POST /explain. The provider's text is returned
// verbatim; any provider error becomes a generic 500.
func (s *Server) explainHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req explainReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		start := time.Now()
		text, err := s.explainer.Explain(r.Context(), req.Paragraph)
		if err != nil {
			s.metrics.RecordExplainError()
			s.logger.Error("explanation failed",
				zap.String("rid", RequestIDFromContext(r.Context())),
				zap.Int("paragraph_len", len(req.Paragraph)),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, explainFailureMessage)
			return
		}

		s.metrics.RecordExplain(time.Since(start))
		writeJSON(w, http.StatusOK, explainResp{Explanation: text})
	})
}
