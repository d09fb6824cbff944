package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"blind-book-reader/internal/artifact"
	"blind-book-reader/internal/catalog"
	"blind-book-reader/internal/explain"
)

// livenessMessage is served on GET /.
const livenessMessage = "✅ Blind Book Reader Backend is running!"

type Config struct {
	Addr string // e.g. ":3000"

	Catalog   catalog.Store
	Artifacts artifact.Store
	Explainer explain.Explainer
	Logger    *zap.Logger

	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS headers.
	CORSOrigin string
	// MaxUploadBytes caps the /upload body; 0 means no limit.
	MaxUploadBytes int64
	// ExplainRatePerMinute limits /explain per client IP; 0 disables.
	ExplainRatePerMinute int
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool
	Version           string
}

type Server struct {
	httpServer *http.Server

	catalog   catalog.Store
	artifacts artifact.Store
	explainer explain.Explainer
	logger    *zap.Logger
	metrics   *Metrics
	limiter   *rateLimiter

	maxUploadBytes    int64
	trustProxyHeaders bool
	version           string
	now               func() time.Time
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		catalog:        cfg.Catalog,
		artifacts:      cfg.Artifacts,
		explainer:      cfg.Explainer,
		logger:         logger,
		metrics:        NewMetrics(),
		maxUploadBytes:    cfg.MaxUploadBytes,
		trustProxyHeaders: cfg.TrustProxyHeaders,
		version:           cfg.Version,
		now:               time.Now,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(livenessMessage))
	})
	mux.Handle("POST /upload", s.uploadHandler())
	mux.Handle("GET /books", s.booksHandler())

	var explainHandler http.Handler = s.explainHandler()
	if cfg.ExplainRatePerMinute > 0 {
		s.limiter = newRateLimiter(cfg.ExplainRatePerMinute, time.Minute)
		s.limiter.trustProxy = cfg.TrustProxyHeaders
		explainHandler = s.limiter.middleware(explainHandler)
	}
	mux.Handle("POST /explain", explainHandler)

	mux.Handle("GET /pdf/{name}", s.pdfHandler())
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.Handle("GET /metrics", NewPrometheusExporter(s.metrics, s.version).Handler())

	// Wrap middleware: requestID -> logging -> cors -> compression -> mux
	var handler http.Handler = mux
	handler = CompressionMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigin)(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Metrics exposes the server's counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// errorResp is the body of every JSON error response.
type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Error: msg})
}
