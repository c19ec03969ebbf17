// Package api serves the scrape endpoint over HTTP. Every response has
// status 200; failures are reported in the JSON body.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/taishikato/supavec-api/internal/apperr"
	"github.com/taishikato/supavec-api/internal/metrics"
	"github.com/taishikato/supavec-api/pkg/models"
)

// MaxBodyBytes limits the request body.
const MaxBodyBytes = 1 << 20

// Caller-facing validation messages.
const (
	MsgInvalidJSON = "Invalid JSON body"
	MsgURLRequired = "url is required"
)

// Authenticator resolves the Authorization header.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (models.Identity, error)
}

// Scraper runs the scrape pipeline.
type Scraper interface {
	Run(ctx context.Context, id models.Identity, req models.ScrapeRequest) (*models.ScrapeResult, error)
}

// UsageRecorder accepts usage entries without blocking.
type UsageRecorder interface {
	Record(entry models.UsageLog)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr            string
	ScrapePath      string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the service.
type Server struct {
	config  Config
	auth    Authenticator
	scraper Scraper
	usage   UsageRecorder
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// NewServer wires the routes. usage and m may be nil.
func NewServer(config Config, auth Authenticator, scraper Scraper, usage UsageRecorder, m *metrics.Metrics) *Server {
	if config.ScrapePath == "" {
		config.ScrapePath = "/scrape"
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		config:  config,
		auth:    auth,
		scraper: scraper,
		usage:   usage,
		metrics: m,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("POST "+config.ScrapePath, s.handleScrape)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", m.Handler())

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: s.config.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.config.Addr, "scrape_path", s.config.ScrapePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	id, err := s.auth.Authenticate(ctx, r.Header.Get("Authorization"))
	if err != nil {
		s.finish(w, r, start, nil, err, metrics.OutcomeUnauthorized)
		return
	}

	var req models.ScrapeRequest
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		slog.Debug("invalid request body", "error", err)
		s.record(id, false, MsgInvalidJSON)
		s.finish(w, r, start, nil, apperr.New(apperr.KindValidation, MsgInvalidJSON), metrics.OutcomeInvalid)
		return
	}

	if req.URL == "" {
		s.record(id, false, MsgURLRequired)
		s.finish(w, r, start, nil, apperr.New(apperr.KindValidation, MsgURLRequired), metrics.OutcomeInvalid)
		return
	}

	result, err := s.scraper.Run(ctx, id, req)
	if err != nil {
		s.record(id, false, err.Error())
		outcome := metrics.OutcomeError
		if apperr.KindOf(err) == apperr.KindValidation {
			outcome = metrics.OutcomeInvalid
		}
		s.finish(w, r, start, nil, err, outcome)
		return
	}

	s.record(id, true, "")
	s.finish(w, r, start, result, nil, metrics.OutcomeSuccess)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// record hands a usage entry to the recorder without waiting.
func (s *Server) record(id models.Identity, success bool, errMsg string) {
	if s.usage == nil {
		return
	}
	entry := models.UsageLog{
		UserID:   id.UserID,
		Endpoint: s.config.ScrapePath,
		Success:  success,
	}
	if errMsg != "" {
		entry.Error = &errMsg
	}
	s.usage.Record(entry)
}

// finish writes the response, counts it and logs one line.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, start time.Time, result *models.ScrapeResult, err error, outcome string) {
	s.metrics.CountRequest(outcome)

	if err != nil {
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "outcome", outcome,
			"duration", time.Since(start), "error", err)
		writeJSON(w, errorBody(err))
		return
	}

	slog.Info("request", "method", r.Method, "path", r.URL.Path, "outcome", outcome,
		"duration", time.Since(start), "file_id", result.FileID, "chunks", len(result.Chunks))
	writeJSON(w, result)
}

// errorResponse is the failure body. StatusCode is only set for
// authentication failures.
type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
}

func errorBody(err error) errorResponse {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return errorResponse{Error: ae.Error(), StatusCode: ae.StatusCode()}
	}
	return errorResponse{Error: err.Error()}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
