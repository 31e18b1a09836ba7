// Package server exposes an Advisor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/counsel"
	"go.uber.org/zap"
)

const serviceName = "counsel"

// MaxBodyBytes caps the size of a query request body.
const MaxBodyBytes = 1 << 20

// Advisor is the part of the orchestrator the HTTP surface needs.
type Advisor interface {
	ProcessQuery(ctx context.Context, q counsel.Query) (*counsel.StructuredResponse, error)
	GenerateDailyBriefing(ctx context.Context, userID string) (string, error)
}

// Server serves the advisory HTTP API.
type Server struct {
	advisor         Advisor
	logger          *zap.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
	now             func() time.Time
}

// New creates a Server listening on addr. A nil logger discards logs.
func New(addr string, advisor Advisor, logger *zap.Logger, shutdownTimeout time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		advisor:         advisor,
		logger:          logger.Named("http"),
		shutdownTimeout: shutdownTimeout,
		now:             time.Now,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("GET /api/briefing/{userId}", s.handleBriefing)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type briefingResponse struct {
	Briefing string `json:"briefing"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var q counsel.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := s.advisor.ProcessQuery(r.Context(), q)
	if err != nil {
		s.logger.Error("processing failed", zap.String("user_id", q.UserID), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Processing failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userId"))

	briefing, err := s.advisor.GenerateDailyBriefing(r.Context(), userID)
	if err != nil {
		s.logger.Error("briefing failed", zap.String("user_id", userID), zap.Error(err))
		if errors.Is(err, counsel.ErrInvalidQuery) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid user"})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Briefing failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, briefingResponse{Briefing: briefing})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
