// Package httpapi exposes the transfer protocol over HTTP: a single POST
// endpoint accepting transfer envelopes as JSON, plus health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/logging"
	"github.com/dropgate/dropgate/internal/server/metrics"
	"github.com/dropgate/dropgate/internal/server/proxy"
	"github.com/dropgate/dropgate/internal/server/repositories/files"
)

// maxEnvelopeBytes caps the request body. The payload field is base64, so
// this bounds uploads at roughly 48 MB of binary.
const maxEnvelopeBytes = 64 << 20

// Server serves the transfer endpoint and the share-link API.
type Server struct {
	addr      string
	proxy     *proxy.Proxy
	files     files.Repository
	logger    logging.Logger
	jwtSecret []byte
}

// New builds a Server around a proxy and the metadata repository.
func New(addr string, p *proxy.Proxy, fileRepo files.Repository, secretKey string, l logging.Logger) *Server {
	return &Server{
		addr:      addr,
		proxy:     p,
		files:     fileRepo,
		logger:    l.With("module", "httpapi"),
		jwtSecret: []byte(secretKey),
	}
}

// Router assembles the chi router with all middleware. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.With(s.requireAuth).Post("/transfer", s.handleTransfer)
	r.With(s.requireAuth).Post("/shares", s.handleCreateShare)
	r.Get("/shares/{id}", s.handleResolveShare)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// errorResponse is the wire shape for failures. Results survive into the
// error reply for delete-multiple so partial outcomes are not lost.
type errorResponse struct {
	Error   string            `json:"error"`
	Results []proxy.KeyStatus `json:"results,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps the error taxonomy to HTTP statuses. Client mistakes get
// 4xx and are never worth retrying; backend trouble gets 5xx.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidOperation), errors.Is(err, common.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, common.ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var env proxy.Envelope
	r.Body = http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		metrics.TransferOpsTotal.WithLabelValues("unknown", "error").Inc()
		writeError(w, http.StatusBadRequest, "malformed envelope")
		return
	}

	resp, err := s.proxy.Handle(r.Context(), env)
	if err != nil {
		metrics.TransferOpsTotal.WithLabelValues(string(env.Operation), "error").Inc()
		s.logger.Error(r.Context(), "transfer failed", "operation", env.Operation, "error", err.Error())

		out := errorResponse{Error: err.Error()}
		if resp != nil {
			out.Results = resp.Results
		}
		writeJSON(w, statusFor(err), out)
		return
	}

	metrics.TransferOpsTotal.WithLabelValues(string(env.Operation), "success").Inc()
	writeJSON(w, http.StatusOK, resp)
}
