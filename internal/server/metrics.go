package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Saijash84/CalMate/internal/instrumentation"
)

// DefaultMetricsAddr is where the scrape endpoint listens unless configured.
const DefaultMetricsAddr = ":9090"

// DefaultShutdownTimeout bounds the graceful shutdown of every server.
const DefaultShutdownTimeout = 30 * time.Second

// ErrNoPrometheusExporter is returned when the provider cannot be scraped:
// it is disabled or exports over OTLP or stdout.
var ErrNoPrometheusExporter = errors.New("instrumentation provider has no prometheus exporter")

// MetricsServer exposes /metrics on its own listener so that scraping never
// competes with chat traffic or needs the API's rate limit and CORS rules.
type MetricsServer struct {
	addr    string
	scrape  http.Handler
	logger  *slog.Logger
	mu      sync.Mutex
	srv     *http.Server
	boundTo net.Addr
}

// NewMetricsServer serves the Prometheus registry of provider on addr.
func NewMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*MetricsServer, error) {
	if provider == nil || !provider.Enabled() {
		return nil, ErrNoPrometheusExporter
	}
	scrape := provider.MetricsHandler()
	if scrape == nil {
		return nil, ErrNoPrometheusExporter
	}
	if addr == "" {
		addr = DefaultMetricsAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsServer{addr: addr, scrape: scrape, logger: logger.With("component", "metrics")}, nil
}

// Handler routes /metrics to the registry and /healthz to a static ok.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.scrape)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful stop.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.boundTo = ln.Addr()
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv.Serve(ln)
}

// Shutdown stops a started server. Calling it before Start is a no-op.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound address once Start is listening, and the
// configured address before that.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundTo != nil {
		return s.boundTo.String()
	}
	return s.addr
}
