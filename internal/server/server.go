package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/headline-goat/ab-report/internal/analysis"
	"github.com/headline-goat/ab-report/internal/store"
)

type Options struct {
	Port       int
	TokenFile  string        // where the dashboard token is written for `abr otp`
	TokenTTL   time.Duration // dashboard cookie lifetime; zero means 24h
	Confidence float64       // passed to the analysis engine; zero means 0.95
	Currency   string
	Logger     *slog.Logger
}

type Server struct {
	store      store.Store
	port       int
	token      string
	tokenFile  string
	tokenTTL   time.Duration
	confidence float64
	currency   string
	logger     *slog.Logger
	router     *http.ServeMux
	registry   *prometheus.Registry
	metrics    *metrics
	startTime  time.Time
}

func New(s store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	registry := prometheus.NewRegistry()
	srv := &Server{
		store:      s,
		port:       opts.Port,
		token:      generateToken(),
		tokenFile:  opts.TokenFile,
		tokenTTL:   tokenTTL,
		confidence: opts.Confidence,
		currency:   opts.Currency,
		logger:     logger,
		router:     http.NewServeMux(),
		registry:   registry,
		metrics:    newMetrics(registry),
		startTime:  time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/api/experiments", s.handleExperimentsAPI)
	s.router.HandleFunc("/api/experiments/", s.handleReportAPI)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Dashboard endpoints (protected)
	s.router.Handle("/dashboard", s.authMiddleware(http.HandlerFunc(s.handleDashboard)))
	s.router.Handle("/dashboard/experiment/", s.authMiddleware(http.HandlerFunc(s.handleDashboardExperiment)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	// Write token to file for OTP command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", "path", s.tokenFile, "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("server started",
		"addr", httpServer.Addr,
		"dashboard", fmt.Sprintf("http://localhost:%d/dashboard?token=%s", s.port, s.token),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		if s.tokenFile != "" {
			os.Remove(s.tokenFile)
		}
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// analyze loads an experiment and runs the engine over its visitors,
// recording the outcome in the report metrics.
func (s *Server) analyze(ctx context.Context, name string) (*store.Experiment, *analysis.Report, error) {
	start := time.Now()

	exp, err := s.store.GetExperiment(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	records, err := s.store.GetVisitors(ctx, name)
	if err != nil {
		s.metrics.observe(start, err)
		return nil, nil, err
	}

	engine, err := analysis.New(analysis.Options{
		Confidence: s.confidence,
		Variants:   exp.Variants,
		Logger:     s.logger,
	})
	if err != nil {
		s.metrics.observe(start, err)
		return nil, nil, err
	}

	report, err := engine.Analyze(records)
	s.metrics.observe(start, err)
	if err != nil {
		return nil, nil, err
	}
	return exp, report, nil
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
