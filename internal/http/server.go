// Package http exposes the tracker over a JSON API, including a
// server-sent-events stream of live fund state.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bucks/internal/backup"
	"bucks/internal/cache"
	"bucks/internal/middleware/ratelimit"
	"bucks/internal/middleware/security"
	"bucks/internal/middleware/trace"
	"bucks/internal/prefs"
	"bucks/internal/report"
	"bucks/internal/services"
	"bucks/internal/storage"
	"bucks/internal/watch"
)

const reportCacheTTL = 5 * time.Minute

type Server struct {
	http.Server

	repo      *storage.Repository
	funds     *services.FundService
	movements *services.MovementService
	backups   *backup.Manager
	prefs     *prefs.Store
	registry  *watch.Registry

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	reportCache *cache.LRUCache[report.Report]
	cacheMgr    *cache.Manager

	invalidateCancel context.CancelFunc
	shutdownOnce     sync.Once
}

// Options collects the server's collaborators and settings.
type Options struct {
	Addr      string
	Repo      *storage.Repository
	Funds     *services.FundService
	Movements *services.MovementService
	Backups   *backup.Manager
	Prefs     *prefs.Store
	Registry  *watch.Registry

	RequestsPerMinute int
}

// NewServer configures routes and middleware, returning a
// ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:      opts.Repo,
		funds:     opts.Funds,
		movements: opts.Movements,
		backups:   opts.Backups,
		prefs:     opts.Prefs,
		registry:  opts.Registry,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
		detector:    security.NewDetector(),
		reportCache: cache.NewLRUCache[report.Report](16, reportCacheTTL),
		cacheMgr:    cache.NewManager(),
		started:     time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	s.cacheMgr.Register(s.reportCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /funds", s.handleListFunds)
	mux.HandleFunc("POST /funds", s.handleCreateFund)
	mux.HandleFunc("GET /funds/{id}", s.handleGetFund)
	mux.HandleFunc("PUT /funds/{id}", s.handleUpdateFund)
	mux.HandleFunc("DELETE /funds/{id}", s.handleDeleteFund)
	mux.HandleFunc("GET /funds/{id}/complete", s.handleGetFundComplete)
	mux.HandleFunc("POST /funds/{id}/movements", s.handleRecordMovement)

	mux.HandleFunc("GET /movements", s.handleListMovements)
	mux.HandleFunc("GET /movements/{id}", s.handleGetMovement)
	mux.HandleFunc("DELETE /movements/{id}", s.handleDeleteMovement)

	mux.HandleFunc("GET /report", s.handleReport)

	mux.HandleFunc("POST /backup/export", s.handleBackupExport)
	mux.HandleFunc("POST /backup/import", s.handleBackupImport)
	mux.HandleFunc("GET /backup/status", s.handleBackupStatus)

	mux.HandleFunc("GET /prefs", s.handleGetPrefs)
	mux.HandleFunc("PUT /prefs", s.handlePutPrefs)

	mux.HandleFunc("GET /events", s.handleEvents)

	headers := security.NewHeadersMiddleware(apiHeadersConfig())

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: s.tracer.Middleware(headers.Middleware(s.withDetection(s.withRateLimit(mux)))),
	}

	// Every write may invalidate every cached report.
	ctx, cancel := context.WithCancel(context.Background())
	s.invalidateCancel = cancel
	go s.watchInvalidate(ctx)

	return s
}

// withDetection flags requests matching known attack patterns. They are
// logged and counted, not rejected: the signals are heuristic and the
// API carries no content a scanner could exploit.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"client_ip", s.detector.ExtractClientIP(r),
				"method", r.Method, "path", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit throttles mutating requests per client IP.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.detector.ExtractClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// watchInvalidate clears the report cache after every store write.
func (s *Server) watchInvalidate(ctx context.Context) {
	stream := watch.Subscribe(ctx, s.repo.Hub(), func(context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	defer stream.Close()
	for range stream.C {
		s.reportCache.Clear()
	}
}

func apiHeadersConfig() security.HeadersConfig {
	cfg := security.DefaultHeadersConfig()
	// Pure JSON API: nothing is ever rendered or embedded.
	cfg.CSP = "default-src 'none'; frame-ancestors 'none'"
	return cfg
}

// Shutdown stops the background routines along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.invalidateCancel()
		s.limiter.Stop()
		s.cacheMgr.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics reports request, security, and cache counters in plain
// text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP report_cache_entries Current report cache entries\n")
	fmt.Fprintf(w, "# TYPE report_cache_entries gauge\n")
	fmt.Fprintf(w, "report_cache_entries %d\n\n", s.reportCache.Size())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Time since the server started\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}
