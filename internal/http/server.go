package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/fx"
	applog "finboard/internal/log"
	"finboard/internal/market"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
)

// Summarizer computes a user's dashboard summary.
type Summarizer interface {
	Summarize(ctx context.Context, userID string, asOf core.Date) (core.Summary, error)
}

// Services are the application services the API exposes.
type Services struct {
	Summaries Summarizer
	Ledger    *services.LedgerService
	Jobs      *services.JobService
	Rates     fx.RateSource
	Prices    market.PriceSource
	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Addr      string
	DevUserID string
	RateLimit ratelimit.Config
	// BlockSuspicious answers flagged requests with 403 instead of only logging them.
	BlockSuspicious bool
	Logger          *applog.Logger
}

type Server struct {
	http.Server
	svc       Services
	devUserID string
	now       func() time.Time
	started   time.Time

	logger           *applog.Logger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}
	detector := security.NewDetector()

	s := &Server{
		svc:              svc,
		devUserID:        cfg.DevUserID,
		now:              time.Now,
		started:          time.Now(),
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(cfg.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger.WithComponent(applog.ComponentTrace)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	tagged := func(component string, h http.HandlerFunc) http.Handler {
		return applog.ComponentMiddleware(component)(h)
	}
	mux.Handle("/api/dashboard/summary", tagged(applog.ComponentSummary, s.handleSummary))
	mux.Handle("/api/snapshots/export", tagged(applog.ComponentSheets, s.handleSnapshotExport))
	mux.Handle("/api/fx/refresh", tagged(applog.ComponentFX, s.handleFxRefresh))
	mux.Handle("/api/fx/rate", tagged(applog.ComponentFX, s.handleFxRate))
	mux.Handle("/api/prices", tagged(applog.ComponentMarket, s.handlePrices))

	mux.Handle("/api/settings", tagged(applog.ComponentLedger, s.handleSettings))
	mux.Handle("/api/accounts", tagged(applog.ComponentLedger, s.accountsResource().serve))
	mux.Handle("/api/categories", tagged(applog.ComponentLedger, s.categoriesResource().serve))
	mux.Handle("/api/transactions", tagged(applog.ComponentLedger, s.transactionsResource().serve))
	mux.Handle("/api/holdings", tagged(applog.ComponentLedger, s.holdingsResource().serve))
	mux.Handle("/api/tasks", tagged(applog.ComponentLedger, s.tasksResource().serve))

	limited := s.rateLimiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(mux)

	var handler http.Handler = limited
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(cfg.BlockSuspicious)(handler)
	handler = trace.LoggerMiddleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// rateLimitKey buckets requests by user when one is named, by client IP otherwise.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get(UserIDHeader)); id != "" {
		return "user:" + id
	}
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

// today is the default as-of day of every dated endpoint.
func (s *Server) today() core.Date {
	return core.Today(s.now)
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
