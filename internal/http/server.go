package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgeteer/internal/auth"
	"budgeteer/internal/log"
	"budgeteer/internal/middleware/ratelimit"
	"budgeteer/internal/middleware/security"
	"budgeteer/internal/middleware/trace"
	"budgeteer/internal/services"
)

// Services bundles what the handlers call into. Every call passes the owner
// resolved by the auth middleware explicitly.
type Services struct {
	Summaries  *services.SummaryService
	Expenses   *services.ExpenseService
	Budgets    *services.BudgetService
	Categories *services.CategoryService
}

type Options struct {
	JWTSecret          []byte
	RateLimitPerMinute int
	TrustForwarded     bool
	// Ready reports storage health for /readyz. Optional.
	Ready  func(context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	svc    Services
	logger *log.Logger
	ready  func(context.Context) error
	now    func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime        time.Time
	totalExpenses int64
	overBudget    int64
}

// NewServer wires routes and the middleware chain: trace, security headers,
// probe detection, rate limiting, then auth on /api.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector(opts.TrustForwarded)
	s := &Server{
		svc:              svc,
		logger:           logger,
		ready:            opts.Ready,
		now:              time.Now,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	api.HandleFunc("GET /api/categories/{id}/expenses", s.handleCategoryExpenses)
	api.HandleFunc("GET /api/budgets", s.handleGetBudgets)
	api.HandleFunc("POST /api/budgets", s.handleSaveBudgets)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/reports", s.handleReport)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", auth.Middleware(opts.JWTSecret, logger)(api))

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(detector.ExtractClientIP, logger)(h)
	h = detector.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.traceMiddleware.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) owner(r *http.Request) string {
	id, _ := auth.OwnerFromContext(r.Context())
	return id
}
