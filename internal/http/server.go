package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dhishan/family-expense-tracker/internal/auth"
	"github.com/dhishan/family-expense-tracker/internal/log"
	"github.com/dhishan/family-expense-tracker/internal/middleware/ratelimit"
	"github.com/dhishan/family-expense-tracker/internal/middleware/security"
	"github.com/dhishan/family-expense-tracker/internal/middleware/trace"
	"github.com/dhishan/family-expense-tracker/internal/services"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

const (
	apiName    = "Family Expense Tracker API"
	apiVersion = "1.0.0"
)

// Dependencies are the collaborators the API is built on.
type Dependencies struct {
	Services *services.Services
	// Store is pinged by the readiness probe.
	Store    storage.Store
	Tokens   *auth.Tokens
	Verifier auth.IdentityVerifier
	Logger   *log.Logger
}

// Options configure routing and the middleware chain.
type Options struct {
	APIPrefix          string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
}

type Server struct {
	http.Server

	svc      *services.Services
	store    storage.Store
	tokens   *auth.Tokens
	verifier auth.IdentityVerifier
	logger   *log.Logger
	validate *RequestValidator

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		cfg := log.DefaultConfig()
		cfg.Component = log.ComponentHTTP
		logger = log.New(cfg)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:      deps.Services,
		store:    deps.Store,
		tokens:   deps.Tokens,
		verifier: deps.Verifier,
		logger:   logger,
		validate: NewRequestValidator(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	s.routes(mux, opts.APIPrefix)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = security.NewCORS(security.DefaultCORSConfig(opts.CORSAllowedOrigins)).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST "+prefix+"/auth/google", s.handleGoogleAuth)
	mux.HandleFunc("GET "+prefix+"/auth/me", s.requireUser(s.handleMe))
	mux.HandleFunc("POST "+prefix+"/auth/logout", s.requireUser(s.handleLogout))

	mux.HandleFunc("POST "+prefix+"/families", s.requireUser(s.handleCreateFamily))
	mux.HandleFunc("POST "+prefix+"/families/join-by-code", s.requireUser(s.handleJoinByCode))
	mux.HandleFunc("GET "+prefix+"/families/{id}", s.requireUser(s.handleGetFamily))
	mux.HandleFunc("GET "+prefix+"/families/{id}/members", s.requireUser(s.handleFamilyMembers))
	mux.HandleFunc("POST "+prefix+"/families/{id}/join", s.requireUser(s.handleJoinFamily))
	mux.HandleFunc("POST "+prefix+"/families/{id}/leave", s.requireUser(s.handleLeaveFamily))
	mux.HandleFunc("POST "+prefix+"/families/{id}/regenerate-invite", s.requireUser(s.handleRegenerateInvite))
	mux.HandleFunc("PUT "+prefix+"/families/{id}/settings", s.requireUser(s.handleUpdateFamilySettings))

	mux.HandleFunc("POST "+prefix+"/expenses", s.requireUser(s.handleCreateExpense))
	mux.HandleFunc("GET "+prefix+"/expenses", s.requireUser(s.handleListExpenses))
	mux.HandleFunc("GET "+prefix+"/expenses/summary", s.requireUser(s.handleExpenseSummary))
	mux.HandleFunc("GET "+prefix+"/expenses/{id}", s.requireUser(s.handleGetExpense))
	mux.HandleFunc("PUT "+prefix+"/expenses/{id}", s.requireUser(s.handleUpdateExpense))
	mux.HandleFunc("DELETE "+prefix+"/expenses/{id}", s.requireUser(s.handleDeleteExpense))

	mux.HandleFunc("POST "+prefix+"/budgets", s.requireUser(s.handleCreateBudget))
	mux.HandleFunc("GET "+prefix+"/budgets", s.requireUser(s.handleListBudgets))
	mux.HandleFunc("GET "+prefix+"/budgets/{id}", s.requireUser(s.handleGetBudget))
	mux.HandleFunc("GET "+prefix+"/budgets/{id}/status", s.requireUser(s.handleBudgetStatus))
	mux.HandleFunc("PUT "+prefix+"/budgets/{id}", s.requireUser(s.handleUpdateBudget))
	mux.HandleFunc("DELETE "+prefix+"/budgets/{id}", s.requireUser(s.handleDeleteBudget))

	mux.HandleFunc("GET "+prefix+"/notifications", s.requireUser(s.handleListNotifications))
	mux.HandleFunc("GET "+prefix+"/notifications/unread-count", s.requireUser(s.handleUnreadCount))
	// Existing clients mark notifications read with PUT.
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		mux.HandleFunc(method+" "+prefix+"/notifications/read-all", s.requireUser(s.handleMarkAllRead))
		mux.HandleFunc(method+" "+prefix+"/notifications/{id}/read", s.requireUser(s.handleMarkRead))
	}
}

// Shutdown stops the rate limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
