package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"udhar/internal/cache"
	"udhar/internal/core"
	ulog "udhar/internal/log"
	"udhar/internal/middleware/ratelimit"
	"udhar/internal/middleware/security"
	"udhar/internal/middleware/trace"
	"udhar/internal/services"
)

// Ledger is the service surface the handlers use. *services.LedgerService
// satisfies it.
type Ledger interface {
	Location() *time.Location
	Ping(ctx context.Context) error

	Register(ctx context.Context, name, email string, role core.Role) (core.Account, error)
	Login(ctx context.Context, email string) (core.Session, error)
	SessionFor(ctx context.Context, accountID string) (core.Session, error)

	AddShop(ctx context.Context, sess core.Session, in services.ShopInput) (core.Shop, error)
	AddCustomer(ctx context.Context, sess core.Session, in services.CustomerInput) (core.Customer, error)
	RecordTransaction(ctx context.Context, sess core.Session, in services.TransactionInput) (services.RecordResult, error)

	CustomerBalance(ctx context.Context, sess core.Session, customerID string) (services.CustomerBalance, error)
	ShopBalance(ctx context.Context, sess core.Session, shopID string) (services.ShopBalance, error)
	MonthlyStatement(ctx context.Context, sess core.Session, shopID string, year int, month time.Month) (core.MonthStatement, error)

	ListShops(ctx context.Context, sess core.Session) ([]core.Shop, error)
	ListCustomers(ctx context.Context, sess core.Session, search string) ([]core.Customer, error)
	ListTransactions(ctx context.Context, sess core.Session, search string, limit int) ([]core.Transaction, error)
	Dashboard(ctx context.Context, sess core.Session, search string) (services.Dashboard, error)
}

var _ Ledger = (*services.LedgerService)(nil)

type Options struct {
	RateLimitPerMinute int
	StatementCacheTTL  time.Duration
	StatementCacheSize int
	Logger             *ulog.Logger
	Now                func() time.Time
}

type Server struct {
	http.Server
	ledger Ledger
	now    func() time.Time

	statements   *cache.LRUCache[core.MonthStatement]
	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter
	tracer       *trace.Middleware
	detector     *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.StatementCacheTTL <= 0 {
		opts.StatementCacheTTL = 2 * time.Minute
	}
	if opts.StatementCacheSize <= 0 {
		opts.StatementCacheSize = 200
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = ulog.New(ulog.DefaultConfig())
	}

	detector := security.NewDetector()
	s := &Server{
		ledger:       ledger,
		now:          opts.Now,
		statements:   cache.NewLRUCache[core.MonthStatement](opts.StatementCacheSize, opts.StatementCacheTTL),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		detector:     detector,
	}
	s.cacheManager.Register(s.statements)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /accounts", s.handleRegister)
	mux.HandleFunc("POST /sessions", s.handleLogin)

	mux.HandleFunc("GET /dashboard", s.withSession(s.handleDashboard))
	mux.HandleFunc("GET /shops", s.withSession(s.handleListShops))
	mux.HandleFunc("POST /shops", s.withSession(s.handleAddShop))
	mux.HandleFunc("GET /shops/{id}/balance", s.withSession(s.handleShopBalance))
	mux.HandleFunc("GET /shops/{id}/statement", s.withSession(s.handleStatement))
	mux.HandleFunc("GET /customers", s.withSession(s.handleListCustomers))
	mux.HandleFunc("POST /customers", s.withSession(s.handleAddCustomer))
	mux.HandleFunc("GET /customers/{id}/balance", s.withSession(s.handleCustomerBalance))
	mux.HandleFunc("GET /transactions", s.withSession(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.withSession(s.handleRecordTransaction))

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, ratelimit.SafeMethods, func(w http.ResponseWriter, r *http.Request) {
		ulog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			ulog.FieldClientIP, detector.ExtractClientIP(r),
			ulog.FieldMethod, r.Method,
			ulog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded", trace.RequestIDFrom(r)).Write(w)
	})

	var h http.Handler = mux
	h = limited(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = ulog.Middleware(opts.Logger, trace.RequestIDFrom)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		m := s.tracer.GetMetrics()
		slog.Info("HTTP server stopped",
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limit_hits", s.rateLimiter.GetMetrics().TotalHits,
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests)
	})
	return shutdownErr
}

// sessionHandler is a handler that needs the caller's identity.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess core.Session)

// withSession resolves the account id header into a session. A missing
// header or an unknown account is 401.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := accountIDFrom(r)
		if id == "" {
			writeError(w, r, "session", core.ErrUnauthenticated)
			return
		}
		sess, err := s.ledger.SessionFor(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				err = core.ErrUnauthenticated
			}
			writeError(w, r, "session", err)
			return
		}
		r = r.WithContext(ulog.NewContext(r.Context(),
			ulog.FromContext(r.Context()).With(ulog.FieldAccountID, sess.AccountID, ulog.FieldRole, string(sess.Role))))
		next(w, r, sess)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.ledger.Ping(ctx); err != nil {
		ulog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", ulog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
