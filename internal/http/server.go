package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	applog "tally/internal/log"
)

// AccountService is the account surface the handlers need.
type AccountService interface {
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ResolveSelected(ctx context.Context, storedID string) (*core.Account, error)
}

// TransactionService is the transaction write surface, fanning out to
// storage and the sync queue.
type TransactionService interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Store is the read-and-reference side of the repository used directly
// by handlers.
type Store interface {
	GetAccount(ctx context.Context, id string) (core.Account, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	ListCategories(ctx context.Context, accountID string, typ core.TransactionType) ([]core.Category, error)
	InsertCategories(ctx context.Context, cats []core.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CreateTemplate(ctx context.Context, rt core.RecurringTemplate) error
	GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
	ListTemplates(ctx context.Context, accountID string) ([]core.RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, rt core.RecurringTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
}

// Materializer catches up recurring templates before a report is built.
type Materializer interface {
	MaterializeMissedOccurrences(ctx context.Context, accountID string, now time.Time) (int, error)
}

type Server struct {
	http.Server
	accounts     AccountService
	transactions TransactionService
	store        Store
	materializer Materializer
	logger       *applog.Logger

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Cached reports, keyed by account and query; invalidated per
	// account on every write.
	reportCache  *cache.LRUCache[core.Report]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, accounts AccountService, transactions TransactionService, store Store, materializer Materializer, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		accounts:     accounts,
		transactions: transactions,
		store:        store,
		materializer: materializer,
		logger:       logger,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		reportCache:  cache.NewLRUCache[core.Report](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /accounts", s.wrap(s.handleListAccounts))
	mux.HandleFunc("POST /accounts", s.wrap(s.handleCreateAccount))
	mux.HandleFunc("DELETE /accounts/{id}", s.wrap(s.handleDeleteAccount))
	mux.HandleFunc("GET /accounts/{id}/balance", s.wrap(s.handleAccountBalance))
	mux.HandleFunc("GET /accounts/selected", s.wrap(s.handleSelectedAccount))

	mux.HandleFunc("GET /transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.wrap(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/{id}", s.wrap(s.handleGetTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.wrap(s.handleDeleteTransaction))

	mux.HandleFunc("GET /categories", s.wrap(s.handleListCategories))
	mux.HandleFunc("GET /categories/picker", s.wrap(s.handleCategoryPicker))
	mux.HandleFunc("POST /categories", s.wrap(s.handleCreateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.wrap(s.handleDeleteCategory))

	mux.HandleFunc("GET /templates", s.wrap(s.handleListTemplates))
	mux.HandleFunc("POST /templates", s.wrap(s.handleCreateTemplate))
	mux.HandleFunc("GET /templates/{id}", s.wrap(s.handleGetTemplate))
	mux.HandleFunc("PUT /templates/{id}", s.wrap(s.handleUpdateTemplate))
	mux.HandleFunc("DELETE /templates/{id}", s.wrap(s.handleDeleteTemplate))

	mux.HandleFunc("GET /report", s.wrap(s.handleReport))
	mux.HandleFunc("GET /report/categories/{name}", s.wrap(s.handleReportDetail))

	return s
}

// wrap adds client IP extraction, rate limiting on writes, security
// headers, request tracing, and completion logging around a handler.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r, s.metrics)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), applog.LoggerContextKey, s.logger.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		setSecurityHeaders(w)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		applog.LogHTTPEnd(ctx, s.logger, r, rw.statusCode, time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateReports drops every cached report for the account.
func (s *Server) invalidateReports(accountID string) {
	s.reportCache.DeletePrefix(accountID + "|")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
