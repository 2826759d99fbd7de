package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
	"controle/internal/middleware/ratelimit"
	"controle/internal/middleware/security"
	"controle/internal/middleware/trace"
	"controle/internal/services"
)

// Ledger is the part of the engine the handlers call directly. Operations
// that rewrite existing rows go through Commands instead.
type Ledger interface {
	OperatingMonth() core.Month
	RegisterIncome(ctx context.Context, in ledger.IncomeInput) (core.IncomeEntry, error)
	RegisterPurchase(ctx context.Context, p core.Purchase) (ledger.PurchaseResult, error)
	PurchasesByPerson(ctx context.Context) ([]ledger.PersonPurchases, error)
	Summarize(ctx context.Context, person string, p core.Period) (core.Summary, error)
	SummarizeAll(ctx context.Context, window ledger.OverviewWindow) ([]core.OverviewRow, error)
	GenerateFixedExpenses(ctx context.Context, batch []ledger.FixedExpenseInput) ([]ledger.GenerateOutcome, error)
	CopyFixedExpensesForward(ctx context.Context, from, to core.Month) ([]ledger.CopyOutcome, error)
	ListCards(ctx context.Context) ([]string, error)
	ListFixedTypes(ctx context.Context) ([]string, error)
}

// Commands submits read-modify-write commands.
type Commands interface {
	Submit(ctx context.Context, kind string, payload any) (services.CommandResult, error)
}

type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
	// ReadTimeout and WriteTimeout default to 15s and 30s.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	http.Server
	ledger   Ledger
	commands Commands
	logger   *log.StructuredLogger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware. Call Shutdown to stop the
// rate limiter along with the listener.
func NewServer(addr string, l Ledger, c Commands, opts Options) (*Server, error) {
	if l == nil || c == nil {
		return nil, fmt.Errorf("server requires a ledger and a command service")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	resolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	cfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		cfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	s := &Server{
		ledger:   l,
		commands: c,
		logger:   log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(cfg),
		tracer:   trace.NewMiddleware(logger, resolver.ClientIP),
		started:  time.Now(),
	}

	limit := s.limiter.Middleware(resolver.ClientIP, ratelimit.WritesOnly, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().WithRequestID(trace.GetRequestID(r.Context())).Write(w)
	})

	var handler http.Handler = s.routes()
	handler = limit(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/incomes", s.handleRegisterIncome)
	mux.HandleFunc("POST /api/incomes/extra", s.handleRegisterExtraIncome)

	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)
	mux.HandleFunc("POST /api/purchases", s.handleRegisterPurchase)
	mux.HandleFunc("PUT /api/purchases/{ledgerId}", s.handleEditPurchase)
	mux.HandleFunc("DELETE /api/purchases/{ledgerId}", s.handleDeletePurchase)
	mux.HandleFunc("POST /api/purchases/{ledgerId}/split", s.handleSplitPurchase)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/overview", s.handleOverview)

	mux.HandleFunc("POST /api/fixed-expenses/generate", s.handleGenerateFixed)
	mux.HandleFunc("POST /api/fixed-expenses/copy", s.handleCopyFixed)
	mux.HandleFunc("PATCH /api/fixed-expenses/{id}", s.handleUpdateFixed)
	mux.HandleFunc("DELETE /api/fixed-expenses/{id}", s.handleDeleteFixed)
	mux.HandleFunc("POST /api/fixed-expenses/{id}/split", s.handleSplitFixed)

	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("GET /api/fixed-types", s.handleListFixedTypes)

	return mux
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// submit runs a command and writes its outcome.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, op, kind string, payload any) {
	res, err := s.commands.Submit(r.Context(), kind, payload)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Command handled",
		log.FieldCommandID, res.CommandID,
		log.FieldCommandKind, kind,
		"queued", res.Queued)
	CommandAccepted(w, res)
}
