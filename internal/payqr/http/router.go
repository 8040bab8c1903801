package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tabletap/payqr/internal/payqr/notify"
	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/httpx"
	"github.com/tabletap/payqr/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	// TerminalAPIKeyHash guards the issuance, confirmation and audit
	// endpoints. Empty disables the check (dev mode).
	TerminalAPIKeyHash string

	OrderService  *service.OrderService
	IssuerService *service.IssuerService
	Validator     *service.ValidatorService
	Confirmer     *service.ConfirmerService
	AuditRecorder *service.AuditRecorder
	Hub           *notify.Hub
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOrders()
	r.registerScan()
	r.registerPayments()
	r.registerAudit()
	r.registerEvents()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOrders() {
	h := &OrdersHandler{OrderService: r.OrderService}

	// POST /orders - order intake from the POS front of house.
	r.Mux.Handle("POST /v1/orders",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /orders/{id}/credential - mint a payment credential. Terminal
	// API key required; moderate limit since each table may re-request.
	issue := &IssueCredentialHandler{IssuerService: r.IssuerService}
	r.Mux.Handle("POST /v1/orders/{id}/credential",
		httpx.Chain(issue,
			httpx.APIKeyMiddleware(r.TerminalAPIKeyHash),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerScan() {
	h := &ScanHandler{Validator: r.Validator, Orders: r.OrderService}

	// Strict limits keyed by device: scan endpoints are the credential
	// guessing surface.
	r.Mux.Handle("POST /v1/scan/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			httpx.RateLimitByDevice(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/scan/code",
		httpx.Chain(http.HandlerFunc(h.HandleShortCode),
			httpx.RateLimitByDevice(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerPayments() {
	h := &ConfirmHandler{Confirmer: r.Confirmer}

	r.Mux.Handle("POST /v1/payments/confirm",
		httpx.Chain(h,
			httpx.APIKeyMiddleware(r.TerminalAPIKeyHash),
			httpx.RateLimitByDevice(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAudit() {
	h := &AuditHandler{Audit: r.AuditRecorder, Orders: r.OrderService}

	r.Mux.Handle("GET /v1/orders/{id}/audit",
		httpx.Chain(h,
			httpx.APIKeyMiddleware(r.TerminalAPIKeyHash),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerEvents() {
	h := &EventsHandler{Hub: r.Hub}

	r.Mux.Handle("GET /v1/orders/events",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store))
}
