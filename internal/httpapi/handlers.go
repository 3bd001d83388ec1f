package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"tasdeeq.app/api/spec"
	"tasdeeq.app/internal/auth"
	"tasdeeq.app/internal/kyc"
	"tasdeeq.app/internal/obs"
	"tasdeeq.app/internal/stream"
)

const serviceName = "tasdeeq-api"

// ReadyProbe runs named dependency checks (database ping, Redis ping).
type ReadyProbe struct {
	Checks map[string]func(context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	names := make([]string, 0, len(rp.Checks))
	for name := range rp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := rp.Checks[name](ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	kyc        *kyc.Manager
	hub        *stream.Hub
	readyProbe readinessChecker
	version    string
	logger     *zap.Logger

	devTokens   bool
	tokenTTL    time.Duration
	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
	bodyLimit   int64
	heartbeat   time.Duration
}

// Option configures the API.
type Option func(*API)

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

func WithReadyProbe(rp readinessChecker) Option {
	return func(a *API) {
		if rp != nil {
			a.readyProbe = rp
		}
	}
}

// WithDevTokens enables POST /v1/auth/token.
func WithDevTokens(ttl time.Duration) Option {
	return func(a *API) {
		a.devTokens = true
		if ttl > 0 {
			a.tokenTTL = ttl
		}
	}
}

func WithCORSOrigins(origins []string) Option { return func(a *API) { a.corsOrigins = origins } }

func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.ratePerSec, a.rateBurst = perSecond, burst
		}
	}
}

func WithBodyLimit(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.bodyLimit = n
		}
	}
}

// WithHeartbeat sets the keep-alive interval of live views.
func WithHeartbeat(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// New wires the routes. hub may be nil, which disables live views.
func New(mgr *kyc.Manager, hub *stream.Hub, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		kyc:        mgr,
		hub:        hub,
		readyProbe: ReadyProbe{},
		logger:     obs.Logger().Named("http"),
		tokenTTL:   15 * time.Minute,
		rateBurst:  40,
		ratePerSec: 20,
		bodyLimit:  1 << 20,
		heartbeat:  25 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.HandleFunc("GET /openapi.yaml", a.OpenAPISpec)
	a.mux.Handle("GET /metrics", obs.Handler())

	// identity
	a.mux.HandleFunc("POST /v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("GET /v1/auth/me", a.handleMe)

	// verification cases
	a.mux.Handle("POST /v1/cases", RequirePermission(auth.PermSubmit)(http.HandlerFunc(a.submitCase)))
	a.mux.Handle("GET /v1/cases", RequirePermission(auth.PermReadAll)(http.HandlerFunc(a.listCases)))
	a.mux.Handle("GET /v1/cases/current", RequirePermission(auth.PermReadOwn)(http.HandlerFunc(a.currentCase)))
	a.mux.Handle("GET /v1/cases/{id}", RequirePermission(auth.PermReadOwn)(http.HandlerFunc(a.getCase)))
	a.mux.Handle("POST /v1/cases/{id}/review", RequirePermission(auth.PermReview)(http.HandlerFunc(a.markUnderReview)))
	a.mux.Handle("POST /v1/cases/{id}/decision", RequirePermission(auth.PermDecide)(http.HandlerFunc(a.decideCase)))
	a.mux.Handle("GET /v1/cases/{id}/audit", RequirePermission(auth.PermReadAll)(http.HandlerFunc(a.auditTrail)))
	a.mux.Handle("GET /v1/stats", RequirePermission(auth.PermReadAll)(http.HandlerFunc(a.stats)))

	// end-user views
	a.mux.Handle("GET /v1/notifications", RequirePermission(auth.PermReadOwn)(http.HandlerFunc(a.listNotifications)))
	a.mux.Handle("POST /v1/notifications/{id}/read", RequirePermission(auth.PermReadOwn)(http.HandlerFunc(a.markNotificationRead)))
	a.mux.Handle("GET /v1/accounts/{id}", RequirePermission(auth.PermReadOwn)(http.HandlerFunc(a.accountStatus)))

	// live views
	a.mux.HandleFunc("GET /v1/stream", a.Stream)
	a.mux.HandleFunc("GET /v1/ws", a.WebSocket)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	return a
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.bodyLimit)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(a.corsOrigins)(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	policy := a.kyc.Policy()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
		"policy": map[string]bool{
			"allow_redecision": policy.AllowRedecision,
			"notify_on_review": policy.NotifyOnReview,
		},
		"live_views": a.hub != nil,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
