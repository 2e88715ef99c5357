package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"kasirpos.org/internal/auth"
	"kasirpos.org/internal/obs"
)

const maxRequestBody = 1 << 20 // 1 MiB

// ReadyProbe — readiness check (for example, a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API — HTTP layer.
type API struct {
	router     *mux.Router
	svc        *auth.Service
	registry   *auth.RoleRegistry
	tokens     *auth.TokenIssuer
	logger     *zap.Logger
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int
}

type Options struct {
	Service    *auth.Service
	Registry   *auth.RoleRegistry
	Tokens     *auth.TokenIssuer
	Logger     *zap.Logger
	ReadyProbe ReadyProbe
	Version    string
	RateBurst  int
	RatePerSec int
}

func New(opts Options) *API {
	a := &API{
		router:     mux.NewRouter(),
		svc:        opts.Service,
		registry:   opts.Registry,
		tokens:     opts.Tokens,
		logger:     opts.Logger,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
		rateBurst:  opts.RateBurst,
		ratePerSec: opts.RatePerSec,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router

	// health/ready/info
	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.Info).Methods(http.MethodGet)

	// Prometheus metrics
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	// Credential routes get a per-IP throttle on top of the account lockout.
	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	r.Handle("/auth/register-admin", limited(a.RegisterAdmin)).Methods(http.MethodPost)
	r.Handle("/auth/login", limited(a.Login)).Methods(http.MethodPost)

	// Lockout administration (admin only).
	r.HandleFunc("/login-attempts", a.withAuth(a.ListActiveLocks, auth.RoleAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/login-attempts/unlock/{accountID}", a.withAuth(a.Unlock, auth.RoleAdmin)).Methods(http.MethodPut)

	// Role assignment (admin only).
	r.HandleFunc("/roles", a.withAuth(a.ListRoles, auth.RoleAdmin, auth.RoleOwner)).Methods(http.MethodGet)
	r.HandleFunc("/user-roles", a.withAuth(a.ReplaceRoles, auth.RoleAdmin)).Methods(http.MethodPut)
	r.HandleFunc("/user-roles", a.withAuth(a.AssignRole, auth.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/user-roles", a.withAuth(a.RemoveRole, auth.RoleAdmin)).Methods(http.MethodDelete)
	r.HandleFunc("/user-roles/{accountID}", a.withAuth(a.RolesOf, auth.RoleAdmin, auth.RoleOwner)).Methods(http.MethodGet)

	// Account administration (admin only).
	r.HandleFunc("/users", a.withAuth(a.CreateUser, auth.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/users", a.withAuth(a.ListUsers, auth.RoleAdmin, auth.RoleOwner)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", a.withAuth(a.UpdateUser, auth.RoleAdmin)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", a.withAuth(a.DeleteUser, auth.RoleAdmin)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, maxRequestBody)
	h = SecurityHeaders(h)
	h = Logging(a.logger, h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kasirpos-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "kasirpos-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
