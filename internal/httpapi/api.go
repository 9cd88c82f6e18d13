// Package httpapi is the HTTP surface of the service: follow actions,
// the unauthenticated unsubscribe link, the internal outbox drain
// trigger, and the admin jurisdiction console.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"polyvox.org/internal/authz"
	"polyvox.org/internal/follow"
	"polyvox.org/internal/notify"
	"polyvox.org/internal/obs"
	"polyvox.org/internal/outbox"
	"polyvox.org/internal/store/pg"
	"polyvox.org/internal/token"
)

// ReadyProbe reports readiness (for example, a database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AdminStore is the persistence surface of the admin console.
type AdminStore interface {
	ActivateJurisdiction(ctx context.Context, id string, at time.Time) (pg.Jurisdiction, error)
	SeedFounder(ctx context.Context, subjectID, jurisdictionID string) error
	UpsertMembership(ctx context.Context, subjectID, jurisdictionID string, role authz.Role) error
}

// Config wires the API's collaborators.
type Config struct {
	Version     string
	ReadyProbe  ReadyProbe
	Gate        *authz.Gate
	Follows     *follow.Service
	Fanout      *notify.Fanout
	Processor   *outbox.Processor
	Tokens      *token.Codec
	Admin       AdminStore
	InternalKey string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	gate        *authz.Gate
	follows     *follow.Service
	fanout      *notify.Fanout
	processor   *outbox.Processor
	tokens      *token.Codec
	admin       AdminStore
	internalKey string

	rateBurst  int
	ratePerSec int
}

// New assembles the API and its routes.
func New(cfg Config) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  cfg.ReadyProbe,
		version:     cfg.Version,
		gate:        cfg.Gate,
		follows:     cfg.Follows,
		fanout:      cfg.Fanout,
		processor:   cfg.Processor,
		tokens:      cfg.Tokens,
		admin:       cfg.Admin,
		internalKey: cfg.InternalKey,
		rateBurst:   20,
		ratePerSec:  10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/email/unsubscribe", a.handleUnsubscribe)
	a.mux.HandleFunc("/v1/internal/email/process-queue", a.handleProcessQueue)

	a.mux.HandleFunc("/v1/follows", a.handleFollows)
	a.mux.HandleFunc("/v1/follows/state", a.handleFollowState)

	a.mux.HandleFunc("/v1/admin/jurisdictions/", a.handleAdminJurisdictions)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "polyvox-api",
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
		"name":    "polyvox-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
