package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/spounge-ai/parishvault/internal/infra/ratelimit"
	"github.com/spounge-ai/parishvault/internal/provisioning"
	"github.com/spounge-ai/parishvault/internal/tenancy"
	"github.com/spounge-ai/parishvault/pkg/patterns/lifecycle"
	psql "github.com/spounge-ai/parishvault/pkg/postgres"
)

// TenantCreator is the part of provisioning.Service the admin route uses.
type TenantCreator interface {
	CreateTenant(ctx context.Context, publicID uuid.UUID, name string, opts provisioning.CreateOptions) (*domain.TenantEntry, error)
}

// TenantPools hands out the pool for the tenant on the request context.
type TenantPools interface {
	Pool(ctx context.Context) (*pgxpool.Pool, error)
}

type RouterDeps struct {
	// Creator is nil when provisioning is disabled; the admin route is
	// then not mounted.
	Creator TenantCreator
	// AdminLimiter throttles the admin routes per client address. Optional.
	AdminLimiter ratelimit.Limiter

	Pools      TenantPools
	Resolver   tenancy.Resolver
	Tenancy    tenancy.MiddlewareConfig
	Health     func(ctx context.Context) map[string]lifecycle.HealthStatus
	Prometheus prometheus.Gatherer
	Classifier *app_errors.ErrorClassifier
	Logger     *slog.Logger
}

type handlers struct {
	RouterDeps
}

func NewRouter(deps RouterDeps) http.Handler {
	h := &handlers{RouterDeps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger(deps.Logger))

	r.Get("/healthz", h.healthz)
	if deps.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Prometheus, promhttp.HandlerOpts{}))
	}
	if deps.Creator != nil {
		r.Group(func(r chi.Router) {
			if deps.AdminLimiter != nil {
				r.Use(h.rateLimit(deps.AdminLimiter))
			}
			r.Post("/admin/parishes", h.createParish)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(tenancy.Middleware(deps.Resolver, deps.Tenancy, deps.Logger))
		r.Get("/parishes/{"+deps.Tenancy.RouteParam+"}/status", h.parishStatus)
	})
	return r
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]lifecycle.HealthStatus{}
	if h.Health != nil {
		status = h.Health(r.Context())
	}

	code := http.StatusOK
	for _, s := range status {
		if !s.Ready {
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, status)
}

type adminRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type createParishRequest struct {
	PublicID        string        `json:"public_id"`
	Name            string        `json:"name"`
	SeedExampleData *bool         `json:"seed_example_data"`
	Admin           *adminRequest `json:"admin"`
}

type parishResponse struct {
	ID          int64     `json:"id"`
	PublicID    uuid.UUID `json:"public_id"`
	DisplayName string    `json:"display_name"`
	KeyVersion  int       `json:"key_version"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *handlers) createParish(w http.ResponseWriter, r *http.Request) {
	const op = "CreateParish"

	var req createParishRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed body: %v", app_errors.ErrInvalidInput, err), op, "")
		return
	}

	publicID := uuid.New()
	if req.PublicID != "" {
		id, err := domain.ParsePublicID(req.PublicID)
		if err != nil {
			h.fail(w, r, err, op, req.PublicID)
			return
		}
		publicID = id
	}

	opts := provisioning.CreateOptions{SeedExampleData: req.SeedExampleData}
	if req.Admin != nil {
		opts.Admin = &domain.AdminPrincipal{
			Email:       req.Admin.Email,
			DisplayName: req.Admin.DisplayName,
			Password:    req.Admin.Password,
		}
	}

	entry, err := h.Creator.CreateTenant(r.Context(), publicID, req.Name, opts)
	if err != nil {
		h.fail(w, r, err, op, publicID.String())
		return
	}

	writeJSON(w, http.StatusCreated, parishResponse{
		ID:          entry.ID,
		PublicID:    entry.PublicID,
		DisplayName: entry.DisplayName,
		KeyVersion:  entry.KeyVersion,
		CreatedAt:   entry.CreatedAt,
	})
}

type statusResponse struct {
	PublicID    uuid.UUID `json:"public_id"`
	DisplayName string    `json:"display_name"`
	Tables      []string  `json:"tables"`
}

func (h *handlers) parishStatus(w http.ResponseWriter, r *http.Request) {
	const op = "ParishStatus"

	tc, _ := tenancy.FromContext(r.Context())
	if tc.State() == tenancy.StateInvalid {
		h.fail(w, r, tc.Err(), op, tc.RequestedID())
		return
	}

	pool, err := h.Pools.Pool(r.Context())
	if err != nil {
		h.fail(w, r, err, op, tc.RequestedID())
		return
	}

	tables, err := psql.PublicTables(r.Context(), pool)
	if err != nil {
		h.fail(w, r, fmt.Errorf("failed to inspect tenant schema: %w", err), op, tc.RequestedID())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		PublicID:    tc.PublicID(),
		DisplayName: tc.DisplayName(),
		Tables:      tables,
	})
}

func (h *handlers) rateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientAddr(r)) {
				h.fail(w, r, app_errors.ErrRateLimited, r.URL.Path, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error, op, publicID string) {
	classified := h.Classifier.Classify(err, op)
	classified.PublicID = publicID
	status, msg := h.Classifier.LogAndSanitize(r.Context(), classified)
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
