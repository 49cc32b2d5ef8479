package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"code.cloudfoundry.org/lager"
	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbaasd/dbaasd/credentials"
	"github.com/dbaasd/dbaasd/executor"
	"github.com/dbaasd/dbaasd/identity"
	"github.com/dbaasd/dbaasd/internaldb"
	"github.com/dbaasd/dbaasd/provisioner"
)

// Engine is the provisioning core exposed over HTTP.
type Engine interface {
	Create(ctx context.Context, tenant identity.TenantIdentity, requestedName, requestedPassword string) (provisioner.CreateResult, error)
	List(ctx context.Context, tenant identity.TenantIdentity) ([]provisioner.GrantInfo, error)
	Delete(ctx context.Context, tenant identity.TenantIdentity, grantID string) error
}

type CreateParameters struct {
	DBName     string `mapstructure:"db_name"`
	DBPassword string `mapstructure:"db_password"`
}

type contextKey string

const tenantContextKey = contextKey("tenant")

type handler struct {
	engine   Engine
	resolver identity.Resolver
	logger   lager.Logger
}

func New(engine Engine, resolver identity.Resolver, logger lager.Logger) http.Handler {
	h := &handler{
		engine:   engine,
		resolver: resolver,
		logger:   logger.Session("api"),
	}

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1/databases", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Delete("/{id}", h.delete)
	})
	return r
}

// authenticate resolves the bearer token with the external identity
// provider and stashes the tenant in the request context. The engine
// itself never sees a token.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		tenant, err := h.resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}
			h.logger.Error("resolve-identity", err)
			writeError(w, http.StatusBadGateway, "execution_error", "identity provider unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be a JSON object")
		return
	}
	params := CreateParameters{}
	if err := mapstructure.Decode(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "unrecognized parameter types")
		return
	}

	result, err := h.engine.Create(r.Context(), tenant, params.DBName, params.DBPassword)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	infos, err := h.engine.List(r.Context(), tenant)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"databases": infos})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	grantID := chi.URLParam(r, "id")

	if err := h.engine.Delete(r.Context(), tenant, grantID); err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// writeEngineError maps the engine's error taxonomy onto HTTP responses.
// Credentials never appear in error details.
func (h *handler) writeEngineError(w http.ResponseWriter, err error) {
	var nameErr *credentials.InvalidNameError
	var passwordErr *credentials.InvalidPasswordError
	var collisionErr *executor.NameCollisionError
	var executionErr *executor.ExecutionError
	var partialErr *provisioner.PartialSuccessError

	switch {
	case errors.As(err, &nameErr):
		writeError(w, http.StatusBadRequest, "invalid_input", nameErr.Detail)
	case errors.As(err, &passwordErr):
		writeError(w, http.StatusBadRequest, "invalid_input", passwordErr.Detail)
	case errors.As(err, &collisionErr):
		writeError(w, http.StatusConflict, "name_collision", err.Error())
	case errors.Is(err, internaldb.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", "a database with that name is already recorded")
	case errors.Is(err, internaldb.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "database not found")
	case errors.As(err, &partialErr):
		writeError(w, http.StatusInternalServerError, "partial_success", partialErr.Detail)
	case errors.As(err, &executionErr):
		h.logger.Error("execution-error", err)
		writeError(w, http.StatusBadGateway, "execution_error", "backend server operation failed")
	default:
		h.logger.Error("internal-error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func tenantFrom(r *http.Request) identity.TenantIdentity {
	tenant, _ := r.Context().Value(tenantContextKey).(identity.TenantIdentity)
	return tenant
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, detail string) {
	writeJSON(w, status, map[string]string{"error": kind, "detail": detail})
}
