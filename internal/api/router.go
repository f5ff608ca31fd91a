package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contdb/queryview/internal/api/middleware"
)

// RouterConfig holds all dependencies required to build the API router.
// Handler fields that are nil will receive a default "not implemented"
// handler, allowing the router to be constructed incrementally as features
// are built out.
type RouterConfig struct {
	// AllowedOrigins for CORS. Use ["*"] during development.
	AllowedOrigins []string

	// Handlers -----------------------------------------------------------------

	// HealthHandler serves GET /api/v1/health.
	HealthHandler http.Handler

	// ApplyHandler serves POST /api/v1/containers/{container}/apply.
	ApplyHandler http.Handler

	// MaterializeHandler serves POST /api/v1/containers/{container}/materialize.
	MaterializeHandler http.Handler

	// WSHandler serves GET /api/v1/containers/{container}/apply/stream, a
	// WebSocket variant of ApplyHandler for long-running queries.
	WSHandler http.Handler
}

// NewRouter builds a fully-configured *mux.Router with the query/view
// endpoints and the teacher's middleware chain applied.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// ---- Global middleware (applied to every route) -----------------------
	// Order matters: outermost runs first.
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.BodyLimitMiddleware)

	// ---- API v1 subrouter ------------------------------------------------
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.Handle("/health", handlerOrStub(cfg.HealthHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/containers/{container}/apply", handlerOrStub(cfg.ApplyHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/containers/{container}/materialize", handlerOrStub(cfg.MaterializeHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/containers/{container}/apply/stream", handlerOrStub(cfg.WSHandler)).Methods(http.MethodGet)

	return r
}

// handlerOrStub returns the provided handler if non-nil, otherwise a stub
// that responds with 501 Not Implemented.
func handlerOrStub(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotImplemented, "not_implemented", "this endpoint is not yet implemented")
	})
}
