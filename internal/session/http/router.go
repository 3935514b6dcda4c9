package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/httpx"
	"github.com/lamplight/frontsession/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	SessionHandler *SessionHandler
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	r.Mux.Handle("GET /session", r.SessionHandler)
	r.Mux.Handle("POST /session", r.SessionHandler)
	r.Mux.Handle("GET /session/{action}", r.SessionHandler)
	r.Mux.Handle("POST /session/{action}", r.SessionHandler)
	r.Mux.Handle("GET /session/{action}/{arg}", r.SessionHandler)
	r.Mux.Handle("POST /session/{action}/{arg}", r.SessionHandler)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}

// Logger returns the router logger, falling back to a discard logger so
// handlers never nil-check.
func (r *Router) Logger() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slogx.Discard()
}
