// Package http exposes the JSON API: project, category and quantity CRUD
// plus the per-project rollup view.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"quantifier/internal/core"
	"quantifier/internal/middleware/ratelimit"
	"quantifier/internal/middleware/security"
	"quantifier/internal/middleware/trace"
	"quantifier/internal/services"
)

// Service surfaces the handlers depend on.
type (
	ProjectService interface {
		Create(ctx context.Context, p core.Project) (core.Project, error)
		Get(ctx context.Context, id int64) (core.Project, error)
		List(ctx context.Context) ([]core.Project, error)
		Update(ctx context.Context, p core.Project) error
		Delete(ctx context.Context, id int64) error
	}

	CategoryService interface {
		Create(ctx context.Context, c core.Category) (core.Category, error)
		Get(ctx context.Context, id int64) (core.Category, error)
		Update(ctx context.Context, c core.Category) error
		Delete(ctx context.Context, projectID, id int64) error
	}

	QuantityService interface {
		Record(ctx context.Context, projectID int64, q core.Quantity) (core.Quantity, error)
		Get(ctx context.Context, id int64) (core.Quantity, error)
		Update(ctx context.Context, projectID int64, q core.Quantity) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context, projectID, categoryID int64, dr *core.DateRange, limit int) ([]core.Quantity, error)
	}

	RollupService interface {
		Rollup(ctx context.Context, projectID int64, date time.Time, display core.Interval) (*services.RollupResult, error)
		CategoryTree(ctx context.Context, projectID int64) (*core.CategoryTree, error)
	}
)

type Server struct {
	http.Server

	projects   ProjectService
	categories CategoryService
	quantities QuantityService
	rollup     RollupService

	tracer      *trace.Middleware
	rateLimiter *ratelimit.Limiter

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, projects ProjectService, categories CategoryService, quantities QuantityService, rollup RollupService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		projects:    projects,
		categories:  categories,
		quantities:  quantities,
		rollup:      rollup,
		tracer:      trace.NewMiddleware(clientIP),
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		startedAt:   time.Now(),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/projects/{id}/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/projects/{id}/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/projects/{id}/quantities", s.handleListQuantities)
	mux.HandleFunc("POST /api/projects/{id}/quantities", s.handleRecordQuantity)
	mux.HandleFunc("PUT /api/quantities/{id}", s.handleUpdateQuantity)
	mux.HandleFunc("DELETE /api/quantities/{id}", s.handleDeleteQuantity)

	mux.HandleFunc("GET /api/projects/{id}/rollup", s.handleRollup)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(clientIP, nil)

	var handler http.Handler = mux
	handler = s.writeRateLimit(limited, handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// writeRateLimit applies the rate limiter to mutating requests only; reads
// stay unthrottled.
func (s *Server) writeRateLimit(limited func(http.Handler) http.Handler, next http.Handler) http.Handler {
	throttled := limited(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			throttled.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP extracts the caller address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
