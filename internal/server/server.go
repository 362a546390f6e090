// Package server exposes inventories, dislocation maps and run history over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/census"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/inventory"
	"github.com/sells-group/incore-data/internal/monitoring"
	"github.com/sells-group/incore-data/internal/store"
)

// InventoryBuilder builds a classified inventory for county FIPS codes.
type InventoryBuilder interface {
	FromFIPS(ctx context.Context, fipsList []string, opts inventory.Options) (*inventory.Inventory, error)
}

// DislocationRunner builds a block-group dislocation dataset.
type DislocationRunner interface {
	Run(ctx context.Context, opts census.DislocationOptions) (*census.DislocationResult, error)
}

// CountyLister lists the counties of a state.
type CountyLister interface {
	Counties(ctx context.Context, state string) ([]fips.County, error)
}

// UpstreamStates reports the circuit state of each remote host.
type UpstreamStates interface {
	HostStates() map[string]string
}

// Defaults are applied to requests that do not override them.
type Defaults struct {
	Vintage      string
	Dataset      string
	TigerBaseURL string
	TigerYear    int
	WorkDir      string // scratch space for shapefile downloads
	Random       bool
	Seed         uint64
}

// Deps wires the server. Store, Collector and Upstreams are optional.
type Deps struct {
	Inventory   InventoryBuilder
	Dislocation DislocationRunner
	Counties    CountyLister
	Store       store.Store
	Collector   *monitoring.Collector
	Metrics     *monitoring.Metrics
	Upstreams   UpstreamStates
	Defaults    Defaults
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router returns the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get("/health", s.health)
	r.Handle("/metrics", s.deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/states", s.listStates)
		r.Get("/states/{state}/counties", s.listCounties)
		r.Get("/inventory/{fips}", s.getInventory)
		r.Get("/dislocation/{fips}/map", s.getDislocationMap)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/runs/{id}/buildings", s.getRunBuildings)
		r.Get("/status", s.getStatus)
	})
	return r
}

// observe logs and records every request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.deps.Metrics.ObserveHTTP(route, r.Method, strconv.Itoa(status), elapsed)

		zap.L().Debug("http request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
