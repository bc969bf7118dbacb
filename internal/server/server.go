package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sales-console/internal/handlers"
	"sales-console/internal/services"
)

type Server struct {
	router       chi.Router
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	pageHandlers *handlers.PageHandlers
	sseHandlers  *handlers.SSEHandlers
	gatherer     prometheus.Gatherer
}

type Option func(*Server)

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func NewServer(registry *services.Registry, logger *slog.Logger, version string, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		logger:       logger,
		apiHandlers:  handlers.NewAPIHandlers(registry, logger, version),
		pageHandlers: handlers.NewPageHandlers(registry, logger),
		sseHandlers:  handlers.NewSSEHandlers(registry, logger),
		gatherer:     prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/admin/stats", s.apiHandlers.HandleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/visits/{id}", s.apiHandlers.HandleVisit)

	// Datastar SSE endpoints
	r.Route("/sse", func(r chi.Router) {
		r.Post("/orders/select", s.sseHandlers.HandleSelect)
		r.Post("/orders/page", s.sseHandlers.HandleOrderPage)
		r.Get("/{page}", s.sseHandlers.HandleStream)
		r.Post("/{page}", s.sseHandlers.HandleCreate)
		r.Post("/{page}/dismiss", s.sseHandlers.HandleDismiss)
	})

	// Pages
	r.Get("/", s.pageHandlers.HandleRoot)
	r.Get("/{page}", s.pageHandlers.HandlePage)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
