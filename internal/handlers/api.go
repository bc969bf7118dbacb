package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sales-console/internal/errors"
	"sales-console/internal/observability"
	"sales-console/internal/services"
)

type APIHandlers struct {
	registry *services.Registry
	logger   *slog.Logger
	version  string
}

func NewAPIHandlers(registry *services.Registry, logger *slog.Logger, version string) *APIHandlers {
	return &APIHandlers{
		registry: registry,
		logger:   logger,
		version:  version,
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.registry.Stats(), map[string]string{
		"Cache-Control": "no-store",
	})
}

// HandleVisit returns what a visit's stores hold right now.
func (h *APIHandlers) HandleVisit(w http.ResponseWriter, r *http.Request) {
	v, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.NotFound("visit not found"), observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, v.Snapshot(), map[string]string{
		"Cache-Control": "no-store",
	})
}
