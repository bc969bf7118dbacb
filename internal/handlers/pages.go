package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sales-console/internal/errors"
	"sales-console/internal/observability"
	"sales-console/internal/services"
	"sales-console/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	registry *services.Registry
	logger   *slog.Logger
}

func NewPageHandlers(registry *services.Registry, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		registry: registry,
		logger:   logger,
	}
}

func (h *PageHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+string(services.KindDashboard), http.StatusFound)
}

// HandlePage opens a visit for the page and renders it. The page then
// streams its state from /sse/{page}.
func (h *PageHandlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	kind, err := services.ParseKind(chi.URLParam(r, "page"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.NotFound("page not found"), requestID)
		return
	}

	v, err := h.registry.Open(kind)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.Layout(kind, templates.Page(viewOf(v))).Render(ctx, w); err != nil {
		h.logger.ErrorContext(ctx, "render page", "page", kind, "error", err)
		h.registry.Close(v.ID)
	}
}
