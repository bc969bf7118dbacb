package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/sync/errgroup"

	"sales-console/internal/errors"
	"sales-console/internal/models"
	"sales-console/internal/observability"
	"sales-console/internal/services"
	"sales-console/internal/store"
	"sales-console/internal/ui/templates"
)

type SSEHandlers struct {
	registry      *services.Registry
	logger        *slog.Logger
	notifyTimeout time.Duration
}

func NewSSEHandlers(registry *services.Registry, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		registry:      registry,
		logger:        logger,
		notifyTimeout: registry.Console().NotifyTimeout,
	}
}

type categorySignals struct {
	Name string `json:"name"`
}

type productSignals struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	CategoryIDs []string `json:"categoryIds"`
}

type orderSignals struct {
	Date string `json:"date"`
}

func pageKind(r *http.Request) (services.Kind, error) {
	return services.ParseKind(chi.URLParam(r, "page"))
}

// visit resolves the visit named by the request, writing the error response
// when it cannot.
func (h *SSEHandlers) visit(w http.ResponseWriter, r *http.Request, kind services.Kind) (*services.Visit, bool) {
	requestID := observability.GetRequestID(r.Context())

	v, err := h.registry.Get(r.URL.Query().Get("visit"))
	if err != nil || v.Closed() {
		errors.WriteError(w, h.logger, errors.NotFound("visit not found"), requestID)
		return nil, false
	}
	if v.Kind != kind {
		errors.WriteError(w, h.logger, errors.BadRequest("visit belongs to another page"), requestID)
		return nil, false
	}
	return v, true
}

func viewOf(v *services.Visit) templates.View {
	view := templates.View{
		VisitID: v.ID,
		Page:    v.Kind,
		State:   v.Snapshot(),
	}
	if v.Kind == services.KindOrders {
		view.Draft = v.OrderDraft()
		view.Catalog = v.OrderPage()
	}
	return view
}

func patchView(sse *datastar.ServerSentEventGenerator, view templates.View) error {
	if err := sse.PatchElementTempl(templates.Content(view)); err != nil {
		return err
	}
	return sse.PatchElementTempl(templates.Toasts(view))
}

// HandleStream keeps the page in step with its stores until the browser
// leaves. Notices are cleared after the notify timeout.
func (h *SSEHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	kind, err := pageKind(r)
	if err != nil {
		errors.WriteError(w, h.logger, errors.NotFound("page not found"), observability.GetRequestID(r.Context()))
		return
	}

	v, err := h.registry.Attach(r.URL.Query().Get("visit"), kind)
	if err != nil {
		appErr := errors.NotFound("visit not found")
		if stderrors.Is(err, services.ErrWrongPage) {
			appErr = errors.BadRequest("visit belongs to another page")
		}
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}
	defer h.registry.Detach(v.ID)

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.DebugContext(r.Context(), "write deadline kept", "error", err)
	}

	sse := datastar.NewSSE(w, r)
	h.logger.DebugContext(r.Context(), "stream attached", "visit_id", v.ID, "page", kind)

	g, ctx := errgroup.WithContext(r.Context())
	changed := make(chan struct{}, 1)
	for _, ch := range v.Changes() {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-v.Done():
					return nil
				case <-ch:
					select {
					case changed <- struct{}{}:
					default:
					}
				}
			}
		})
	}

	g.Go(func() error {
		dismiss := time.NewTimer(h.notifyTimeout)
		dismiss.Stop()
		defer dismiss.Stop()

		var shown store.Notices
		for {
			view := viewOf(v)
			if err := patchView(sse, view); err != nil {
				return err
			}

			if n := view.State.Notices(); n != shown {
				shown = n
				dismiss.Stop()
				if templates.HasNotices(n) {
					dismiss.Reset(h.notifyTimeout)
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case <-v.Done():
				return nil
			case <-changed:
			case <-dismiss.C:
				v.ClearNotifications()
			}
		}
	})

	if err := g.Wait(); err != nil && r.Context().Err() == nil {
		h.logger.WarnContext(r.Context(), "stream ended", "visit_id", v.ID, "error", err)
	}
	h.logger.DebugContext(r.Context(), "stream detached", "visit_id", v.ID)
}

// HandleCreate submits the page form. Outcome notices reach the browser
// through the stream.
func (h *SSEHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	kind, err := pageKind(r)
	if err != nil || kind == services.KindDashboard {
		errors.WriteError(w, h.logger, errors.NotFound("page not found"), observability.GetRequestID(r.Context()))
		return
	}
	v, ok := h.visit(w, r, kind)
	if !ok {
		return
	}

	ctx := r.Context()
	switch kind {
	case services.KindCategories:
		var s categorySignals
		if !h.readSignals(w, r, &s) {
			return
		}
		_, err = v.Categories.Create(ctx, models.CategoryDraft{Name: strings.TrimSpace(s.Name)})

	case services.KindProducts:
		var s productSignals
		if !h.readSignals(w, r, &s) {
			return
		}
		ids := make([]models.ID, 0, len(s.CategoryIDs))
		for _, id := range s.CategoryIDs {
			ids = append(ids, models.ID(id))
		}
		_, err = v.Products.Create(ctx, models.ProductDraft{
			Name:        strings.TrimSpace(s.Name),
			Description: strings.TrimSpace(s.Description),
			Price:       models.ParsePrice(s.Price),
			CategoryIDs: ids,
			ImageURL:    strings.TrimSpace(s.ImageURL),
		})

	case services.KindOrders:
		var s orderSignals
		if !h.readSignals(w, r, &s) {
			return
		}
		var date models.Date
		if s.Date != "" {
			if date, err = models.ParseDate(s.Date); err != nil {
				h.logger.DebugContext(ctx, "order date rejected", "date", s.Date, "error", err)
			}
		}
		v.SetOrderDate(date)
		_, err = v.Orders.Create(ctx, v.OrderDraft())
		if err == nil {
			v.ResetOrderDraft()
		}
	}

	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.logger.DebugContext(ctx, "create rejected", "page", kind, "error", err)
		return
	}
	if err := sse.MarshalAndPatchSignals(templates.FormSignals(kind)); err != nil {
		h.logger.WarnContext(ctx, "reset form signals", "error", err)
	}
	if kind == services.KindOrders {
		if err := sse.PatchElementTempl(templates.Content(viewOf(v))); err != nil {
			h.logger.WarnContext(ctx, "patch order content", "error", err)
		}
	}
}

func (h *SSEHandlers) readSignals(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := datastar.ReadSignals(r, dst); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid signals"), observability.GetRequestID(r.Context()))
		return false
	}
	return true
}

// HandleDismiss is the toast close button.
func (h *SSEHandlers) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	kind, err := pageKind(r)
	if err != nil {
		errors.WriteError(w, h.logger, errors.NotFound("page not found"), observability.GetRequestID(r.Context()))
		return
	}
	v, ok := h.visit(w, r, kind)
	if !ok {
		return
	}

	v.ClearNotifications()
	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(templates.Toasts(viewOf(v))); err != nil {
		h.logger.WarnContext(r.Context(), "patch toasts", "error", err)
	}
}

// HandleSelect flips one product in the order being composed.
func (h *SSEHandlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r, services.KindOrders)
	if !ok {
		return
	}

	id := models.ID(r.URL.Query().Get("product"))
	if id == "" {
		errors.WriteError(w, h.logger, errors.BadRequest("product is required"), observability.GetRequestID(r.Context()))
		return
	}
	selected := slices.Contains(v.OrderDraft().ProductIDs, id)
	v.ToggleProduct(id, !selected)

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(templates.Content(viewOf(v))); err != nil {
		h.logger.WarnContext(r.Context(), "patch order content", "error", err)
	}
}

// HandleOrderPage moves the product list of the order form.
func (h *SSEHandlers) HandleOrderPage(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r, services.KindOrders)
	if !ok {
		return
	}

	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid page number"), observability.GetRequestID(r.Context()))
		return
	}
	v.SetOrderPage(n)

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(templates.Content(viewOf(v))); err != nil {
		h.logger.WarnContext(r.Context(), "patch order content", "error", err)
	}
}
