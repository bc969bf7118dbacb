package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sales-console/internal/models"
	"sales-console/internal/services"
)

func sseRequest(method, page, visitID, body string, extra ...string) *http.Request {
	target := "/sse/" + page + "?visit=" + visitID
	for i := 0; i+1 < len(extra); i += 2 {
		target += "&" + extra[i] + "=" + extra[i+1]
	}

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	return withParams(r, "page", page)
}

// streamRequest carries ctx under the route params so chi can still read
// them.
func streamRequest(ctx context.Context, page, visitID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/sse/"+page+"?visit="+visitID, nil).WithContext(ctx)
	return withParams(r, "page", page)
}

// signalingRecorder closes wrote on the first body write.
type signalingRecorder struct {
	*httptest.ResponseRecorder
	once  sync.Once
	wrote chan struct{}
}

func newSignalingRecorder() *signalingRecorder {
	return &signalingRecorder{ResponseRecorder: httptest.NewRecorder(), wrote: make(chan struct{})}
}

func (r *signalingRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseRecorder.Write(b)
	r.once.Do(func() { close(r.wrote) })
	return n, err
}

func (r *signalingRecorder) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

func TestNewSSEHandlers(t *testing.T) {
	registry, _ := newTestRegistry(t)
	logger := testLogger()

	handlers := NewSSEHandlers(registry, logger)

	if handlers.registry != registry {
		t.Error("NewSSEHandlers() should set registry field")
	}
	if handlers.logger != logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
	if handlers.notifyTimeout != 6*time.Second {
		t.Errorf("notifyTimeout = %v, want 6s", handlers.notifyTimeout)
	}
}

func TestSSEHandlers_HandleStream(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindCategories)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	h.HandleStream(w, streamRequest(ctx, "categories", v.ID))

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
	}

	body := w.Body.String()
	for _, want := range []string{"datastar-patch-elements", `id="content"`, `id="toasts"`, "Bebidas", "Doces"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream should contain %q", want)
		}
	}

	if _, err := registry.Get(v.ID); err != nil {
		t.Error("visit should survive the stream ending")
	}
}

func TestSSEHandlers_HandleStream_Errors(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindCategories)

	tests := []struct {
		name   string
		page   string
		visit  string
		status int
	}{
		{"unknown page", "settings", v.ID, http.StatusNotFound},
		{"unknown visit", "categories", "nope", http.StatusNotFound},
		{"other page", "orders", v.ID, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleStream(w, sseRequest(http.MethodGet, tt.page, tt.visit, ""))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestSSEHandlers_HandleStream_DismissesNotices(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	h.notifyTimeout = 20 * time.Millisecond
	v := openSettled(t, registry, services.KindCategories)

	if _, err := v.Categories.Create(context.Background(), models.CategoryDraft{}); err == nil {
		t.Fatal("an empty category should be rejected")
	}
	if v.Snapshot().Notices().Error == "" {
		t.Fatal("expected an error notice before streaming")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	h.HandleStream(httptest.NewRecorder(), streamRequest(ctx, "categories", v.ID))

	if n := v.Snapshot().Notices(); n.Error != "" || n.Success != "" {
		t.Errorf("notices = %+v, want cleared after the notify timeout", n)
	}
}

func TestSSEHandlers_HandleCreate_Category(t *testing.T) {
	registry, b := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindCategories)

	w := httptest.NewRecorder()
	h.HandleCreate(w, sseRequest(http.MethodPost, "categories", v.ID, `{"name":"  Frutas "}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "datastar-patch-signals") {
		t.Error("a successful create should reset the form signals")
	}
	if got := string(b.posted("/categories/")); got != `{"name":"Frutas"}` {
		t.Errorf("posted %s, want trimmed name", got)
	}

	state := v.Categories.Snapshot()
	if len(state.Items) != 3 || state.Items[2].Name != "Frutas" {
		t.Errorf("categories = %+v, want Frutas appended", state.Items)
	}
	if state.Success != "Categoria adicionada com sucesso!" {
		t.Errorf("success = %q", state.Success)
	}
}

func TestSSEHandlers_HandleCreate_Invalid(t *testing.T) {
	registry, b := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindCategories)

	w := httptest.NewRecorder()
	h.HandleCreate(w, sseRequest(http.MethodPost, "categories", v.ID, `{"name":"   "}`))

	if strings.Contains(w.Body.String(), "datastar-patch-signals") {
		t.Error("a rejected create should keep the form signals")
	}
	if b.posted("/categories/") != nil {
		t.Error("an invalid draft should not reach the backend")
	}

	state := v.Categories.Snapshot()
	if len(state.Items) != 2 {
		t.Errorf("categories = %d, want 2", len(state.Items))
	}
	if state.Error == "" {
		t.Error("expected a validation notice")
	}
}

func TestSSEHandlers_HandleCreate_ProductBackendFailure(t *testing.T) {
	registry, b := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindProducts)

	body := `{"name":"Queijo","description":"Minas","price":"12,90","imageUrl":"","categoryIds":["1"]}`
	h.HandleCreate(httptest.NewRecorder(), sseRequest(http.MethodPost, "products", v.ID, body))

	posted := string(b.posted("/products/"))
	for _, want := range []string{`"name":"Queijo"`, `"price":12.9`, `"category_ids":["1"]`} {
		if !strings.Contains(posted, want) {
			t.Errorf("posted %s, should contain %s", posted, want)
		}
	}

	state := v.Products.Snapshot()
	if state.Error != "Erro ao adicionar produto" {
		t.Errorf("error = %q, want the create failure message", state.Error)
	}
	if len(state.Items) != 2 {
		t.Errorf("products = %d, want 2", len(state.Items))
	}
}

func TestSSEHandlers_HandleCreate_Errors(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	categories := openSettled(t, registry, services.KindCategories)
	dashboard := openSettled(t, registry, services.KindDashboard)

	tests := []struct {
		name   string
		page   string
		visit  string
		body   string
		status int
	}{
		{"dashboard has no form", "dashboard", dashboard.ID, `{}`, http.StatusNotFound},
		{"unknown visit", "categories", "nope", `{"name":"x"}`, http.StatusNotFound},
		{"other page", "products", categories.ID, `{"name":"x"}`, http.StatusBadRequest},
		{"bad signals", "categories", categories.ID, `{"name":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleCreate(w, sseRequest(http.MethodPost, tt.page, tt.visit, tt.body))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestSSEHandlers_OrderFlow(t *testing.T) {
	registry, b := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindOrders)

	w := httptest.NewRecorder()
	h.HandleSelect(w, sseRequest(http.MethodPost, "orders", v.ID, "", "product", "p1"))
	if !strings.Contains(w.Body.String(), "datastar-patch-elements") {
		t.Error("select should patch the order content")
	}

	draft := v.OrderDraft()
	if len(draft.ProductIDs) != 1 || draft.ProductIDs[0] != "p1" {
		t.Fatalf("selection = %v, want [p1]", draft.ProductIDs)
	}
	if !draft.Total.Equal(models.ParsePrice("10")) {
		t.Errorf("total = %s, want 10", draft.Total)
	}

	w = httptest.NewRecorder()
	h.HandleCreate(w, sseRequest(http.MethodPost, "orders", v.ID, `{"date":"2026-10-14"}`))

	posted := string(b.posted("/orders/"))
	for _, want := range []string{`"date":"2026-10-14T00:00:00"`, `"total":10`, `"product_ids":["p1"]`} {
		if !strings.Contains(posted, want) {
			t.Errorf("posted %s, should contain %s", posted, want)
		}
	}

	if n := len(v.Orders.Snapshot().Items); n != 2 {
		t.Errorf("orders = %d, want 2", n)
	}
	if d := v.OrderDraft(); len(d.ProductIDs) != 0 || !d.Total.IsZero() {
		t.Errorf("draft = %+v, want reset after create", d)
	}
}

func TestSSEHandlers_HandleSelect_Toggles(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindOrders)

	for i := 0; i < 2; i++ {
		h.HandleSelect(httptest.NewRecorder(), sseRequest(http.MethodPost, "orders", v.ID, "", "product", "p2"))
	}
	if ids := v.OrderDraft().ProductIDs; len(ids) != 0 {
		t.Errorf("selection = %v, want empty after two clicks", ids)
	}

	w := httptest.NewRecorder()
	h.HandleSelect(w, sseRequest(http.MethodPost, "orders", v.ID, ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d without a product", w.Code, http.StatusBadRequest)
	}
}

func TestSSEHandlers_HandleOrderPage(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindOrders)

	w := httptest.NewRecorder()
	h.HandleOrderPage(w, sseRequest(http.MethodPost, "orders", v.ID, "", "n", "abc"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = httptest.NewRecorder()
	h.HandleOrderPage(w, sseRequest(http.MethodPost, "orders", v.ID, "", "n", "9"))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if p := v.OrderPage(); p.Number != 1 || p.Total != 1 {
		t.Errorf("page = %d/%d, want clamped to 1/1", p.Number, p.Total)
	}
}

func TestSSEHandlers_HandleDismiss(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindCategories)

	v.Categories.Create(context.Background(), models.CategoryDraft{})

	w := httptest.NewRecorder()
	h.HandleDismiss(w, sseRequest(http.MethodPost, "categories", v.ID, ""))

	if !strings.Contains(w.Body.String(), `id="toasts"`) {
		t.Error("dismiss should patch the toasts")
	}
	if n := v.Snapshot().Notices(); n.Error != "" {
		t.Errorf("error = %q, want cleared", n.Error)
	}
}

func TestSSEHandlers_HandleStream_RepeatedNoticeRestartsTimer(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	h.notifyTimeout = 300 * time.Millisecond
	v := openSettled(t, registry, services.KindCategories)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.HandleStream(httptest.NewRecorder(), streamRequest(ctx, "categories", v.ID))
	}()
	defer func() {
		cancel()
		<-done
	}()

	v.Categories.Create(context.Background(), models.CategoryDraft{})
	time.Sleep(200 * time.Millisecond)
	v.Categories.Create(context.Background(), models.CategoryDraft{})
	time.Sleep(150 * time.Millisecond)

	if v.Snapshot().Notices().Error == "" {
		t.Fatal("a repeated notice should get a fresh timeout")
	}

	deadline := time.Now().Add(2 * time.Second)
	for v.Snapshot().Notices().Error != "" {
		if time.Now().After(deadline) {
			t.Fatal("repeated notice was never dismissed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSSEHandlers_HandleStream_EndsWhenVisitCloses(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindDashboard)

	w := newSignalingRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.HandleStream(w, streamRequest(context.Background(), "dashboard", v.ID))
	}()

	select {
	case <-w.wrote:
	case <-time.After(time.Second):
		t.Fatal("stream never patched")
	}
	registry.Close(v.ID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream kept running after its visit closed")
	}
}

func TestSSEHandlers_ClosedVisitRejected(t *testing.T) {
	registry, _ := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindCategories)
	registry.Close(v.ID)

	w := httptest.NewRecorder()
	h.HandleDismiss(w, sseRequest(http.MethodPost, "categories", v.ID, ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !v.Closed() {
		t.Error("closed visit should report Closed")
	}
}

func TestSSEHandlers_HandleCreate_OrderBadDate(t *testing.T) {
	registry, b := newTestRegistry(t)
	h := NewSSEHandlers(registry, testLogger())
	v := openSettled(t, registry, services.KindOrders)
	v.ToggleProduct("p1", true)

	h.HandleCreate(httptest.NewRecorder(), sseRequest(http.MethodPost, "orders", v.ID, `{"date":"14/13/2026"}`))

	if b.posted("/orders/") != nil {
		t.Error("an unreadable date should not reach the backend")
	}
	if got := v.Orders.Snapshot().Error; got != "Preencha todos os campos corretamente." {
		t.Errorf("error = %q, want the validation message", got)
	}
	if len(v.OrderDraft().ProductIDs) != 1 {
		t.Error("a rejected order should keep its selection")
	}
}
