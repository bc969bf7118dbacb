package services

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-console/internal/client"
	"sales-console/internal/config"
	"sales-console/internal/models"
	"sales-console/internal/observability"
)

var backendBodies = map[string]string{
	"/categories/": `[{"id":1,"name":"Bebidas"},{"id":2,"name":"Doces"}]`,
	"/products/": `[
		{"id":"p1","name":"Suco","description":"Laranja","price":10.00,"category_ids":["1"]},
		{"id":"p2","name":"Bala","description":"Menta","price":5.50,"category_ids":["2"]},
		{"id":"p3","name":"Agua","description":"Sem gas","price":2.00,"category_ids":["1"]}
	]`,
	"/orders/":    `[]`,
	"/dashboard/": `{"total_orders":3,"average_order_value":12.5,"total_revenue":37.5,"orders_last_7_days":[]}`,
}

func newTestRegistry(t *testing.T, console config.ConsoleConfig) (*Registry, *prometheus.Registry) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := backendBodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	c := client.New(config.APIConfig{BaseURL: srv.URL, Timeout: time.Second}, srv.Client(), client.WithLogger(logger))

	r := NewRegistry(c, console, logger, metrics)
	t.Cleanup(r.CloseAll)
	return r, promRegistry
}

func openVisits(t *testing.T, reg *prometheus.Registry, page Kind) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "console_open_visits" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "page" && l.GetValue() == string(page) {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func defaultConsole() config.ConsoleConfig {
	return config.ConsoleConfig{NotifyTimeout: 6 * time.Second, VisitTTL: time.Minute, OrderPageSize: 2}
}

func waitSettled(t *testing.T, v *Visit) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !v.Snapshot().Loading
	}, time.Second, 5*time.Millisecond)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("settings")
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestOpen_BuildsStoresPerPage(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	tests := []struct {
		kind                                    Kind
		categories, products, orders, dashboard bool
	}{
		{KindCategories, true, false, false, false},
		{KindProducts, true, true, false, false},
		{KindOrders, false, true, true, false},
		{KindDashboard, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			v, err := r.Open(tt.kind)
			require.NoError(t, err)

			assert.Equal(t, tt.categories, v.Categories != nil)
			assert.Equal(t, tt.products, v.Products != nil)
			assert.Equal(t, tt.orders, v.Orders != nil)
			assert.Equal(t, tt.dashboard, v.Dashboard != nil)

			waitSettled(t, v)
			assert.Empty(t, v.Snapshot().Notices().Error)
		})
	}

	assert.Equal(t, 4, r.Stats().Total)
}

func TestOpen_UnknownKind(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	_, err := r.Open("settings")
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestAttachDetachClose(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	v, err := r.Open(KindCategories)
	require.NoError(t, err)

	_, err = r.Attach(v.ID, KindProducts)
	assert.ErrorIs(t, err, ErrWrongPage)

	got, err := r.Attach(v.ID, KindCategories)
	require.NoError(t, err)
	assert.Same(t, v, got)

	r.Detach(v.ID)
	r.Detach(v.ID)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Open[KindCategories])
	assert.Equal(t, 0, stats.Open[KindOrders])

	r.Close(v.ID)
	r.Close(v.ID)

	assert.True(t, v.Categories.Disposed())
	_, err = r.Get(v.ID)
	assert.ErrorIs(t, err, ErrVisitNotFound)
	_, err = r.Attach(v.ID, KindCategories)
	assert.ErrorIs(t, err, ErrVisitNotFound)

	stats = r.Stats()
	assert.Equal(t, 0, stats.Total)
	assert.EqualValues(t, 1, stats.Opened)
	assert.EqualValues(t, 1, stats.Closed)
}

func TestVisitsExpireUnlessAttached(t *testing.T) {
	console := defaultConsole()
	console.VisitTTL = 30 * time.Millisecond
	r, _ := newTestRegistry(t, console)

	idle, err := r.Open(KindDashboard)
	require.NoError(t, err)
	streamed, err := r.Open(KindDashboard)
	require.NoError(t, err)
	_, err = r.Attach(streamed.ID, KindDashboard)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return idle.Dashboard.Disposed()
	}, time.Second, 5*time.Millisecond)

	_, err = r.Get(streamed.ID)
	assert.NoError(t, err)
	assert.False(t, streamed.Dashboard.Disposed())

	r.Detach(streamed.ID)
	require.Eventually(t, func() bool {
		return streamed.Dashboard.Disposed()
	}, time.Second, 5*time.Millisecond)
}

func TestVisitMetrics(t *testing.T) {
	r, reg := newTestRegistry(t, defaultConsole())

	a, err := r.Open(KindOrders)
	require.NoError(t, err)
	_, err = r.Open(KindOrders)
	require.NoError(t, err)
	assert.Equal(t, 2.0, openVisits(t, reg, KindOrders))

	r.Close(a.ID)
	assert.Equal(t, 1.0, openVisits(t, reg, KindOrders))

	count, err := testutil.GatherAndCount(reg, "console_open_visits")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrderDraft_TotalFollowsSelection(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	v, err := r.Open(KindOrders)
	require.NoError(t, err)
	waitSettled(t, v)

	v.ToggleProduct("p1", true)
	d := v.ToggleProduct("p2", true)
	assert.Equal(t, []models.ID{"p1", "p2"}, d.ProductIDs)
	assert.Equal(t, "15.5", d.Total.String())

	d = v.ToggleProduct("p1", false)
	assert.Equal(t, []models.ID{"p2"}, d.ProductIDs)
	assert.Equal(t, "5.5", d.Total.String())

	v.SetOrderDate(models.NewDate(2024, time.January, 2))
	assert.NoError(t, v.OrderDraft().Validate())

	v.ResetOrderDraft()
	assert.Empty(t, v.OrderDraft().ProductIDs)
}

func TestOrderPage_Paginates(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	v, err := r.Open(KindOrders)
	require.NoError(t, err)
	waitSettled(t, v)

	p := v.OrderPage()
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 2, p.Total)
	assert.Len(t, p.Items, 2)
	assert.False(t, p.HasPrev())
	assert.True(t, p.HasNext())

	v.SetOrderPage(9)
	p = v.OrderPage()
	assert.Equal(t, 2, p.Number)
	require.Len(t, p.Items, 1)
	assert.Equal(t, models.ID("p3"), p.Items[0].ID)
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())
}

func TestPaginate_Empty(t *testing.T) {
	p := paginate(nil, 3, 6)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.Total)
	assert.Empty(t, p.Items)
}

func TestSnapshot_MergesNotices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := client.New(config.APIConfig{BaseURL: srv.URL, Timeout: time.Second}, srv.Client(), client.WithLogger(logger))
	r := NewRegistry(c, defaultConsole(), logger, nil)
	defer r.CloseAll()

	v, err := r.Open(KindProducts)
	require.NoError(t, err)
	waitSettled(t, v)

	n := v.Snapshot().Notices()
	assert.Contains(t, []string{"Erro ao buscar categorias", "Erro ao buscar produtos"}, n.Error)

	v.ClearNotifications()
	assert.Empty(t, v.Snapshot().Notices().Error)
}

func TestExpire_KeepsAttachedVisit(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	v, err := r.Open(KindCategories)
	require.NoError(t, err)
	_, err = r.Attach(v.ID, KindCategories)
	require.NoError(t, err)

	// A timer that fired just before the attach must not close the visit.
	r.expire(v.ID)

	_, err = r.Get(v.ID)
	require.NoError(t, err)
	assert.False(t, v.Closed())

	r.Detach(v.ID)
	r.expire(v.ID)
	assert.True(t, v.Closed())
	_, err = r.Get(v.ID)
	assert.ErrorIs(t, err, ErrVisitNotFound)
}

func TestVisitDone_ClosedOnClose(t *testing.T) {
	r, _ := newTestRegistry(t, defaultConsole())

	v, err := r.Open(KindOrders)
	require.NoError(t, err)

	select {
	case <-v.Done():
		t.Fatal("open visit reported done")
	default:
	}

	r.Close(v.ID)
	select {
	case <-v.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
}
