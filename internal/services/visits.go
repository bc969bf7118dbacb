package services

import (
	stderrors "errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sales-console/internal/client"
	"sales-console/internal/config"
	"sales-console/internal/models"
	"sales-console/internal/observability"
	"sales-console/internal/store"
)

var (
	ErrUnknownPage   = stderrors.New("unknown page")
	ErrVisitNotFound = stderrors.New("visit not found")
	ErrWrongPage     = stderrors.New("visit belongs to another page")
)

// Kind identifies a console page.
type Kind string

const (
	KindCategories Kind = "categories"
	KindProducts   Kind = "products"
	KindOrders     Kind = "orders"
	KindDashboard  Kind = "dashboard"
)

var Kinds = []Kind{KindDashboard, KindCategories, KindProducts, KindOrders}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(Kinds, k) {
		return "", ErrUnknownPage
	}
	return k, nil
}

type Registry struct {
	client    *client.Client
	console   config.ConsoleConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
	storeOpts []store.Option

	mu     sync.RWMutex
	visits map[string]*Visit
	opened atomic.Int64
	closed atomic.Int64
}

func NewRegistry(c *client.Client, console config.ConsoleConfig, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		client:  c,
		console: console,
		logger:  logger,
		metrics: metrics,
		storeOpts: []store.Option{
			store.WithLogger(logger),
			store.WithMetrics(metrics),
		},
		visits: make(map[string]*Visit),
	}
}

func (r *Registry) Console() config.ConsoleConfig {
	return r.console
}

// Open builds and starts the stores a page needs. The visit expires after
// the configured TTL unless a stream attaches to it.
func (r *Registry) Open(kind Kind) (*Visit, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	v := &Visit{
		ID:       uuid.NewString(),
		Kind:     kind,
		Opened:   time.Now(),
		pageSize: r.console.OrderPageSize,
	}
	switch kind {
	case KindCategories:
		v.Categories = store.NewCategories(r.client, r.storeOpts...)
	case KindProducts:
		v.Products = store.NewProducts(r.client, r.storeOpts...)
		v.Categories = store.NewCategories(r.client, r.storeOpts...)
	case KindOrders:
		v.Orders = store.NewOrders(r.client, r.storeOpts...)
		v.Products = store.NewProducts(r.client, r.storeOpts...)
	case KindDashboard:
		v.Dashboard = store.NewDashboardREST(r.client, r.storeOpts...)
	}

	r.mu.Lock()
	r.visits[v.ID] = v
	v.expiry = time.AfterFunc(r.console.VisitTTL, func() { r.expire(v.ID) })
	r.mu.Unlock()

	for _, s := range v.lifecycles() {
		s.Start()
	}

	r.opened.Add(1)
	r.metrics.VisitOpened(string(kind))
	r.logger.Debug("visit opened", "visit_id", v.ID, "page", kind)
	return v, nil
}

func (r *Registry) Get(id string) (*Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	return v, nil
}

// Attach marks the visit as streamed, holding off expiry until Detach.
func (r *Registry) Attach(id string, kind Kind) (*Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	if v.Kind != kind {
		return nil, ErrWrongPage
	}
	v.streams++
	v.expiry.Stop()
	return v, nil
}

// Detach releases a stream. The last stream to leave restarts the expiry,
// so a reconnecting browser finds its visit again.
func (r *Registry) Detach(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok || v.streams == 0 {
		return
	}
	v.streams--
	if v.streams == 0 {
		v.expiry.Reset(r.console.VisitTTL)
	}
}

// expire closes the visit unless a stream attached since the timer fired.
func (r *Registry) expire(id string) {
	v := r.remove(id, true)
	if v == nil {
		return
	}
	r.logger.Debug("visit expired", "visit_id", id)
	r.closeVisit(v)
}

// Close disposes every store of the visit and forgets it.
func (r *Registry) Close(id string) {
	if v := r.remove(id, false); v != nil {
		r.closeVisit(v)
	}
}

// remove takes the visit out of the registry. With idleOnly set, a visit
// that has streams attached stays.
func (r *Registry) remove(id string, idleOnly bool) *Visit {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok || (idleOnly && v.streams > 0) {
		return nil
	}
	delete(r.visits, id)
	v.expiry.Stop()
	return v
}

func (r *Registry) closeVisit(v *Visit) {
	v.dispose()
	r.closed.Add(1)
	r.metrics.VisitClosed(string(v.Kind))
	r.logger.Debug("visit closed", "visit_id", v.ID, "page", v.Kind)
}

// CloseAll disposes every open visit.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := slices.Collect(maps.Keys(r.visits))
	r.mu.RUnlock()

	for _, id := range ids {
		r.Close(id)
	}
}

type Stats struct {
	Open   map[Kind]int `json:"open"`
	Total  int          `json:"total"`
	Opened int64        `json:"opened"`
	Closed int64        `json:"closed"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Open:   make(map[Kind]int, len(Kinds)),
		Total:  len(r.visits),
		Opened: r.opened.Load(),
		Closed: r.closed.Load(),
	}
	for _, k := range Kinds {
		s.Open[k] = 0
	}
	for _, v := range r.visits {
		s.Open[v.Kind]++
	}
	return s
}

// Visit is one browser page view and the stores behind it.
type Visit struct {
	ID     string
	Kind   Kind
	Opened time.Time

	Categories *store.Categories
	Products   *store.Products
	Orders     *store.Orders
	Dashboard  *store.Dashboard

	// guarded by Registry.mu
	streams int
	expiry  *time.Timer

	mu        sync.Mutex
	draft     models.OrderDraft
	orderPage int
	pageSize  int
}

type lifecycle interface {
	Start()
	Dispose()
	ClearNotifications()
	Changes() <-chan struct{}
	Done() <-chan struct{}
	Disposed() bool
}

func (v *Visit) lifecycles() []lifecycle {
	var out []lifecycle
	if v.Categories != nil {
		out = append(out, v.Categories)
	}
	if v.Products != nil {
		out = append(out, v.Products)
	}
	if v.Orders != nil {
		out = append(out, v.Orders)
	}
	if v.Dashboard != nil {
		out = append(out, v.Dashboard)
	}
	return out
}

// Changes returns the change signals of every store of the visit.
func (v *Visit) Changes() []<-chan struct{} {
	stores := v.lifecycles()
	out := make([]<-chan struct{}, 0, len(stores))
	for _, s := range stores {
		out = append(out, s.Changes())
	}
	return out
}

// ClearNotifications closes the toast on every store of the page.
func (v *Visit) ClearNotifications() {
	for _, s := range v.lifecycles() {
		s.ClearNotifications()
	}
}

// Done is closed once the visit has been closed.
func (v *Visit) Done() <-chan struct{} {
	return v.lifecycles()[0].Done()
}

// Closed reports whether the visit's stores have been disposed.
func (v *Visit) Closed() bool {
	return v.lifecycles()[0].Disposed()
}

func (v *Visit) dispose() {
	for _, s := range v.lifecycles() {
		s.Dispose()
	}
}

func (v *Visit) catalog() []models.Product {
	if v.Products == nil {
		return nil
	}
	return v.Products.Snapshot().Items
}

// OrderDraft returns the order being composed, with its total derived from
// the current product catalog.
func (v *Visit) OrderDraft() models.OrderDraft {
	v.mu.Lock()
	defer v.mu.Unlock()

	d := v.draft
	d.ProductIDs = slices.Clone(v.draft.ProductIDs)
	d.Recompute(v.catalog())
	return d
}

func (v *Visit) ToggleProduct(id models.ID, checked bool) models.OrderDraft {
	v.mu.Lock()
	v.draft.Toggle(id, checked, v.catalog())
	v.mu.Unlock()
	return v.OrderDraft()
}

func (v *Visit) SetOrderDate(d models.Date) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft.Date = d
}

func (v *Visit) ResetOrderDraft() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = models.OrderDraft{}
}

// Page is one page of the product catalog for the order form.
type Page struct {
	Items  []models.Product
	Number int
	Total  int
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.Total }

// SetOrderPage moves the order form's product list. OrderPage clamps the
// number to the pages available.
func (v *Visit) SetOrderPage(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orderPage = n
}

func (v *Visit) OrderPage() Page {
	v.mu.Lock()
	n := v.orderPage
	v.mu.Unlock()
	return paginate(v.catalog(), n, v.pageSize)
}

func paginate(items []models.Product, n, size int) Page {
	if size <= 0 {
		size = len(items)
	}
	total := 1
	if size > 0 && len(items) > 0 {
		total = (len(items) + size - 1) / size
	}
	n = min(max(n, 1), total)

	start := min((n-1)*size, len(items))
	end := min(start+size, len(items))
	return Page{Items: items[start:end], Number: n, Total: total}
}

// Snapshot is the JSON view of a visit.
type Snapshot struct {
	ID         string                        `json:"id"`
	Page       Kind                          `json:"page"`
	Opened     time.Time                     `json:"opened"`
	Categories *store.State[models.Category] `json:"categories,omitempty"`
	Products   *store.State[models.Product]  `json:"products,omitempty"`
	Orders     *store.State[models.Order]    `json:"orders,omitempty"`
	Dashboard  *store.DashboardState         `json:"dashboard,omitempty"`
	Loading    bool                          `json:"loading"`
}

func (v *Visit) Snapshot() Snapshot {
	s := Snapshot{ID: v.ID, Page: v.Kind, Opened: v.Opened}
	if v.Categories != nil {
		st := v.Categories.Snapshot()
		s.Categories = &st
		s.Loading = s.Loading || st.Loading()
	}
	if v.Products != nil {
		st := v.Products.Snapshot()
		s.Products = &st
		s.Loading = s.Loading || st.Loading()
	}
	if v.Orders != nil {
		st := v.Orders.Snapshot()
		s.Orders = &st
		s.Loading = s.Loading || st.Loading()
	}
	if v.Dashboard != nil {
		st := v.Dashboard.Snapshot()
		s.Dashboard = &st
		s.Loading = s.Loading || st.Loading()
	}
	return s
}

// Notices merges the notices of the page's stores. The first non-empty
// message of each kind wins.
func (s Snapshot) Notices() store.Notices {
	var out store.Notices
	for _, n := range s.notices() {
		if out.Error == "" {
			out.Error = n.Error
		}
		if out.Success == "" {
			out.Success = n.Success
		}
		out.Raised += n.Raised
	}
	return out
}

func (s Snapshot) notices() []store.Notices {
	var out []store.Notices
	if s.Categories != nil {
		out = append(out, s.Categories.Notices)
	}
	if s.Products != nil {
		out = append(out, s.Products.Notices)
	}
	if s.Orders != nil {
		out = append(out, s.Orders.Notices)
	}
	if s.Dashboard != nil {
		out = append(out, s.Dashboard.Notices)
	}
	return out
}
