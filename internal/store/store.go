// Package store keeps the console's view of backend collections. A Store
// loads its collection once, accepts new records through Create and carries
// a one-shot error and success notification for the page to show.
package store

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sales-console/internal/client"
	"sales-console/internal/errors"
	"sales-console/internal/models"
	"sales-console/internal/observability"
)

type Phase int

const (
	Idle Phase = iota
	Loading
	Loaded
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "idle"
	}
}

// Notices is the overlay shown on top of a page. Empty means nothing to
// show.
type Notices struct {
	Error   string `json:"error,omitempty"`
	Success string `json:"success,omitempty"`

	// Raised counts notices set so far. Raising the same text again still
	// moves it.
	Raised uint64 `json:"-"`
}

type State[T any] struct {
	Items []T   `json:"items"`
	Phase Phase `json:"-"`
	Notices
}

// Loading reports whether the first load has yet to complete.
func (s State[T]) Loading() bool {
	return s.Phase != Loaded
}

// Resource names a backend collection and the messages shown for it.
type Resource struct {
	Name         string
	ListFailed   string
	CreateFailed string
	Created      string
}

var (
	CategoriesResource = Resource{
		Name:         client.Categories,
		ListFailed:   "Erro ao buscar categorias",
		CreateFailed: "Erro ao adicionar categoria",
		Created:      "Categoria adicionada com sucesso!",
	}
	ProductsResource = Resource{
		Name:         client.Products,
		ListFailed:   "Erro ao buscar produtos",
		CreateFailed: "Erro ao adicionar produto",
		Created:      "Produto adicionado com sucesso!",
	}
	OrdersResource = Resource{
		Name:         client.Orders,
		ListFailed:   "Erro ao buscar pedidos",
		CreateFailed: "Erro ao adicionar pedido",
		Created:      "Pedido adicionado com sucesso!",
	}
	DashboardResource = Resource{
		Name:       client.Dashboard,
		ListFailed: "Erro ao buscar dados do dashboard",
	}
)

type Draft interface {
	Validate() error
}

// Backend performs the remote half of store operations.
type Backend[T any, D Draft] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, draft D) (T, error)
}

type restBackend[T any, D Draft] struct {
	client   *client.Client
	resource string
}

// REST binds a Backend to a resource collection served by c.
func REST[T any, D Draft](c *client.Client, resource string) Backend[T, D] {
	return restBackend[T, D]{client: c, resource: resource}
}

func (b restBackend[T, D]) List(ctx context.Context) ([]T, error) {
	return client.List[T](ctx, b.client, b.resource)
}

func (b restBackend[T, D]) Create(ctx context.Context, draft D) (T, error) {
	return client.Create[T](ctx, b.client, b.resource, draft)
}

type options struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func buildOptions(resource string, opts []Option) options {
	o := options{
		logger: slog.Default(),
		tracer: otel.Tracer(observability.TracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("resource", resource)
	return o
}

type Store[T any, D Draft] struct {
	cell     *cell[State[T]]
	backend  Backend[T, D]
	resource Resource
	options
}

// New builds a store whose automatic load is already queued; it runs once
// Start is called.
func New[T any, D Draft](backend Backend[T, D], resource Resource, opts ...Option) *Store[T, D] {
	s := &Store[T, D]{
		cell:     newCell(State[T]{Items: []T{}}),
		backend:  backend,
		resource: resource,
		options:  buildOptions(resource.Name, opts),
	}
	s.cell.enqueue(s.load)
	return s
}

// Start launches the writer. Calling it again does nothing.
func (s *Store[T, D]) Start() {
	s.cell.start()
}

// Load fetches the collection again and waits for the result to apply.
func (s *Store[T, D]) Load(ctx context.Context) error {
	return s.cell.submit(ctx, s.load)
}

func (s *Store[T, D]) load(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Store.Load",
		trace.WithAttributes(attribute.String("resource", s.resource.Name)))
	defer span.End()

	s.cell.update(func(st *State[T]) {
		st.Phase = Loading
	})

	items, err := s.backend.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		if ctx.Err() != nil {
			s.cell.update(func(st *State[T]) {
				st.Phase = Loaded
			})
			return
		}
		s.logger.ErrorContext(ctx, "list failed", "error", err)
		s.fail(s.resource.ListFailed, func(st *State[T]) {
			st.Phase = Loaded
		})
		return
	}

	if items == nil {
		items = []T{}
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	s.cell.update(func(st *State[T]) {
		st.Items = items
		st.Phase = Loaded
	})
}

// Create validates draft locally and, when it passes, posts it. The record
// the server returns is appended to the collection as it stands when the
// response arrives.
func (s *Store[T, D]) Create(ctx context.Context, draft D) (T, error) {
	var zero T

	if err := draft.Validate(); err != nil {
		var ve *errors.ValidationError
		msg := err.Error()
		if stderrors.As(err, &ve) {
			msg = ve.Message
		}
		s.fail(msg, nil)
		return zero, err
	}

	var (
		created   T
		createErr error
	)
	err := s.cell.submit(ctx, func(ctx context.Context) {
		created, createErr = s.create(ctx, draft)
	})
	if err != nil {
		return zero, err
	}
	if createErr != nil {
		return zero, createErr
	}
	return created, nil
}

func (s *Store[T, D]) create(ctx context.Context, draft D) (T, error) {
	ctx, span := s.tracer.Start(ctx, "Store.Create",
		trace.WithAttributes(attribute.String("resource", s.resource.Name)))
	defer span.End()

	created, err := s.backend.Create(ctx, draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "create failed", "error", err)
			s.fail(s.resource.CreateFailed, nil)
		}
		return created, err
	}

	if s.cell.update(func(st *State[T]) {
		st.Items = append(st.Items, created)
		st.Success = s.resource.Created
		st.Raised++
	}) {
		s.metrics.Notification(s.resource.Name, "success")
	}
	return created, nil
}

// ClearNotifications empties both notices.
func (s *Store[T, D]) ClearNotifications() {
	s.cell.update(func(st *State[T]) {
		st.Error = ""
		st.Success = ""
	})
}

func (s *Store[T, D]) fail(msg string, also func(*State[T])) {
	if s.cell.update(func(st *State[T]) {
		st.Error = msg
		st.Raised++
		if also != nil {
			also(st)
		}
	}) {
		s.metrics.Notification(s.resource.Name, "error")
	}
}

func (s *Store[T, D]) Snapshot() State[T] {
	var out State[T]
	s.cell.read(func(st *State[T]) {
		out = *st
		out.Items = slices.Clone(st.Items)
	})
	return out
}

// Changes signals after every state update. Signals coalesce, so readers
// should take a Snapshot on each receive.
func (s *Store[T, D]) Changes() <-chan struct{} {
	return s.cell.changes
}

// Done is closed once the store is disposed.
func (s *Store[T, D]) Done() <-chan struct{} {
	return s.cell.ctx.Done()
}

// Dispose cancels in-flight requests. State stays frozen afterwards.
func (s *Store[T, D]) Dispose() {
	s.cell.dispose()
}

func (s *Store[T, D]) Disposed() bool {
	return s.cell.isDisposed()
}

type (
	Categories = Store[models.Category, models.CategoryDraft]
	Products   = Store[models.Product, models.ProductDraft]
	Orders     = Store[models.Order, models.OrderDraft]
)

func NewCategories(c *client.Client, opts ...Option) *Categories {
	return New(REST[models.Category, models.CategoryDraft](c, client.Categories), CategoriesResource, opts...)
}

func NewProducts(c *client.Client, opts ...Option) *Products {
	return New(REST[models.Product, models.ProductDraft](c, client.Products), ProductsResource, opts...)
}

func NewOrders(c *client.Client, opts ...Option) *Orders {
	return New(REST[models.Order, models.OrderDraft](c, client.Orders), OrdersResource, opts...)
}
