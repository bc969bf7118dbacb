package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sales-console/internal/client"
	"sales-console/internal/models"
)

type SummarySource interface {
	Summary(ctx context.Context) (models.DashboardSummary, error)
}

type restSummary struct {
	client *client.Client
}

func (r restSummary) Summary(ctx context.Context) (models.DashboardSummary, error) {
	return client.Get[models.DashboardSummary](ctx, r.client, client.Dashboard)
}

type DashboardState struct {
	Summary *models.DashboardSummary `json:"summary"`
	Phase   Phase                    `json:"-"`
	Notices
}

func (s DashboardState) Loading() bool {
	return s.Phase != Loaded
}

// Dashboard holds the aggregate figures for the landing page. It has no
// create path.
type Dashboard struct {
	cell   *cell[DashboardState]
	source SummarySource
	options
}

func NewDashboard(source SummarySource, opts ...Option) *Dashboard {
	d := &Dashboard{
		cell:    newCell(DashboardState{}),
		source:  source,
		options: buildOptions(DashboardResource.Name, opts),
	}
	d.cell.enqueue(d.load)
	return d
}

func NewDashboardREST(c *client.Client, opts ...Option) *Dashboard {
	return NewDashboard(restSummary{client: c}, opts...)
}

func (d *Dashboard) Start() {
	d.cell.start()
}

func (d *Dashboard) Load(ctx context.Context) error {
	return d.cell.submit(ctx, d.load)
}

func (d *Dashboard) load(ctx context.Context) {
	ctx, span := d.tracer.Start(ctx, "Dashboard.Load",
		trace.WithAttributes(attribute.String("resource", DashboardResource.Name)))
	defer span.End()

	d.cell.update(func(st *DashboardState) {
		if st.Phase == Idle {
			st.Phase = Loading
		}
	})

	summary, err := d.source.Summary(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summary failed")
		if ctx.Err() != nil {
			d.cell.update(func(st *DashboardState) {
				st.Phase = Loaded
			})
			return
		}
		d.logger.ErrorContext(ctx, "dashboard load failed", "error", err)
		if d.cell.update(func(st *DashboardState) {
			st.Error = DashboardResource.ListFailed
			st.Raised++
			st.Phase = Loaded
		}) {
			d.metrics.Notification(DashboardResource.Name, "error")
		}
		return
	}

	d.cell.update(func(st *DashboardState) {
		st.Summary = &summary
		st.Phase = Loaded
	})
}

func (d *Dashboard) ClearNotifications() {
	d.cell.update(func(st *DashboardState) {
		st.Error = ""
		st.Success = ""
	})
}

// Loading is true until the first load finishes, successful or not.
func (d *Dashboard) Loading() bool {
	return d.Snapshot().Loading()
}

func (d *Dashboard) Snapshot() DashboardState {
	var out DashboardState
	d.cell.read(func(st *DashboardState) {
		out = *st
		if st.Summary != nil {
			summary := *st.Summary
			summary.OrdersLast7Days = append([]models.DayCount(nil), st.Summary.OrdersLast7Days...)
			out.Summary = &summary
		}
	})
	return out
}

func (d *Dashboard) Changes() <-chan struct{} {
	return d.cell.changes
}

func (d *Dashboard) Done() <-chan struct{} {
	return d.cell.ctx.Done()
}

func (d *Dashboard) Dispose() {
	d.cell.dispose()
}

func (d *Dashboard) Disposed() bool {
	return d.cell.isDisposed()
}
