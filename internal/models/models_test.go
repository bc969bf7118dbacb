package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-console/internal/errors"
)

func TestID_AcceptsStringAndNumber(t *testing.T) {
	var c []Category
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1,"name":"Bebidas"},{"id":"65a1f0","name":"Doces","product_ids":["x"]}]`), &c))

	assert.Equal(t, []Category{{ID: "1", Name: "Bebidas"}, {ID: "65a1f0", Name: "Doces"}}, c)

	out, err := json.Marshal(c[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","name":"Bebidas"}`, string(out))
}

func TestID_RejectsObjects(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"oid":"x"}`), &id))
}

func TestDate_Layouts(t *testing.T) {
	want := NewDate(2024, time.January, 5)

	for _, in := range []string{
		`"2024-01-05"`,
		`"2024-01-05T13:45:00"`,
		`"2024-01-05T13:45:00.123456"`,
		`"2024-01-05T13:45:00Z"`,
	} {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.True(t, d.Equal(want.Time), in)
	}

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`"05/01/2024"`), &bad))

	out, err := json.Marshal(want)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-05T00:00:00"`, string(out))
	assert.Equal(t, "2024-01-05", want.String())
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"R$ 1.234,56", "1234.56"},
		{"R$10,00", "10"},
		{"R$ 12,90", "12.9"},
		{"  R$  2.500,00 ", "2500"},
		{"R$\u00a099,99", "99.99"},
		{"5,5", "5.5"},
		{"12.90", "12.9"},
		{"abc", "0"},
		{"", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, ParsePrice(tt.in).Equal(decimal.RequireFromString(tt.want)), "ParsePrice(%q) = %s", tt.in, ParsePrice(tt.in))
		})
	}
}

func TestDrafts_Validate(t *testing.T) {
	price := decimal.RequireFromString("9.90")

	tests := []struct {
		name  string
		draft interface{ Validate() error }
		field string
	}{
		{"empty category", CategoryDraft{Name: ""}, "name"},
		{"blank category", CategoryDraft{Name: "   "}, "name"},
		{"product without name", ProductDraft{Description: "d", Price: price, CategoryIDs: []ID{"1"}}, "name"},
		{"product without description", ProductDraft{Name: "n", Price: price, CategoryIDs: []ID{"1"}}, "description"},
		{"product with zero price", ProductDraft{Name: "n", Description: "d", CategoryIDs: []ID{"1"}}, "price"},
		{"product without category", ProductDraft{Name: "n", Description: "d", Price: price}, "category_ids"},
		{"order without date", OrderDraft{ProductIDs: []ID{"1"}}, "date"},
		{"order without products", OrderDraft{Date: NewDate(2024, 1, 1)}, "product_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			require.Error(t, err)

			var v *errors.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
			assert.NotEmpty(t, v.Message)
		})
	}

	assert.NoError(t, CategoryDraft{Name: "Doces"}.Validate())
	assert.NoError(t, ProductDraft{Name: "n", Description: "d", Price: price, CategoryIDs: []ID{"1"}}.Validate())
	assert.NoError(t, OrderDraft{Date: NewDate(2024, 1, 1), ProductIDs: []ID{"1"}}.Validate())
}

func TestOrderDraft_RecomputeTotal(t *testing.T) {
	catalog := []Product{
		{ID: "p1", Name: "Café", Price: decimal.RequireFromString("10.00")},
		{ID: "p2", Name: "Bolo", Price: decimal.RequireFromString("5.50")},
		{ID: "p3", Name: "Suco", Price: decimal.RequireFromString("7.00")},
	}

	draft := OrderDraft{ProductIDs: []ID{"p1", "p2"}}
	draft.Recompute(catalog)
	assert.True(t, draft.Total.Equal(decimal.RequireFromString("15.50")), "total = %s", draft.Total)

	draft.Toggle("p3", true, catalog)
	assert.Equal(t, []ID{"p1", "p2", "p3"}, draft.ProductIDs)
	assert.True(t, draft.Total.Equal(decimal.RequireFromString("22.50")))

	draft.Toggle("p1", false, catalog)
	assert.Equal(t, []ID{"p2", "p3"}, draft.ProductIDs)
	assert.True(t, draft.Total.Equal(decimal.RequireFromString("12.50")))

	draft.Toggle("missing", true, catalog)
	assert.True(t, draft.Total.Equal(decimal.RequireFromString("12.50")))
}

func TestDrafts_MarshalAsNumbers(t *testing.T) {
	order := OrderDraft{
		Date:       NewDate(2024, time.March, 2),
		Total:      decimal.RequireFromString("15.50"),
		ProductIDs: []ID{"p1", "p2"},
	}
	out, err := json.Marshal(order)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-02T00:00:00","total":15.5,"product_ids":["p1","p2"]}`, string(out))

	product := ProductDraft{Name: "Café", Description: "Torrado", Price: decimal.RequireFromString("12.90"), CategoryIDs: []ID{"1"}}
	out, err = json.Marshal(product)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Café","description":"Torrado","price":12.9,"category_ids":["1"],"image_url":""}`, string(out))
}

func TestDashboardSummary_RequiresAllFields(t *testing.T) {
	var s DashboardSummary
	require.NoError(t, json.Unmarshal([]byte(`{"total_orders":3,"average_order_value":12.5,"total_revenue":37.5,"orders_last_7_days":[{"_id":"2024-01-01","count":2}]}`), &s))

	assert.Equal(t, 3, s.TotalOrders)
	assert.True(t, s.AverageOrderValue.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, s.TotalRevenue.Equal(decimal.RequireFromString("37.5")))
	assert.Equal(t, []DayCount{{Day: "2024-01-01", Count: 2}}, s.OrdersLast7Days)
	assert.NoError(t, s.Check())

	var missing DashboardSummary
	assert.ErrorContains(t, json.Unmarshal([]byte(`{"total_orders":3,"average_order_value":1,"total_revenue":3}`), &missing), "orders_last_7_days")
}

func TestRecords_Check(t *testing.T) {
	assert.Error(t, Category{Name: "x"}.Check())
	assert.Error(t, Category{ID: "1"}.Check())
	assert.Error(t, Product{ID: "1", Name: "x", Price: decimal.NewFromInt(-1)}.Check())
	assert.Error(t, Order{ID: "1"}.Check())
	assert.NoError(t, Order{ID: "1", Date: NewDate(2024, 1, 1)}.Check())
	assert.Error(t, DashboardSummary{OrdersLast7Days: []DayCount{{Count: 1}}}.Check())
}
