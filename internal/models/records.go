package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

func (c Category) Check() error {
	if c.ID == "" {
		return fmt.Errorf("category: missing id")
	}
	if c.Name == "" {
		return fmt.Errorf("category %s: missing name", c.ID)
	}
	return nil
}

type Product struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryIDs []ID            `json:"category_ids"`
	ImageURL    string          `json:"image_url,omitempty"`
}

func (p Product) Check() error {
	if p.ID == "" {
		return fmt.Errorf("product: missing id")
	}
	if p.Name == "" {
		return fmt.Errorf("product %s: missing name", p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %s: negative price", p.ID)
	}
	return nil
}

type Order struct {
	ID         ID              `json:"id"`
	Date       Date            `json:"date"`
	Total      decimal.Decimal `json:"total"`
	ProductIDs []ID            `json:"product_ids"`
}

func (o Order) Check() error {
	if o.ID == "" {
		return fmt.Errorf("order: missing id")
	}
	if o.Date.IsZero() {
		return fmt.Errorf("order %s: missing date", o.ID)
	}
	return nil
}

type DayCount struct {
	Day   string `json:"_id"`
	Count int    `json:"count"`
}

// DashboardSummary is computed by the backend on every fetch.
type DashboardSummary struct {
	TotalOrders       int             `json:"total_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	OrdersLast7Days   []DayCount      `json:"orders_last_7_days"`
}

type dashboardWire struct {
	TotalOrders       *int             `json:"total_orders"`
	AverageOrderValue *decimal.Decimal `json:"average_order_value"`
	TotalRevenue      *decimal.Decimal `json:"total_revenue"`
	OrdersLast7Days   *[]DayCount      `json:"orders_last_7_days"`
}

// UnmarshalJSON requires every summary field to be present.
func (s *DashboardSummary) UnmarshalJSON(b []byte) error {
	var w dashboardWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	switch {
	case w.TotalOrders == nil:
		return fmt.Errorf("dashboard: missing total_orders")
	case w.AverageOrderValue == nil:
		return fmt.Errorf("dashboard: missing average_order_value")
	case w.TotalRevenue == nil:
		return fmt.Errorf("dashboard: missing total_revenue")
	case w.OrdersLast7Days == nil:
		return fmt.Errorf("dashboard: missing orders_last_7_days")
	}

	*s = DashboardSummary{
		TotalOrders:       *w.TotalOrders,
		AverageOrderValue: *w.AverageOrderValue,
		TotalRevenue:      *w.TotalRevenue,
		OrdersLast7Days:   *w.OrdersLast7Days,
	}
	return nil
}

func (s DashboardSummary) Check() error {
	if s.TotalOrders < 0 {
		return fmt.Errorf("dashboard: negative total_orders")
	}
	for i, d := range s.OrdersLast7Days {
		if d.Day == "" {
			return fmt.Errorf("dashboard: day %d has no label", i)
		}
	}
	return nil
}
