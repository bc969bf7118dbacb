package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"sales-console/internal/errors"
)

const (
	msgCategoryName = "Preencha o nome da categoria."
	msgAllFields    = "Preencha todos os campos corretamente."
)

type CategoryDraft struct {
	Name string `json:"name"`
}

func (d CategoryDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.NewValidation("name", msgCategoryName)
	}
	return nil
}

type ProductDraft struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryIDs []ID
	ImageURL    string
}

func (d ProductDraft) Validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return errors.NewValidation("name", msgAllFields)
	case strings.TrimSpace(d.Description) == "":
		return errors.NewValidation("description", msgAllFields)
	case !d.Price.IsPositive():
		return errors.NewValidation("price", msgAllFields)
	case len(d.CategoryIDs) == 0:
		return errors.NewValidation("category_ids", msgAllFields)
	}
	return nil
}

func (d ProductDraft) MarshalJSON() ([]byte, error) {
	categoryIDs := d.CategoryIDs
	if categoryIDs == nil {
		categoryIDs = []ID{}
	}
	return json.Marshal(struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Price       json.Number `json:"price"`
		CategoryIDs []ID        `json:"category_ids"`
		ImageURL    string      `json:"image_url"`
	}{d.Name, d.Description, jsonNumber(d.Price), categoryIDs, d.ImageURL})
}

// OrderDraft keeps Total in step with ProductIDs through Recompute; the
// total the server stores is authoritative once the order is created.
type OrderDraft struct {
	Date       Date
	Total      decimal.Decimal
	ProductIDs []ID
}

func (d OrderDraft) Validate() error {
	if d.Date.IsZero() {
		return errors.NewValidation("date", msgAllFields)
	}
	if len(d.ProductIDs) == 0 {
		return errors.NewValidation("product_ids", msgAllFields)
	}
	return nil
}

// Recompute sets Total to the sum of prices of the selected products found
// in catalog.
func (d *OrderDraft) Recompute(catalog []Product) {
	selected := make(map[ID]struct{}, len(d.ProductIDs))
	for _, id := range d.ProductIDs {
		selected[id] = struct{}{}
	}

	total := decimal.Zero
	for _, p := range catalog {
		if _, ok := selected[p.ID]; ok {
			total = total.Add(p.Price)
		}
	}
	d.Total = total
}

// Toggle adds or removes a product from the selection, keeping order of
// selection, then recomputes the total.
func (d *OrderDraft) Toggle(id ID, checked bool, catalog []Product) {
	idx := -1
	for i, existing := range d.ProductIDs {
		if existing == id {
			idx = i
			break
		}
	}

	switch {
	case checked && idx < 0:
		d.ProductIDs = append(d.ProductIDs, id)
	case !checked && idx >= 0:
		d.ProductIDs = append(d.ProductIDs[:idx:idx], d.ProductIDs[idx+1:]...)
	}

	d.Recompute(catalog)
}

func (d OrderDraft) MarshalJSON() ([]byte, error) {
	productIDs := d.ProductIDs
	if productIDs == nil {
		productIDs = []ID{}
	}
	return json.Marshal(struct {
		Date       Date        `json:"date"`
		Total      json.Number `json:"total"`
		ProductIDs []ID        `json:"product_ids"`
	}{d.Date, jsonNumber(d.Total), productIDs})
}
