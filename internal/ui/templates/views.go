// Package templates holds the console's templ components. Edit the .templ
// files and run templ generate; the _templ.go files are generated.
package templates

import (
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"sales-console/internal/models"
	"sales-console/internal/services"
	"sales-console/internal/store"
)

const (
	ContentID = "content"
	ToastsID  = "toasts"

	placeholderImage = "https://placehold.co/400"
	datastarBundle   = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"
)

var navigation = []struct {
	kind  services.Kind
	label string
}{
	{services.KindDashboard, "Home"},
	{services.KindProducts, "Produtos"},
	{services.KindCategories, "Categorias"},
	{services.KindOrders, "Pedidos"},
}

var titles = map[services.Kind]string{
	services.KindDashboard:  "Dashboard",
	services.KindCategories: "Categorias",
	services.KindProducts:   "Produtos",
	services.KindOrders:     "Pedidos",
}

const styles = `
body{margin:0;font-family:system-ui,sans-serif;background:#fafafa;color:#212121}
.appbar{display:flex;align-items:center;gap:8px;padding:12px 24px;background:#1976d2;color:#fff}
.appbar .brand{flex-grow:1;font-size:1.25rem;font-weight:500}
.appbar a{color:#fff;text-decoration:none;text-transform:uppercase;padding:6px 8px;border-radius:4px}
.appbar a.active{background:rgba(255,255,255,.16)}
main{max-width:1200px;margin:16px auto;padding:0 16px}
h1{text-align:center;font-size:3rem}
form label{display:block;margin:12px 0}
form input,form select{display:block;width:100%;padding:8px;box-sizing:border-box}
button{background:#1976d2;color:#fff;border:0;border-radius:4px;padding:8px 16px;text-transform:uppercase;cursor:pointer}
table{width:100%;border-collapse:collapse;background:#fff}
th,td{text-align:left;padding:12px;border-bottom:1px solid #e0e0e0}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(280px,1fr));gap:24px}
.card{background:#fff;border-radius:4px;box-shadow:0 1px 3px rgba(0,0,0,.2);overflow:hidden}
.card img{width:100%;height:200px;object-fit:cover}
.card .body{padding:16px}
.price{color:#1976d2;font-weight:600}
.stat{background:#fff;border-radius:12px;box-shadow:0 2px 6px rgba(0,0,0,.2);padding:32px;text-align:center}
.stat strong{display:block;font-size:2.5rem;color:#1976d2}
.day{display:flex;justify-content:space-between;padding:16px;background:#f5f5f5;border-radius:8px;margin:8px 0}
.pagination{display:flex;justify-content:center;gap:8px;margin:24px 0}
.spinner{margin:48px auto;width:48px;height:48px;border:4px solid #e0e0e0;border-top-color:#1976d2;border-radius:50%;animation:spin 1s linear infinite}
@keyframes spin{to{transform:rotate(360deg)}}
#toasts{position:fixed;left:24px;bottom:24px;display:flex;flex-direction:column;gap:8px}
.toast{display:flex;gap:16px;align-items:center;padding:8px 16px;border-radius:4px;color:#fff}
.toast.error{background:#d32f2f}
.toast.success{background:#2e7d32}
.toast button{background:transparent;padding:0}
`

// View is everything a page needs to render at one instant.
type View struct {
	VisitID string
	Page    services.Kind
	State   services.Snapshot
	Draft   models.OrderDraft
	Catalog services.Page
}

func (v View) streamPath() string {
	return "/sse/" + string(v.Page)
}

func (v View) streamAction() string {
	return "@get('" + visitURL(v.streamPath(), v.VisitID) + "')"
}

func (v View) submitAction() string {
	return post(v.streamPath(), v.VisitID)
}

func (v View) dismissAction() string {
	return post(v.streamPath()+"/dismiss", v.VisitID)
}

func (v View) selectAction(id models.ID) string {
	return post("/sse/orders/select", v.VisitID, "product", id.String())
}

func (v View) pageAction(n int) string {
	return post("/sse/orders/page", v.VisitID, "n", strconv.Itoa(n))
}

func (v View) selected(id models.ID) bool {
	return slices.Contains(v.Draft.ProductIDs, id)
}

// categoryNames lists the names of p's categories known to the page.
func (v View) categoryNames(p models.Product) string {
	names := map[models.ID]string{}
	if v.State.Categories != nil {
		for _, c := range v.State.Categories.Items {
			names[c.ID] = c.Name
		}
	}
	labels := make([]string, 0, len(p.CategoryIDs))
	for _, id := range p.CategoryIDs {
		labels = append(labels, names[id])
	}
	return strings.Join(labels, ", ")
}

// FormSignals are the client-side signals bound to a page's form, at their
// reset values.
func FormSignals(kind services.Kind) map[string]any {
	switch kind {
	case services.KindCategories:
		return map[string]any{"name": ""}
	case services.KindProducts:
		return map[string]any{"name": "", "description": "", "price": "", "imageUrl": "", "categoryIds": []string{}}
	case services.KindOrders:
		return map[string]any{"date": ""}
	default:
		return map[string]any{}
	}
}

// HasNotices reports whether n carries anything to show.
func HasNotices(n store.Notices) bool {
	return n.Error != "" || n.Success != ""
}

func navHref(kind services.Kind) templ.SafeURL {
	return templ.SafeURL("/" + string(kind))
}

func imageSrc(p models.Product) string {
	if p.ImageURL == "" {
		return placeholderImage
	}
	return p.ImageURL
}

func pageNumbers(total int) []int {
	out := make([]int, 0, total)
	for n := 1; n <= total; n++ {
		out = append(out, n)
	}
	return out
}

func signalsJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func visitURL(path, visitID string, extra ...string) string {
	q := url.Values{"visit": {visitID}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return path + "?" + q.Encode()
}

func post(path, visitID string, extra ...string) string {
	return "@post('" + visitURL(path, visitID, extra...) + "')"
}
