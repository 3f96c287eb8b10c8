package service

import (
	"time"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
)

// state is the local projection of confirmed server state. Every change after a
// load goes through one of the apply methods below, each called only once the
// backend has confirmed the write. Callers hold Service.mu.
type state struct {
	loaded         bool
	products       []domain.Product
	replenishments []domain.Replenishment
	sales          []domain.Sale
	sellers        []domain.Seller
	clients        []domain.Client

	// serverStock is nil when the server-side aggregate is unavailable.
	serverStock map[string]int
	totals      *domain.DashboardTotals

	loadErr   error
	failed    map[string]string
	loadedAt  time.Time
	actionErr *ActionError
}

func (st *state) product(id string) (domain.Product, bool) {
	for _, p := range st.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (st *state) upsertProduct(p domain.Product) {
	for i := range st.products {
		if st.products[i].ID == p.ID {
			if p.CreatedAt == nil {
				p.CreatedAt = st.products[i].CreatedAt
			}
			st.products[i] = p
			return
		}
	}
	st.products = append(st.products, p)
}

// patchProduct replaces a known product and reports whether it was found.
func (st *state) patchProduct(p domain.Product) bool {
	for i := range st.products {
		if st.products[i].ID == p.ID {
			if p.CreatedAt == nil {
				p.CreatedAt = st.products[i].CreatedAt
			}
			st.products[i] = p
			return true
		}
	}
	return false
}

func (st *state) removeProduct(id string) {
	st.products = deleteWhere(st.products, func(p domain.Product) bool { return p.ID == id })
	delete(st.serverStock, id)
}

func (st *state) appendReplenishment(r domain.Replenishment) {
	st.replenishments = append(st.replenishments, r)
	st.shiftServerStock(r.ProductID, r.Quantity)
}

func (st *state) appendSale(s domain.Sale) {
	st.sales = append(st.sales, s)
	st.shiftServerStock(s.ProductID, -s.Quantity)
	st.shiftTotals(s, 1)
}

func (st *state) removeSale(id string) (domain.Sale, bool) {
	for i, s := range st.sales {
		if s.ID == id {
			st.sales = append(st.sales[:i:i], st.sales[i+1:]...)
			st.shiftServerStock(s.ProductID, s.Quantity)
			st.shiftTotals(s, -1)
			return s, true
		}
	}
	return domain.Sale{}, false
}

func (st *state) upsertClient(c domain.Client) {
	for i := range st.clients {
		if st.clients[i].ID == c.ID {
			st.clients[i] = c
			return
		}
	}
	st.clients = append(st.clients, c)
}

func (st *state) clientByName(name string) (domain.Client, bool) {
	for _, c := range st.clients {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Client{}, false
}

// shiftServerStock moves a cached server figure by delta. Products without a
// figure keep deriving stock from the local fold.
func (st *state) shiftServerStock(productID string, delta int) {
	if st.serverStock == nil {
		return
	}
	if figure, ok := st.serverStock[productID]; ok {
		st.serverStock[productID] = figure + delta
	}
}

func (st *state) shiftTotals(s domain.Sale, sign int64) {
	if st.totals == nil {
		return
	}
	n := decimal.NewFromInt(sign)
	st.totals.TotalRevenue = st.totals.TotalRevenue.Add(s.TotalValue.Mul(n))
	st.totals.SalesCount += int(sign)
	if p, ok := st.product(s.ProductID); ok {
		profit := s.TotalValue.Sub(p.PurchasePrice.Mul(decimal.NewFromInt(int64(s.Quantity))))
		st.totals.TotalProfit = st.totals.TotalProfit.Add(profit.Mul(n))
	}
}

func deleteWhere[T any](items []T, match func(T) bool) []T {
	out := items[:0:0]
	for _, item := range items {
		if !match(item) {
			out = append(out, item)
		}
	}
	return out
}
