package inventory

import (
	"stockdash/internal/domain"
)

// Item is a product with its derived stock. It is never persisted.
type Item struct {
	domain.Product
	CurrentStock int `json:"current_stock"`
	// ServerStock is true when CurrentStock came from the backend aggregate.
	ServerStock bool `json:"server_stock"`
}

// Reconcile derives current stock for every product, in product order.
//
// A figure in serverStock is used verbatim for its product. Otherwise stock is the
// sum of replenished quantities minus the sum of sold quantities for the product.
// The result depends only on the contents of the inputs. Negative stock is a data
// anomaly and is returned as is.
func Reconcile(
	products []domain.Product,
	replenishments []domain.Replenishment,
	sales []domain.Sale,
	serverStock map[string]int,
) []Item {
	replenished := make(map[string]int, len(products))
	for _, r := range replenishments {
		replenished[r.ProductID] += r.Quantity
	}
	sold := make(map[string]int, len(products))
	for _, s := range sales {
		sold[s.ProductID] += s.Quantity
	}

	items := make([]Item, 0, len(products))
	for _, p := range products {
		if figure, ok := serverStock[p.ID]; ok {
			items = append(items, Item{Product: p, CurrentStock: figure, ServerStock: true})
			continue
		}
		items = append(items, Item{Product: p, CurrentStock: replenished[p.ID] - sold[p.ID]})
	}
	return items
}

// OutOfStock returns the items whose stock is exactly zero.
func OutOfStock(items []Item) []Item {
	out := make([]Item, 0)
	for _, item := range items {
		if item.CurrentStock == 0 {
			out = append(out, item)
		}
	}
	return out
}

// Negative returns the items whose stock went below zero.
func Negative(items []Item) []Item {
	out := make([]Item, 0)
	for _, item := range items {
		if item.CurrentStock < 0 {
			out = append(out, item)
		}
	}
	return out
}

// Find returns the item for a product id.
func Find(items []Item, productID string) (Item, bool) {
	for _, item := range items {
		if item.ID == productID {
			return item, true
		}
	}
	return Item{}, false
}
