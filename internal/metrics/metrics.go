// Package metrics computes dashboard figures from the reconciled inventory and the
// sale history. All functions are pure.
package metrics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
	"stockdash/internal/inventory"
)

type SellerRevenue struct {
	SellerID string          `json:"seller_id"`
	Name     string          `json:"name"`
	Total    decimal.Decimal `json:"total"`
}

type Summary struct {
	TotalRevenue    decimal.Decimal         `json:"total_revenue"`
	TotalProfit     decimal.Decimal         `json:"total_profit"`
	SalesCount      int                     `json:"sales_count"`
	UnitsInStock    int                     `json:"units_in_stock"`
	ProductCount    int                     `json:"product_count"`
	OutOfStockCount int                     `json:"out_of_stock_count"`
	NegativeStock   int                     `json:"negative_stock_count"`
	SellerRanking   []SellerRevenue         `json:"seller_ranking"`
	ServerTotals    *domain.DashboardTotals `json:"server_totals,omitempty"`
}

func TotalRevenue(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.TotalValue)
	}
	return total
}

// SaleProfit is the sale value minus the product's purchase price times quantity.
func SaleProfit(sale domain.Sale, product domain.Product) decimal.Decimal {
	cost := product.PurchasePrice.Mul(decimal.NewFromInt(int64(sale.Quantity)))
	return sale.TotalValue.Sub(cost)
}

// TotalProfit sums SaleProfit over sales. Sales whose product no longer exists are
// left out rather than counted at zero cost.
func TotalProfit(sales []domain.Sale, products []domain.Product) decimal.Decimal {
	byID := indexProducts(products)
	total := decimal.Zero
	for _, s := range sales {
		product, ok := byID[s.ProductID]
		if !ok {
			continue
		}
		total = total.Add(SaleProfit(s, product))
	}
	return total
}

// SellerRanking totals the sales each seller took part in, highest first. Ties keep
// the input seller order.
func SellerRanking(sellers []domain.Seller, sales []domain.Sale) []SellerRevenue {
	ranking := make([]SellerRevenue, 0, len(sellers))
	for _, seller := range sellers {
		total := decimal.Zero
		for _, s := range sales {
			if s.SoldBy(seller.ID) {
				total = total.Add(s.TotalValue)
			}
		}
		ranking = append(ranking, SellerRevenue{SellerID: seller.ID, Name: seller.Name, Total: total})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Total.GreaterThan(ranking[j].Total)
	})
	return ranking
}

// OutOfStockCount counts items at exactly zero. Negative stock is an anomaly and is
// not counted here.
func OutOfStockCount(items []inventory.Item) int {
	count := 0
	for _, item := range items {
		if item.CurrentStock == 0 {
			count++
		}
	}
	return count
}

func UnitsInStock(items []inventory.Item) int {
	total := 0
	for _, item := range items {
		total += item.CurrentStock
	}
	return total
}

func Summarize(
	items []inventory.Item,
	products []domain.Product,
	sales []domain.Sale,
	sellers []domain.Seller,
) Summary {
	return Summary{
		TotalRevenue:    TotalRevenue(sales),
		TotalProfit:     TotalProfit(sales, products),
		SalesCount:      len(sales),
		UnitsInStock:    UnitsInStock(items),
		ProductCount:    len(items),
		OutOfStockCount: OutOfStockCount(items),
		NegativeStock:   len(inventory.Negative(items)),
		SellerRanking:   SellerRanking(sellers, sales),
	}
}

type ClientPurchase struct {
	SaleID      string          `json:"sale_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Date        string          `json:"date"`
}

type ClientHistory struct {
	domain.Client
	Purchases   []ClientPurchase `json:"purchases"`
	TotalOrders int              `json:"total_orders"`
	TotalSpent  decimal.Decimal  `json:"total_spent"`
}

// ClientHistories lists clients by name with their purchases, newest first. Only
// purchases whose product still exists are listed.
func ClientHistories(clients []domain.Client, sales []domain.Sale, products []domain.Product, search string) []ClientHistory {
	byID := indexProducts(products)
	needle := strings.ToLower(strings.TrimSpace(search))

	histories := make([]ClientHistory, 0, len(clients))
	for _, client := range clients {
		if needle != "" && !strings.Contains(strings.ToLower(client.Name), needle) {
			continue
		}
		history := ClientHistory{Client: client, Purchases: []ClientPurchase{}, TotalSpent: decimal.Zero}
		var matched []domain.Sale
		for _, s := range sales {
			if s.ClientID != nil && *s.ClientID == client.ID {
				matched = append(matched, s)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
		for _, s := range matched {
			product, ok := byID[s.ProductID]
			if !ok {
				continue
			}
			history.Purchases = append(history.Purchases, ClientPurchase{
				SaleID:      s.ID,
				ProductName: product.Name,
				Quantity:    s.Quantity,
				TotalValue:  s.TotalValue,
				Date:        s.Date.Format("2006-01-02"),
			})
			history.TotalSpent = history.TotalSpent.Add(s.TotalValue)
		}
		history.TotalOrders = len(history.Purchases)
		histories = append(histories, history)
	}
	sort.SliceStable(histories, func(i, j int) bool {
		return strings.ToLower(histories[i].Name) < strings.ToLower(histories[j].Name)
	})
	return histories
}

func indexProducts(products []domain.Product) map[string]domain.Product {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID
}
