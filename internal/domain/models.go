package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Image         *string         `json:"image,omitempty"`
	Active        bool            `json:"active"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

// UnitProfit is base price minus purchase price. It may be negative.
func (p Product) UnitProfit() decimal.Decimal {
	return p.BasePrice.Sub(p.PurchasePrice)
}

// Replenishment is an append-only stock entry.
type Replenishment struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Date      time.Time       `json:"date"`
}

// Sale keeps name snapshots of the client and sellers taken when it was recorded.
type Sale struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
	SellerIDs   []string        `json:"seller_ids"`
	ClientID    *string         `json:"client_id,omitempty"`
	ClientName  *string         `json:"client_name,omitempty"`
	ClientPhone *string         `json:"client_phone,omitempty"`
	SellerNames string          `json:"seller_names"`
	Date        time.Time       `json:"date"`
}

func (s Sale) SoldBy(sellerID string) bool {
	for _, id := range s.SellerIDs {
		if id == sellerID {
			return true
		}
	}
	return false
}

type Seller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phone     *string    `json:"phone,omitempty"`
	Email     *string    `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// StockFigure is one row of the server-side stock aggregate.
type StockFigure struct {
	ProductID    string `json:"product_id"`
	CurrentStock int    `json:"current_stock"`
}

type DashboardTotals struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	SalesCount   int             `json:"sales_count"`
}

// CatalogImportRow is one line of the "name, cost, price, qty" product sheet.
type CatalogImportRow struct {
	Name          string          `json:"name"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Quantity      int             `json:"quantity"`
}

type CatalogImportResult struct {
	TotalRows int      `json:"total_rows"`
	Imported  int      `json:"imported"`
	Failed    int      `json:"failed"`
	Failures  []string `json:"failures,omitempty"`
	// Warnings lists rows whose product was created but whose initial stock was not.
	Warnings  []string `json:"warnings,omitempty"`
}

// LedgerImportRow mirrors the columns of the legacy bookkeeping spreadsheet.
// The JSON names are the ones the backend import function expects.
type LedgerImportRow struct {
	RestockDate string   `json:"dataReposicao,omitempty"`
	Description string   `json:"descricao,omitempty"`
	UnitValue   *float64 `json:"valorUnitario,omitempty"`
	Units       *float64 `json:"unidades,omitempty"`
	TotalValue  *float64 `json:"valorTotal,omitempty"`
	CostPerItem *float64 `json:"custoPorProduto,omitempty"`
	Sales       *float64 `json:"vendas,omitempty"`
	SellerName  string   `json:"nomeVendedor,omitempty"`
}

type LedgerImportResult struct {
	Sent     int `json:"sent"`
	Imported int `json:"imported"`
}

type TableCount struct {
	Table string `json:"table"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}
