// Package normalize is the single boundary between backend rows and domain types.
// Each column is read from the primary (localized) name and falls back to the
// secondary (English) name; absent fields become zero values. Nothing here
// returns an error or panics.
package normalize

import (
	"time"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
	"stockdash/internal/gateway"
)

// Column names of the primary scheme, used for writes and filters.
const (
	ColID = "id"

	ColName      = "nome"
	ColPurchase  = "preco_compra"
	ColBase      = "preco_venda"
	ColImage     = "imagem"
	ColActive    = "ativo"
	ColCreatedAt = "created_at"

	ColProductID = "produto_id"
	ColQuantity  = "quantidade"
	ColUnitPrice = "preco_unitario"
	ColTotalCost = "custo_total"
	ColDate      = "data"

	ColTotalValue  = "valor_total"
	ColSellerIDs   = "vendedor_ids"
	ColClientID    = "cliente_id"
	ColClientName  = "cliente_nome"
	ColClientPhone = "cliente_telefone"
	ColSellerNames = "vendedores_nomes"

	ColPhone = "telefone"
	ColEmail = "email"
)

// Column lists requested on load.
var (
	ProductColumns       = []string{ColID, ColName, ColPurchase, ColBase, ColImage, ColActive}
	ReplenishmentColumns = []string{ColID, ColProductID, ColQuantity, ColUnitPrice, ColTotalCost, ColDate}
	SaleColumns          = []string{ColID, ColProductID, ColQuantity, ColTotalValue, ColSellerIDs, ColDate, ColClientID, ColClientName, ColClientPhone, ColSellerNames}
	SellerColumns        = []string{ColID, ColName}
	ClientColumns        = []string{ColID, ColName, ColPhone, ColEmail, ColCreatedAt}
)

func Product(row gateway.Row) domain.Product {
	return domain.Product{
		ID:            asString(row[ColID]),
		Name:          asString(pick(row, ColName, "name")),
		PurchasePrice: asDecimal(pick(row, ColPurchase, "purchase_price")),
		BasePrice:     asDecimal(pick(row, ColBase, "base_price")),
		Image:         asOptionalString(pick(row, ColImage, "image")),
		Active:        asBool(pick(row, ColActive, "active"), true),
		CreatedAt:     asOptionalTime(row[ColCreatedAt]),
	}
}

func Replenishment(row gateway.Row) domain.Replenishment {
	return domain.Replenishment{
		ID:        asString(row[ColID]),
		ProductID: asString(pick(row, ColProductID, "product_id")),
		Quantity:  asInt(pick(row, ColQuantity, "quantity")),
		UnitPrice: asDecimal(pick(row, ColUnitPrice, "unit_price")),
		TotalCost: asDecimal(pick(row, ColTotalCost, "total_cost")),
		Date:      asTime(pick(row, ColDate, "date")),
	}
}

func Sale(row gateway.Row) domain.Sale {
	clientName := asOptionalString(pick(row, ColClientName, "client_name"))
	if clientName == nil {
		if joined := embedded(row[TableClientsEmbed]); joined != nil {
			clientName = asOptionalString(pick(joined, ColName, "name"))
		}
	}
	return domain.Sale{
		ID:          asString(row[ColID]),
		ProductID:   asString(pick(row, ColProductID, "product_id")),
		Quantity:    asInt(pick(row, ColQuantity, "quantity")),
		TotalValue:  asDecimal(pick(row, ColTotalValue, "total_value")),
		SellerIDs:   asStringSlice(pick(row, ColSellerIDs, "seller_ids")),
		ClientID:    asOptionalString(pick(row, ColClientID, "client_id")),
		ClientName:  clientName,
		ClientPhone: asOptionalString(pick(row, ColClientPhone, "client_phone")),
		SellerNames: asString(pick(row, ColSellerNames, "seller_names")),
		Date:        asTime(pick(row, ColDate, "date")),
	}
}

// TableClientsEmbed is the key under which a joined client record may be embedded in a sale row.
const TableClientsEmbed = gateway.TableClients

func Seller(row gateway.Row) domain.Seller {
	return domain.Seller{
		ID:   asString(row[ColID]),
		Name: asString(pick(row, ColName, "name")),
	}
}

func Client(row gateway.Row) domain.Client {
	return domain.Client{
		ID:        asString(row[ColID]),
		Name:      asString(pick(row, ColName, "name")),
		Phone:     asOptionalString(pick(row, ColPhone, "phone")),
		Email:     asOptionalString(row[ColEmail]),
		CreatedAt: asOptionalTime(row[ColCreatedAt]),
	}
}

// StockFigure reads a row of the per-product stock aggregate. ok is false when the
// row has no product id.
func StockFigure(row gateway.Row) (domain.StockFigure, bool) {
	figure := domain.StockFigure{
		ProductID:    asString(pick(row, ColProductID, "product_id")),
		CurrentStock: asInt(pick(row, "estoque_atual", "current_stock")),
	}
	return figure, figure.ProductID != ""
}

func DashboardTotals(row gateway.Row) domain.DashboardTotals {
	return domain.DashboardTotals{
		TotalRevenue: asDecimal(pick(row, "total_vendas", "total_revenue")),
		TotalProfit:  asDecimal(pick(row, "total_lucro", "total_profit")),
		SalesCount:   asInt(pick(row, "quantidade_vendas", "sales_count")),
	}
}

// Write-side encoders. Decimals go out as float64 so every backend accepts them.

func ProductRecord(name string, purchase, base decimal.Decimal, image *string) gateway.Row {
	return gateway.Row{
		ColName:     name,
		ColPurchase: purchase.InexactFloat64(),
		ColBase:     base.InexactFloat64(),
		ColImage:    nullable(image),
		ColActive:   true,
	}
}

func ReplenishmentRecord(productID string, quantity int, unitPrice decimal.Decimal, date time.Time) gateway.Row {
	return gateway.Row{
		ColProductID: productID,
		ColQuantity:  quantity,
		ColUnitPrice: unitPrice.InexactFloat64(),
		ColTotalCost: unitPrice.Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64(),
		ColDate:      date.UTC().Format(time.RFC3339Nano),
	}
}

func SaleRecord(sale domain.Sale) gateway.Row {
	sellerIDs := sale.SellerIDs
	if sellerIDs == nil {
		sellerIDs = []string{}
	}
	return gateway.Row{
		ColProductID:   sale.ProductID,
		ColQuantity:    sale.Quantity,
		ColTotalValue:  sale.TotalValue.InexactFloat64(),
		ColSellerIDs:   sellerIDs,
		ColClientID:    nullable(sale.ClientID),
		ColClientName:  nullable(sale.ClientName),
		ColClientPhone: nullable(sale.ClientPhone),
		ColSellerNames: sale.SellerNames,
		ColDate:        sale.Date.UTC().Format(time.RFC3339Nano),
	}
}

func ClientRecord(name string, phone, email *string) gateway.Row {
	return gateway.Row{
		ColName:  name,
		ColPhone: nullable(phone),
		ColEmail: nullable(email),
	}
}

func nullable(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
