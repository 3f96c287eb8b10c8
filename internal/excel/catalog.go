package excel

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"stockdash/internal/domain"
)

var catalogAliases = map[string]string{
	"nome":           "name",
	"name":           "name",
	"produto":        "name",
	"product":        "name",
	"product name":   "name",
	"custo":          "purchase_price",
	"cost":           "purchase_price",
	"preco compra":   "purchase_price",
	"preço compra":   "purchase_price",
	"purchase price": "purchase_price",
	"venda":          "base_price",
	"preco venda":    "base_price",
	"preço venda":    "base_price",
	"preco":          "base_price",
	"preço":          "base_price",
	"price":          "base_price",
	"base price":     "base_price",
	"qtd":            "quantity",
	"quantidade":     "quantity",
	"quantity":       "quantity",
	"qty":            "quantity",
	"estoque":        "quantity",
}

// positional layout used when the sheet has no recognizable header:
// name, cost, price, quantity.
var catalogPositions = map[string]int{"name": 0, "purchase_price": 1, "base_price": 2, "quantity": 3}

// ParseCatalog reads a product sheet. Rows without a name or with fewer than
// three cells are skipped; unreadable numbers count as zero.
func ParseCatalog(fileName string, reader io.Reader) ([]domain.CatalogImportRow, error) {
	rows, err := readTable(fileName, reader)
	if err != nil {
		return nil, err
	}

	start := 0
	colMap := catalogPositions
	if header := mapColumns(rows[0], catalogAliases); len(header) > 0 {
		start = 1
		if _, ok := header["name"]; ok {
			colMap = mergeColumns(header, catalogPositions)
		}
	}

	result := make([]domain.CatalogImportRow, 0, len(rows)-start)
	for _, cells := range rows[start:] {
		if blankRow(cells) || len(cells) < 3 {
			continue
		}
		name := readCell(cells, colMap["name"])
		if name == "" {
			continue
		}
		purchase, _ := parseBRNumber(readCell(cells, colMap["purchase_price"]))
		base, _ := parseBRNumber(readCell(cells, colMap["base_price"]))
		result = append(result, domain.CatalogImportRow{
			Name:          name,
			PurchasePrice: nonNegative(purchase),
			BasePrice:     nonNegative(base),
			Quantity:      parseQuantity(readCell(cells, colMap["quantity"])),
		})
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no valid products found; expected columns: %s", strings.Join([]string{"Nome", "Custo", "Venda", "Qtd"}, ", "))
	}
	return result, nil
}

// mergeColumns fills columns missing from the header with their default position.
func mergeColumns(header, defaults map[string]int) map[string]int {
	out := make(map[string]int, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range header {
		out[k] = v
	}
	return out
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
