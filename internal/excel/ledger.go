package excel

import (
	"fmt"
	"io"

	"stockdash/internal/domain"
)

// ParseLedger reads the bookkeeping sheet. The first row is a header and the
// columns are positional: restock date, description, unit value, units, total
// value, cost per item, sales, seller name. Numbers that cannot be read are left
// empty.
func ParseLedger(fileName string, reader io.Reader) ([]domain.LedgerImportRow, error) {
	rows, err := readTable(fileName, reader)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet has no data rows")
	}

	result := make([]domain.LedgerImportRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		result = append(result, domain.LedgerImportRow{
			RestockDate: readCell(cells, 0),
			Description: readCell(cells, 1),
			UnitValue:   optionalNumber(readCell(cells, 2)),
			Units:       optionalNumber(readCell(cells, 3)),
			TotalValue:  optionalNumber(readCell(cells, 4)),
			CostPerItem: optionalNumber(readCell(cells, 5)),
			Sales:       optionalNumber(readCell(cells, 6)),
			SellerName:  readCell(cells, 7),
		})
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("sheet has no data rows")
	}
	return result, nil
}

func optionalNumber(raw string) *float64 {
	value, ok := parseBRNumber(raw)
	if !ok {
		return nil
	}
	f := value.InexactFloat64()
	return &f
}
