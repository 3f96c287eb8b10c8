package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stockdash/internal/domain"
)

// ImportLedger hands spreadsheet rows to the backend import function, which
// creates the products, replenishments and sales they describe. The local
// projection is not touched; callers reload to see the result.
func (s *Service) ImportLedger(ctx context.Context, rows []domain.LedgerImportRow) (domain.LedgerImportResult, error) {
	result := domain.LedgerImportResult{Sent: len(rows)}
	if s.closed.Load() {
		return result, ErrClosed
	}
	if s.functions == nil {
		return result, ErrNoImportFunction
	}
	if len(rows) == 0 {
		return result, invalid("import file has no data rows")
	}

	resp, err := s.functions.Invoke(ctx, s.importFunction, rows)
	if err != nil {
		return result, s.fail("import ledger", "The import function failed.", err)
	}
	if msg, ok := resp["error"].(string); ok && msg != "" {
		return result, s.fail("import ledger", msg, fmt.Errorf("function %s reported an error", s.importFunction))
	}
	result.Imported = importedCount(resp["imported"], len(rows))
	s.log.Info("ledger imported", zap.Int("sent", result.Sent), zap.Int("imported", result.Imported))
	return result, nil
}

// importedCount reads the function's count, defaulting to the number of rows sent.
func importedCount(v any, sent int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return sent
	}
}
