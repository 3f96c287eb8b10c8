package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockdash/internal/domain"
	"stockdash/internal/gateway"
	"stockdash/internal/normalize"
)

type SaleInput struct {
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
	SellerIDs   []string        `json:"seller_ids"`
	ClientName  string          `json:"client_name,omitempty"`
	ClientPhone string          `json:"client_phone,omitempty"`
	Date        time.Time       `json:"date,omitempty"`
}

func (in SaleInput) validate() error {
	if strings.TrimSpace(in.ProductID) == "" {
		return invalid("product id is required")
	}
	if in.Quantity <= 0 {
		return invalid("quantity must be positive")
	}
	if in.TotalValue.IsNegative() {
		return invalid("total value must not be negative")
	}
	if len(in.SellerIDs) == 0 {
		return invalid("at least one seller is required")
	}
	return nil
}

// AddSale records a sale with snapshots of the client and seller names as they
// are now. The phone snapshot is only the phone entered with the sale. When a
// client name is given the client is looked up by exact name, reused (updating
// the phone if a new one is given) or created. A failure in that step is logged
// and the sale is recorded without a client link.
func (s *Service) AddSale(ctx context.Context, in SaleInput) (domain.Sale, error) {
	if s.closed.Load() {
		return domain.Sale{}, ErrClosed
	}
	if err := in.validate(); err != nil {
		return domain.Sale{}, err
	}

	name := strings.TrimSpace(in.ClientName)
	phone := normalizeNullable(&in.ClientPhone)

	sale := domain.Sale{
		ProductID:   in.ProductID,
		Quantity:    in.Quantity,
		TotalValue:  in.TotalValue,
		SellerIDs:   in.SellerIDs,
		SellerNames: s.sellerNames(in.SellerIDs),
		ClientPhone: phone,
		Date:        in.Date,
	}
	if sale.Date.IsZero() {
		sale.Date = s.now()
	}
	if name != "" {
		sale.ClientName = &name
		client, err := s.resolveClient(ctx, name, phone)
		if err != nil {
			s.log.Warn("client step failed, recording sale without client",
				zap.String("client", name), zap.Error(err))
		}
		if client != nil {
			sale.ClientID = &client.ID
		}
	}

	row, err := s.gw.Insert(ctx, gateway.TableSales, normalize.SaleRecord(sale))
	if err != nil {
		return domain.Sale{}, s.fail("add sale", "Could not record the sale.", err)
	}
	recorded := normalize.Sale(row)
	s.mu.Lock()
	s.st.appendSale(recorded)
	s.mu.Unlock()
	return recorded, nil
}

// DeleteSale removes a sale. Its quantity returns to stock through the fold.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.gw.Delete(ctx, gateway.TableSales, gateway.Eq(normalize.ColID, id)); err != nil {
		return s.fail("delete sale", "Could not delete the sale.", err)
	}
	s.mu.Lock()
	s.st.removeSale(id)
	s.mu.Unlock()
	return nil
}

// sellerNames joins the names of the known sellers among ids. Unknown ids are skipped.
func (s *Service) sellerNames(ids []string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		for _, seller := range s.st.sellers {
			if seller.ID == id {
				names = append(names, seller.Name)
				break
			}
		}
	}
	return strings.Join(names, ", ")
}
