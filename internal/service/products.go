package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockdash/internal/domain"
	"stockdash/internal/gateway"
	"stockdash/internal/normalize"
)

// ProductInput creates a product when ID is empty and updates it otherwise.
// InitialStock only applies on creation. On update a nil Image keeps the stored
// image and an empty one clears it.
type ProductInput struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Image         *string         `json:"image,omitempty"`
	InitialStock  int             `json:"initial_stock,omitempty"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("product name is required")
	}
	if in.PurchasePrice.IsNegative() || in.BasePrice.IsNegative() {
		return invalid("prices must not be negative")
	}
	if in.InitialStock < 0 {
		return invalid("initial stock must not be negative")
	}
	return nil
}

// SaveProduct creates or updates a product. A created product whose initial
// stock could not be recorded is still returned without error; the failed
// replenishment shows up as the action error.
func (s *Service) SaveProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	if s.closed.Load() {
		return domain.Product{}, ErrClosed
	}
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}
	if in.ID != "" {
		return s.updateProduct(ctx, in)
	}
	product, _, err := s.createProduct(ctx, in)
	return product, err
}

func (s *Service) updateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	s.mu.RLock()
	current, known := s.st.product(in.ID)
	s.mu.RUnlock()

	name := strings.TrimSpace(in.Name)
	image := current.Image
	record := normalize.ProductRecord(name, in.PurchasePrice, in.BasePrice, nil)
	if in.Image != nil {
		image = normalizeNullable(in.Image)
		record[normalize.ColImage] = nullableValue(image)
	} else {
		delete(record, normalize.ColImage)
	}

	if err := s.gw.Update(ctx, gateway.TableProducts, record, gateway.Eq(normalize.ColID, in.ID)); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return domain.Product{}, fmt.Errorf("product %s: %w", in.ID, ErrNotFound)
		}
		return domain.Product{}, s.fail("update product", "Could not save the product.", err)
	}
	product := domain.Product{
		ID:            in.ID,
		Name:          name,
		PurchasePrice: in.PurchasePrice,
		BasePrice:     in.BasePrice,
		Image:         image,
		Active:        true,
		CreatedAt:     current.CreatedAt,
	}
	s.mu.Lock()
	s.st.patchProduct(product)
	s.mu.Unlock()

	if known && current.Image != nil && (image == nil || *image != *current.Image) {
		s.removeImage(ctx, *current.Image)
	}
	return product, nil
}

// createProduct inserts the product and records its initial stock. stockErr is
// the replenishment failure, if any; the product exists either way.
func (s *Service) createProduct(ctx context.Context, in ProductInput) (product domain.Product, stockErr, err error) {
	record := normalize.ProductRecord(strings.TrimSpace(in.Name), in.PurchasePrice, in.BasePrice, normalizeNullable(in.Image))
	row, err := s.gw.Insert(ctx, gateway.TableProducts, record)
	if err != nil {
		return domain.Product{}, nil, s.fail("create product", "Could not create the product.", err)
	}
	product = normalize.Product(row)
	s.mu.Lock()
	s.st.upsertProduct(product)
	s.mu.Unlock()

	if in.InitialStock > 0 {
		if _, stockErr = s.AddReplenishment(ctx, product.ID, in.InitialStock, in.PurchasePrice, s.now()); stockErr != nil {
			s.log.Warn("initial stock not recorded",
				zap.String("product_id", product.ID), zap.Int("quantity", in.InitialStock), zap.Error(stockErr))
		}
	}
	return product, stockErr, nil
}

// DeleteProduct removes a product and then tries to remove its stored image.
// A failed image cleanup is logged and does not fail the call.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.RLock()
	product, known := s.st.product(id)
	s.mu.RUnlock()

	if err := s.gw.Delete(ctx, gateway.TableProducts, gateway.Eq(normalize.ColID, id)); err != nil {
		return s.fail("delete product", "Could not delete the product.", err)
	}
	s.mu.Lock()
	s.st.removeProduct(id)
	s.mu.Unlock()

	if known && product.Image != nil {
		s.removeImage(ctx, *product.Image)
	}
	return nil
}

func (s *Service) removeImage(ctx context.Context, url string) {
	if s.objects == nil {
		return
	}
	objectPath, ok := s.objects.PathFromURL(s.bucket, url)
	if !ok {
		return
	}
	if err := s.objects.Remove(ctx, s.bucket, []string{objectPath}); err != nil {
		s.log.Warn("remove product image", zap.String("path", objectPath), zap.Error(err))
	}
}

// AddReplenishment records a stock entry. A zero date means now.
func (s *Service) AddReplenishment(
	ctx context.Context,
	productID string,
	quantity int,
	unitPrice decimal.Decimal,
	date time.Time,
) (domain.Replenishment, error) {
	if s.closed.Load() {
		return domain.Replenishment{}, ErrClosed
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Replenishment{}, invalid("product id is required")
	}
	if quantity <= 0 {
		return domain.Replenishment{}, invalid("quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return domain.Replenishment{}, invalid("unit price must not be negative")
	}
	if date.IsZero() {
		date = s.now()
	}

	row, err := s.gw.Insert(ctx, gateway.TableReplenishments, normalize.ReplenishmentRecord(productID, quantity, unitPrice, date))
	if err != nil {
		return domain.Replenishment{}, s.fail("add replenishment", "Could not record the replenishment.", err)
	}
	rep := normalize.Replenishment(row)
	s.mu.Lock()
	s.st.appendReplenishment(rep)
	s.mu.Unlock()
	return rep, nil
}

// UploadProductImage stores an image under a fresh name and returns its public URL.
func (s *Service) UploadProductImage(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	if s.objects == nil {
		return "", ErrNoObjectStore
	}
	ext := strings.ToLower(path.Ext(filename))
	objectPath := imagePrefix + uuid.NewString() + ext
	if err := s.objects.Upload(ctx, s.bucket, objectPath, body, contentType); err != nil {
		return "", s.fail("upload image", "Could not upload the image.", err)
	}
	return s.objects.PublicURL(s.bucket, objectPath), nil
}

// ImportCatalog creates one product per row, with the row quantity as initial
// stock. Rows fail individually.
func (s *Service) ImportCatalog(ctx context.Context, rows []domain.CatalogImportRow) (domain.CatalogImportResult, error) {
	result := domain.CatalogImportResult{TotalRows: len(rows)}
	if len(rows) == 0 {
		return result, invalid("import file has no data rows")
	}
	for i, row := range rows {
		if s.closed.Load() {
			return result, ErrClosed
		}
		in := ProductInput{
			Name:          row.Name,
			PurchasePrice: row.PurchasePrice,
			BasePrice:     row.BasePrice,
			InitialStock:  row.Quantity,
		}
		err := in.validate()
		var stockErr error
		if err == nil {
			_, stockErr, err = s.createProduct(ctx, in)
		}
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("row %d (%s): %v", i+1, row.Name, err))
			continue
		}
		result.Imported++
		if stockErr != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d (%s): created without initial stock of %d: %v", i+1, row.Name, row.Quantity, stockErr))
		}
	}
	s.log.Info("catalog imported",
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}
