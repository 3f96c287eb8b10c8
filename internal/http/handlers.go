package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockdash/internal/excel"
	"stockdash/internal/inventory"
	"stockdash/internal/service"
	"stockdash/pkg/logger"
)

const maxUploadBytes = 32 << 20

type Handler struct {
	svc        *service.Service
	log        *zap.Logger
	cacheStats func() any
}

func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: logger.Named(log, "http")}
}

// WithCacheStats adds the given cache counters to the diagnostics response.
func (h *Handler) WithCacheStats(stats func() any) *Handler {
	h.cacheStats = stats
	return h
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handler) ClearActionError(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearActionError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Load(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Overview(w http.ResponseWriter, _ *http.Request) {
	summary, err := h.svc.Summary()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) Inventory(w http.ResponseWriter, _ *http.Request) {
	items, err := h.svc.Inventory()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) OutOfStock(w http.ResponseWriter, _ *http.Request) {
	items, err := h.svc.Inventory()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	out := inventory.OutOfStock(items)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":    out,
		"count":    len(out),
		"negative": inventory.Negative(items),
	})
}

func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	items, err := h.svc.Products()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = ""
	product, err := h.svc.SaveProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = id
	req.InitialStock = 0
	product, err := h.svc.SaveProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type replenishmentRequest struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Date      string          `json:"date"`
}

func (h *Handler) AddReplenishment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req replenishmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.svc.AddReplenishment(r.Context(), id, req.Quantity, req.UnitPrice, date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	file, header, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rows, err := excel.ParseCatalog(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.ImportCatalog(r.Context(), rows)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.log.Info("catalog imported",
		zap.String("file", header.Filename),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, header, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return
	}
	url, err := h.svc.UploadProductImage(r.Context(), header.Filename, contentType, file)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

func (h *Handler) ListReplenishments(w http.ResponseWriter, _ *http.Request) {
	items, err := h.svc.Replenishments()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) ListSales(w http.ResponseWriter, _ *http.Request) {
	items, err := h.svc.Sales()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type saleRequest struct {
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
	SellerIDs   []string        `json:"seller_ids"`
	ClientName  string          `json:"client_name"`
	ClientPhone string          `json:"client_phone"`
	Date        string          `json:"date"`
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.svc.AddSale(r.Context(), service.SaleInput{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		TotalValue:  req.TotalValue,
		SellerIDs:   req.SellerIDs,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Date:        date,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeleteSale(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSellers(w http.ResponseWriter, _ *http.Request) {
	items, err := h.svc.Sellers()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ClientHistories(r.URL.Query().Get("search"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req service.ClientInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := h.svc.CreateClient(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

type updateClientRequest struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := h.svc.UpdateClientContact(r.Context(), id, req.Phone, req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) ImportLedger(w http.ResponseWriter, r *http.Request) {
	file, header, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rows, err := excel.ParseLedger(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.ImportLedger(r.Context(), rows)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Diagnostics(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	payload := map[string]any{"tables": counts, "status": h.svc.Status()}
	if h.cacheStats != nil {
		payload["cache"] = h.cacheStats()
	}
	writeJSON(w, http.StatusOK, payload)
}

// writeServiceError maps service errors to a status code and a message fit for the user.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var actionErr *service.ActionError
	var loadErr *service.LoadError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateClient):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoObjectStore), errors.Is(err, service.ErrNoImportFunction):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, service.ErrClosed), errors.Is(err, service.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &loadErr):
		writeError(w, http.StatusServiceUnavailable, "Could not load products. Try reloading.")
	case errors.As(err, &actionErr):
		writeError(w, http.StatusBadGateway, actionErr.Message)
	default:
		h.log.Error("unhandled service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return nil, nil, false
	}
	return file, header, true
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("id is required")
	}
	return id, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates. Empty means now.
func parseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
