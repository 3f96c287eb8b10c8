package service

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stockdash/internal/domain"
	"stockdash/internal/gateway"
	"stockdash/internal/inventory"
	"stockdash/internal/metrics"
	"stockdash/internal/paging"
	"stockdash/internal/retry"
	"stockdash/pkg/logger"
)

const (
	DefaultBucket         = "produtos"
	DefaultImportFunction = "import-planilha"
	imagePrefix           = "products/"
)

type Options struct {
	Gateway gateway.Gateway
	// Objects and Functions are optional. Without them image upload and
	// ledger import report ErrNoObjectStore / ErrNoImportFunction.
	Objects   gateway.ObjectStore
	Functions gateway.FunctionInvoker

	Bucket         string
	ImportFunction string
	PageSize       int
	Retry          retry.Policy
	// ServerStock enables the server-side stock and totals aggregates on load.
	ServerStock bool

	Logger *zap.Logger
	Now    func() time.Time
}

// Service coordinates reads and writes against the backend and keeps the local
// projection the dashboard is computed from.
type Service struct {
	gw        gateway.Gateway
	objects   gateway.ObjectStore
	functions gateway.FunctionInvoker

	bucket         string
	importFunction string
	pageSize       int
	retry          retry.Policy
	serverStock    bool

	log *zap.Logger
	now func() time.Time

	reconciler *inventory.Reconciler

	mu      sync.RWMutex
	st      state
	closed  atomic.Bool
	loading atomic.Int32
}

func New(opts Options) *Service {
	s := &Service{
		gw:             opts.Gateway,
		objects:        opts.Objects,
		functions:      opts.Functions,
		bucket:         firstNonEmpty(opts.Bucket, DefaultBucket),
		importFunction: firstNonEmpty(opts.ImportFunction, DefaultImportFunction),
		pageSize:       opts.PageSize,
		retry:          opts.Retry,
		serverStock:    opts.ServerStock,
		log:            logger.Named(opts.Logger, "service"),
		now:            opts.Now,
		reconciler:     inventory.NewReconciler(),
	}
	if s.pageSize <= 0 {
		s.pageSize = paging.DefaultPageSize
	}
	if s.retry.Attempts <= 0 {
		s.retry = retry.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close marks the service as torn down. Loads still in flight finish their
// requests but their results are dropped, and further calls return ErrClosed.
func (s *Service) Close() {
	s.closed.Store(true)
}

type Status struct {
	Loaded        bool              `json:"loaded"`
	Loading       bool              `json:"loading"`
	LoadedAt      *time.Time        `json:"loaded_at,omitempty"`
	LoadError     string            `json:"load_error,omitempty"`
	FailedSources map[string]string `json:"failed_sources,omitempty"`
	ActionError   string            `json:"action_error,omitempty"`
	ServerStock   bool              `json:"server_stock"`
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Loaded:      s.st.loaded,
		Loading:     s.loading.Load() > 0,
		ServerStock: s.st.serverStock != nil,
	}
	if !s.st.loadedAt.IsZero() {
		at := s.st.loadedAt
		status.LoadedAt = &at
	}
	if s.st.loadErr != nil {
		status.LoadError = s.st.loadErr.Error()
	}
	if len(s.st.failed) > 0 {
		status.FailedSources = make(map[string]string, len(s.st.failed))
		for k, v := range s.st.failed {
			status.FailedSources[k] = v
		}
	}
	if s.st.actionErr != nil {
		status.ActionError = s.st.actionErr.Message
	}
	return status
}

// ClearActionError dismisses the last action error.
func (s *Service) ClearActionError() {
	s.mu.Lock()
	s.st.actionErr = nil
	s.mu.Unlock()
}

// readable reports why the projection cannot be served. Callers hold s.mu.
func (s *Service) readable() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.st.loaded {
		return nil
	}
	if s.st.loadErr != nil {
		return s.st.loadErr
	}
	return ErrNotLoaded
}

func (s *Service) Products() ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return append([]domain.Product{}, s.st.products...), nil
}

func (s *Service) Replenishments() ([]domain.Replenishment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return append([]domain.Replenishment{}, s.st.replenishments...), nil
}

func (s *Service) Sales() ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return append([]domain.Sale{}, s.st.sales...), nil
}

func (s *Service) Sellers() ([]domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return append([]domain.Seller{}, s.st.sellers...), nil
}

func (s *Service) Clients() ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return append([]domain.Client{}, s.st.clients...), nil
}

// Inventory returns the reconciled stock view.
func (s *Service) Inventory() ([]inventory.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return s.inventoryLocked(), nil
}

func (s *Service) inventoryLocked() []inventory.Item {
	return s.reconciler.Reconcile(s.st.products, s.st.replenishments, s.st.sales, s.st.serverStock)
}

func (s *Service) Summary() (metrics.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return metrics.Summary{}, err
	}
	summary := metrics.Summarize(s.inventoryLocked(), s.st.products, s.st.sales, s.st.sellers)
	if s.st.totals != nil {
		totals := *s.st.totals
		summary.ServerTotals = &totals
	}
	return summary, nil
}

// ClientHistories lists clients with their purchases, filtered by a
// case-insensitive name search.
func (s *Service) ClientHistories(search string) ([]metrics.ClientHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return metrics.ClientHistories(s.st.clients, s.st.sales, s.st.products, search), nil
}

// fail records err as the current action error and returns it.
func (s *Service) fail(op, message string, err error) error {
	actionErr := &ActionError{Op: op, Message: message, Err: err}
	s.mu.Lock()
	s.st.actionErr = actionErr
	s.mu.Unlock()
	s.log.Warn("action failed", zap.String("op", op), zap.String("message", message), zap.Error(err))
	return actionErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
