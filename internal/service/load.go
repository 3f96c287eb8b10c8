package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockdash/internal/domain"
	"stockdash/internal/gateway"
	"stockdash/internal/normalize"
	"stockdash/internal/paging"
	"stockdash/internal/retry"
)

type LoadReport struct {
	Products       int               `json:"products"`
	Replenishments int               `json:"replenishments"`
	Sales          int               `json:"sales"`
	Sellers        int               `json:"sellers"`
	Clients        int               `json:"clients"`
	ServerStock    bool              `json:"server_stock"`
	ServerTotals   bool              `json:"server_totals"`
	Failed         map[string]string `json:"failed,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// Load reads the whole dataset and replaces the local projection.
//
// Products and the optional server aggregates are fetched first and together.
// A products failure is fatal and returned as *LoadError; an aggregate failure
// only drops the override. The historical tables follow as a second wave in
// which each source fails on its own: it is reported in LoadReport.Failed and
// left empty while the others are applied.
//
// If Close is called while a load is in flight, its results are discarded.
func (s *Service) Load(ctx context.Context) (LoadReport, error) {
	if s.closed.Load() {
		return LoadReport{}, ErrClosed
	}
	s.loading.Add(1)
	defer s.loading.Add(-1)

	started := s.now()
	report := LoadReport{Failed: map[string]string{}}

	var (
		products    []domain.Product
		serverStock map[string]int
		totals      *domain.DashboardTotals
	)
	first, firstCtx := errgroup.WithContext(ctx)
	first.Go(func() error {
		rows, err := s.fetchAll(firstCtx, gateway.TableProducts, normalize.ProductColumns)
		if err != nil {
			return err
		}
		products = mapRows(rows, normalize.Product)
		return nil
	})
	if s.serverStock {
		first.Go(func() error {
			stock, err := s.fetchServerStock(firstCtx)
			if err != nil {
				s.log.Warn("server stock unavailable, using local fold", zap.Error(err))
				return nil
			}
			serverStock = stock
			return nil
		})
		first.Go(func() error {
			t, err := s.fetchTotals(firstCtx)
			if err != nil {
				s.log.Warn("dashboard totals unavailable", zap.Error(err))
				return nil
			}
			totals = t
			return nil
		})
	}
	if err := first.Wait(); err != nil {
		loadErr := &LoadError{Err: err}
		if s.closed.Load() {
			return report, ErrClosed
		}
		s.mu.Lock()
		s.st.loadErr = loadErr
		s.mu.Unlock()
		s.log.Error("load products failed", zap.Error(err))
		return report, loadErr
	}
	if s.closed.Load() {
		return report, ErrClosed
	}

	var (
		replenishments []domain.Replenishment
		sales          []domain.Sale
		sellers        []domain.Seller
		clients        []domain.Client
		failures       = make([]error, 4)
	)
	var second errgroup.Group
	second.Go(func() error {
		rows, err := s.fetchAll(ctx, gateway.TableReplenishments, normalize.ReplenishmentColumns)
		replenishments, failures[0] = mapRows(rows, normalize.Replenishment), err
		return nil
	})
	second.Go(func() error {
		rows, err := s.fetchAll(ctx, gateway.TableSales, normalize.SaleColumns)
		sales, failures[1] = mapRows(rows, normalize.Sale), err
		return nil
	})
	second.Go(func() error {
		rows, err := s.fetchAll(ctx, gateway.TableSellers, normalize.SellerColumns)
		sellers, failures[2] = mapRows(rows, normalize.Seller), err
		return nil
	})
	second.Go(func() error {
		rows, err := s.fetchAll(ctx, gateway.TableClients, normalize.ClientColumns)
		clients, failures[3] = mapRows(rows, normalize.Client), err
		return nil
	})
	_ = second.Wait()

	if s.closed.Load() {
		s.log.Debug("load finished after close, discarding")
		return report, ErrClosed
	}

	sources := []string{gateway.TableReplenishments, gateway.TableSales, gateway.TableSellers, gateway.TableClients}
	for i, err := range failures {
		if err != nil {
			report.Failed[sources[i]] = err.Error()
			s.log.Warn("load source failed", zap.String("source", sources[i]), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.st.products = products
	s.st.replenishments = replenishments
	s.st.sales = sales
	s.st.sellers = sellers
	s.st.clients = clients
	s.st.serverStock = serverStock
	s.st.totals = totals
	s.st.loaded = true
	s.st.loadErr = nil
	s.st.failed = report.Failed
	s.st.loadedAt = s.now()
	s.mu.Unlock()

	report.Products = len(products)
	report.Replenishments = len(replenishments)
	report.Sales = len(sales)
	report.Sellers = len(sellers)
	report.Clients = len(clients)
	report.ServerStock = serverStock != nil
	report.ServerTotals = totals != nil
	report.Duration = s.now().Sub(started)

	s.log.Info("dataset loaded",
		zap.Int("products", report.Products),
		zap.Int("replenishments", report.Replenishments),
		zap.Int("sales", report.Sales),
		zap.Int("failed_sources", len(report.Failed)),
		zap.Bool("server_stock", report.ServerStock),
	)
	return report, nil
}

// fetchAll pages through a table ordered by id, retrying each page.
func (s *Service) fetchAll(ctx context.Context, table string, columns []string) ([]gateway.Row, error) {
	rows, err := paging.FetchAll(ctx, s.pageSize, func(ctx context.Context, from, to int) ([]gateway.Row, error) {
		return retry.Do(ctx, s.retry, func(ctx context.Context) ([]gateway.Row, error) {
			return s.gw.Select(ctx, table, gateway.Query{
				Columns: columns,
				Order:   &gateway.Order{Column: normalize.ColID, Ascending: true},
				Range:   &gateway.Range{From: from, To: to},
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return rows, nil
}

func (s *Service) fetchServerStock(ctx context.Context) (map[string]int, error) {
	rows, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]gateway.Row, error) {
		return s.gw.RPC(ctx, gateway.RPCProductStock, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", gateway.RPCProductStock, err)
	}
	stock := make(map[string]int, len(rows))
	for _, row := range rows {
		if figure, ok := normalize.StockFigure(row); ok {
			stock[figure.ProductID] = figure.CurrentStock
		}
	}
	return stock, nil
}

func (s *Service) fetchTotals(ctx context.Context) (*domain.DashboardTotals, error) {
	rows, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]gateway.Row, error) {
		return s.gw.RPC(ctx, gateway.RPCDashboardTotals, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", gateway.RPCDashboardTotals, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rpc %s: %w", gateway.RPCDashboardTotals, gateway.ErrNoRows)
	}
	totals := normalize.DashboardTotals(rows[0])
	return &totals, nil
}

// Diagnostics counts the rows of every table. A failing table reports its error
// instead of a count.
func (s *Service) Diagnostics(ctx context.Context) ([]domain.TableCount, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	counts := make([]domain.TableCount, len(gateway.Tables))
	var g errgroup.Group
	for i, table := range gateway.Tables {
		i, table := i, table
		g.Go(func() error {
			n, err := retry.Do(ctx, s.retry, func(ctx context.Context) (int, error) {
				return s.gw.Count(ctx, table)
			})
			counts[i] = domain.TableCount{Table: table, Count: n}
			if err != nil {
				counts[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return counts, nil
}

func mapRows[T any](rows []gateway.Row, fn func(gateway.Row) T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(row))
	}
	return out
}
