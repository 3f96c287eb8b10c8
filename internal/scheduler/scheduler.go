package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stockdash/internal/inventory"
	"stockdash/internal/metrics"
	"stockdash/internal/service"
	"stockdash/pkg/logger"
)

// Source is the part of the service the scheduled jobs use.
type Source interface {
	Load(ctx context.Context) (service.LoadReport, error)
	Summary() (metrics.Summary, error)
	Inventory() ([]inventory.Item, error)
}

type Options struct {
	// ReportCron is the schedule of the stock report. Empty disables it.
	ReportCron string
	// RefreshCron is the schedule of the periodic reload. Empty disables it.
	RefreshCron string
	Timezone    string
	JobTimeout  time.Duration
}

// Scheduler runs the stock report and the periodic reload.
type Scheduler struct {
	cron    *cron.Cron
	source  Source
	opts    Options
	logger  *zap.Logger
	entries int
}

// Report is what the stock report job logs.
type Report struct {
	Summary    metrics.Summary `json:"summary"`
	OutOfStock []string        `json:"out_of_stock"`
	Negative   []string        `json:"negative_stock"`
}

func New(source Source, opts Options, log *zap.Logger) (*Scheduler, error) {
	loc := time.Local
	if opts.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(opts.Timezone); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
		}
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		source: source,
		opts:   opts,
		logger: logger.Named(log, "scheduler"),
	}
	if opts.ReportCron != "" {
		if _, err := s.cron.AddFunc(opts.ReportCron, s.reportJob); err != nil {
			return nil, fmt.Errorf("schedule stock report %q: %w", opts.ReportCron, err)
		}
		s.entries++
	}
	if opts.RefreshCron != "" {
		if _, err := s.cron.AddFunc(opts.RefreshCron, s.refreshJob); err != nil {
			return nil, fmt.Errorf("schedule refresh %q: %w", opts.RefreshCron, err)
		}
		s.entries++
	}
	return s, nil
}

// Jobs is the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return s.entries
}

func (s *Scheduler) Start() {
	if s.entries == 0 {
		s.logger.Info("no jobs scheduled")
		return
	}
	s.logger.Info("starting scheduler",
		zap.String("report_cron", s.opts.ReportCron),
		zap.String("refresh_cron", s.opts.RefreshCron),
	)
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler jobs still running at shutdown")
	}
}

// StockReport collects the summary and the products needing a restock.
func (s *Scheduler) StockReport() (Report, error) {
	summary, err := s.source.Summary()
	if err != nil {
		return Report{}, err
	}
	items, err := s.source.Inventory()
	if err != nil {
		return Report{}, err
	}
	return Report{
		Summary:    summary,
		OutOfStock: names(inventory.OutOfStock(items)),
		Negative:   names(inventory.Negative(items)),
	}, nil
}

func names(items []inventory.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func (s *Scheduler) reportJob() {
	report, err := s.StockReport()
	if err != nil {
		if errors.Is(err, service.ErrNotLoaded) {
			s.logger.Warn("stock report skipped, data not loaded")
			return
		}
		s.logger.Error("failed to build stock report", zap.Error(err))
		return
	}
	s.logger.Info("stock report",
		zap.String("total_revenue", report.Summary.TotalRevenue.StringFixed(2)),
		zap.String("total_profit", report.Summary.TotalProfit.StringFixed(2)),
		zap.Int("sales", report.Summary.SalesCount),
		zap.Int("units_in_stock", report.Summary.UnitsInStock),
		zap.Int("out_of_stock_count", report.Summary.OutOfStockCount),
		zap.Strings("out_of_stock", report.OutOfStock),
		zap.Strings("negative_stock", report.Negative),
	)
}

func (s *Scheduler) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	defer cancel()

	report, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Error("scheduled refresh failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled refresh",
		zap.Int("products", report.Products),
		zap.Int("sales", report.Sales),
		zap.Any("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
}
