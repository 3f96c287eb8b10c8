package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/domain"
	"stockdash/internal/inventory"
	"stockdash/internal/metrics"
	"stockdash/internal/service"
)

type fakeSource struct {
	loads   int
	loadErr error
	items   []inventory.Item
	readErr error
}

func (f *fakeSource) Load(context.Context) (service.LoadReport, error) {
	f.loads++
	return service.LoadReport{Products: len(f.items)}, f.loadErr
}

func (f *fakeSource) Summary() (metrics.Summary, error) {
	if f.readErr != nil {
		return metrics.Summary{}, f.readErr
	}
	return metrics.Summary{TotalRevenue: decimal.NewFromInt(125), SalesCount: 1}, nil
}

func (f *fakeSource) Inventory() ([]inventory.Item, error) {
	return f.items, f.readErr
}

func item(name string, stock int) inventory.Item {
	return inventory.Item{Product: domain.Product{ID: name, Name: name}, CurrentStock: stock}
}

func TestNew_SchedulesConfiguredJobs(t *testing.T) {
	s, err := New(&fakeSource{}, Options{ReportCron: "0 20 * * *", RefreshCron: "*/15 * * * *", Timezone: "America/Sao_Paulo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())

	s, err = New(&fakeSource{}, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Jobs())
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New(&fakeSource{}, Options{ReportCron: "every day"}, nil)
	assert.ErrorContains(t, err, "stock report")

	_, err = New(&fakeSource{}, Options{Timezone: "Nowhere/Land"}, nil)
	assert.ErrorContains(t, err, "timezone")
}

func TestStockReport_ListsOutOfStockAndNegative(t *testing.T) {
	src := &fakeSource{items: []inventory.Item{item("Batom", 15), item("Base", 0), item("Rimel", -2)}}
	s, err := New(src, Options{}, nil)
	require.NoError(t, err)

	report, err := s.StockReport()

	require.NoError(t, err)
	assert.Equal(t, []string{"Base"}, report.OutOfStock)
	assert.Equal(t, []string{"Rimel"}, report.Negative)
	assert.Equal(t, 1, report.Summary.SalesCount)
}

func TestStockReport_NotLoaded(t *testing.T) {
	s, err := New(&fakeSource{readErr: service.ErrNotLoaded}, Options{}, nil)
	require.NoError(t, err)

	_, err = s.StockReport()
	assert.ErrorIs(t, err, service.ErrNotLoaded)
	s.reportJob()
}

func TestRefreshJob_CallsLoad(t *testing.T) {
	src := &fakeSource{}
	s, err := New(src, Options{JobTimeout: time.Second}, nil)
	require.NoError(t, err)

	s.refreshJob()
	src.loadErr = assert.AnError
	s.refreshJob()

	assert.Equal(t, 2, src.loads)
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakeSource{}, Options{ReportCron: "@daily"}, nil)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
