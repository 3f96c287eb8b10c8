// Package gateway defines the contract of the remote data backend: table CRUD,
// aggregate RPCs, object storage for images and server-side functions.
//
// Implementations live in the sub-packages. The rest of the module only talks to
// these interfaces and never branches on which backend is in use.
package gateway

import (
	"context"
	"errors"
	"io"
)

// Physical table names. The backend keeps the localized naming scheme.
const (
	TableProducts       = "produtos"
	TableReplenishments = "reabastecimentos"
	TableSales          = "vendas"
	TableSellers        = "vendedores"
	TableClients        = "clientes"
)

// Aggregate procedures exposed by the backend.
const (
	RPCProductStock    = "get_product_stock"
	RPCDashboardTotals = "get_dashboard_totals"
)

// Tables lists every table the dashboard reads.
var Tables = []string{
	TableProducts,
	TableReplenishments,
	TableSales,
	TableSellers,
	TableClients,
}

var (
	// ErrNoRows is returned by Insert when the backend does not echo the created row.
	ErrNoRows = errors.New("gateway: no rows returned")
	// ErrNotFound is returned by Update when the filter matches no row.
	ErrNotFound = errors.New("gateway: no rows matched")
	// ErrUnsupported is returned by backends that lack an optional capability.
	ErrUnsupported = errors.New("gateway: operation not supported")
)

// Row is a raw record as the backend returns it. Column names may follow either
// naming scheme; the normalize package maps them to domain types.
type Row map[string]any

// Filter is an equality predicate.
type Filter struct {
	Column string
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

type Order struct {
	Column    string
	Ascending bool
}

// Range selects rows from..to, both inclusive, after ordering.
type Range struct {
	From int
	To   int
}

type Query struct {
	Columns []string
	Filters []Filter
	Order   *Order
	Range   *Range
}

type Gateway interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Count(ctx context.Context, table string, filters ...Filter) (int, error)
	Insert(ctx context.Context, table string, record Row) (Row, error)
	// Update patches every row matching filter and fails with ErrNotFound when
	// there is none.
	Update(ctx context.Context, table string, patch Row, filter Filter) error
	Delete(ctx context.Context, table string, filter Filter) error
	RPC(ctx context.Context, name string, args map[string]any) ([]Row, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths []string) error
	// PathFromURL reverses PublicURL. ok is false for URLs that do not point into bucket.
	PathFromURL(bucket, url string) (path string, ok bool)
}

// FunctionInvoker runs a named server-side function with a JSON body.
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, body any) (Row, error)
}
