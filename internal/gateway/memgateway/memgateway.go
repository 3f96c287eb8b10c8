// Package memgateway is an in-process backend. It serves the "memory" gateway
// driver for local demos and is the backend of the service tests, which use its
// failure injection to simulate transient and permanent backend errors.
package memgateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockdash/internal/gateway"
)

type Op string

const (
	OpSelect Op = "select"
	OpCount  Op = "count"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpRPC    Op = "rpc"
	OpUpload Op = "upload"
	OpRemove Op = "remove"
	OpInvoke Op = "invoke"
)

type RPCFunc func(args map[string]any) ([]gateway.Row, error)

type FunctionFunc func(body any) (gateway.Row, error)

type failure struct {
	err       error
	remaining int // -1 means forever
}

type Call struct {
	Op     Op
	Target string
}

// Gateway implements gateway.Gateway, gateway.ObjectStore and gateway.FunctionInvoker.
type Gateway struct {
	mu        sync.Mutex
	tables    map[string][]gateway.Row
	objects   map[string][]byte
	rpcs      map[string]RPCFunc
	functions map[string]FunctionFunc
	failures  map[Call]*failure
	calls     []Call
	baseURL   string
	now       func() time.Time
}

func New() *Gateway {
	return &Gateway{
		tables:    make(map[string][]gateway.Row),
		objects:   make(map[string][]byte),
		rpcs:      make(map[string]RPCFunc),
		functions: make(map[string]FunctionFunc),
		failures:  make(map[Call]*failure),
		baseURL:   "memory://objects",
		now:       time.Now,
	}
}

// Seed appends rows to a table, assigning ids where missing.
func (g *Gateway) Seed(table string, rows ...gateway.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, row := range rows {
		g.tables[table] = append(g.tables[table], g.prepare(row))
	}
}

// Rows returns a copy of a table's contents.
func (g *Gateway) Rows(table string) []gateway.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneRows(g.tables[table])
}

func (g *Gateway) HandleRPC(name string, fn RPCFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rpcs[name] = fn
}

func (g *Gateway) HandleFunction(name string, fn FunctionFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.functions[name] = fn
}

// Fail makes the next times calls of op on target (a table, RPC, bucket or function
// name) return err. times < 0 fails forever.
func (g *Gateway) Fail(op Op, target string, err error, times int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if times < 0 {
		times = -1
	}
	g.failures[Call{Op: op, Target: target}] = &failure{err: err, remaining: times}
}

// Calls returns the number of calls made for op on target.
func (g *Gateway) Calls(op Op, target string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op && c.Target == target {
			n++
		}
	}
	return n
}

func (g *Gateway) Object(bucket, path string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[bucket+"/"+path]
	return data, ok
}

// enter records the call and reports an injected failure. Callers hold g.mu.
func (g *Gateway) enter(op Op, target string) error {
	call := Call{Op: op, Target: target}
	g.calls = append(g.calls, call)
	f, ok := g.failures[call]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(g.failures, call)
		}
	}
	return f.err
}

func (g *Gateway) Select(_ context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpSelect, table); err != nil {
		return nil, err
	}

	rows := filterRows(g.tables[table], q.Filters)
	if q.Order != nil {
		column, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(rows, func(i, j int) bool {
			cmp := compare(rows[i][column], rows[j][column])
			if asc {
				return cmp < 0
			}
			return cmp > 0
		})
	}
	if q.Range != nil {
		from, to := q.Range.From, q.Range.To+1
		if from > len(rows) {
			from = len(rows)
		}
		if to > len(rows) {
			to = len(rows)
		}
		rows = rows[from:to]
	}

	out := make([]gateway.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, project(row, q.Columns))
	}
	return out, nil
}

func (g *Gateway) Count(_ context.Context, table string, filters ...gateway.Filter) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCount, table); err != nil {
		return 0, err
	}
	return len(filterRows(g.tables[table], filters)), nil
}

func (g *Gateway) Insert(_ context.Context, table string, record gateway.Row) (gateway.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpInsert, table); err != nil {
		return nil, err
	}
	row := g.prepare(record)
	g.tables[table] = append(g.tables[table], row)
	return cloneRow(row), nil
}

func (g *Gateway) Update(_ context.Context, table string, patch gateway.Row, filter gateway.Filter) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpUpdate, table); err != nil {
		return err
	}
	matched := 0
	for _, row := range g.tables[table] {
		if matches(row, filter) {
			matched++
			for k, v := range patch {
				row[k] = v
			}
		}
	}
	if matched == 0 {
		return fmt.Errorf("update %s: %w", table, gateway.ErrNotFound)
	}
	return nil
}

func (g *Gateway) Delete(_ context.Context, table string, filter gateway.Filter) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpDelete, table); err != nil {
		return err
	}
	kept := g.tables[table][:0]
	for _, row := range g.tables[table] {
		if !matches(row, filter) {
			kept = append(kept, row)
		}
	}
	g.tables[table] = kept
	return nil
}

func (g *Gateway) RPC(_ context.Context, name string, args map[string]any) ([]gateway.Row, error) {
	g.mu.Lock()
	if err := g.enter(OpRPC, name); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	fn, ok := g.rpcs[name]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("rpc %s: %w", name, gateway.ErrUnsupported)
	}
	return fn(args)
}

func (g *Gateway) Invoke(_ context.Context, name string, body any) (gateway.Row, error) {
	g.mu.Lock()
	if err := g.enter(OpInvoke, name); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	fn, ok := g.functions[name]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("function %s: %w", name, gateway.ErrUnsupported)
	}
	return fn(body)
}

func (g *Gateway) Upload(_ context.Context, bucket, path string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpUpload, bucket); err != nil {
		return err
	}
	g.objects[bucket+"/"+path] = bytes.Clone(data)
	return nil
}

func (g *Gateway) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", g.baseURL, bucket, path)
}

func (g *Gateway) PathFromURL(bucket, url string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", g.baseURL, bucket)
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func (g *Gateway) Remove(_ context.Context, bucket string, paths []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpRemove, bucket); err != nil {
		return err
	}
	for _, path := range paths {
		delete(g.objects, bucket+"/"+path)
	}
	return nil
}

func (g *Gateway) prepare(record gateway.Row) gateway.Row {
	row := cloneRow(record)
	if id, ok := row["id"]; !ok || id == nil || id == "" {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = g.now().UTC().Format(time.RFC3339Nano)
	}
	return row
}

func filterRows(rows []gateway.Row, filters []gateway.Filter) []gateway.Row {
	out := make([]gateway.Row, 0, len(rows))
	for _, row := range rows {
		ok := true
		for _, f := range filters {
			if !matches(row, f) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func matches(row gateway.Row, f gateway.Filter) bool {
	v, ok := row[f.Column]
	if !ok || v == nil {
		return f.Value == nil
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

func compare(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func project(row gateway.Row, columns []string) gateway.Row {
	if len(columns) == 0 {
		return cloneRow(row)
	}
	out := make(gateway.Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func cloneRow(row gateway.Row) gateway.Row {
	out := make(gateway.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func cloneRows(rows []gateway.Row) []gateway.Row {
	out := make([]gateway.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneRow(row))
	}
	return out
}
