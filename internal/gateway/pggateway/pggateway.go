// Package pggateway serves the gateway contract straight from Postgres, for
// deployments without a REST layer in front of the database.
package pggateway

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"stockdash/internal/gateway"
)

// DB is the subset of *pgxpool.Pool the gateway needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Gateway struct {
	db DB
}

func New(db DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	sql, args := buildSelect(table, q)
	rows, err := g.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

func (g *Gateway) Count(ctx context.Context, table string, filters ...gateway.Filter) (int, error) {
	where, args := buildWhere(filters, 0)
	var n int64
	if err := g.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+ident(table)+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return int(n), nil
}

func (g *Gateway) Insert(ctx context.Context, table string, record gateway.Row) (gateway.Row, error) {
	sql, args := buildInsert(table, record)
	rows, err := g.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: %w", table, gateway.ErrNoRows)
	}
	return rows[0], nil
}

func (g *Gateway) Update(ctx context.Context, table string, patch gateway.Row, filter gateway.Filter) error {
	if len(patch) == 0 {
		return nil
	}
	sql, args := buildUpdate(table, patch, filter)
	tag, err := g.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", table, gateway.ErrNotFound)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, table string, filter gateway.Filter) error {
	where, args := buildWhere([]gateway.Filter{filter}, 0)
	if _, err := g.db.Exec(ctx, "DELETE FROM "+ident(table)+where, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (g *Gateway) RPC(ctx context.Context, name string, args map[string]any) ([]gateway.Row, error) {
	sql, values := buildCall(name, args)
	rows, err := g.query(ctx, sql, values...)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", name, err)
	}
	return rows, nil
}

func (g *Gateway) query(ctx context.Context, sql string, args ...any) ([]gateway.Row, error) {
	rows, err := g.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Row, 0, len(maps))
	for _, m := range maps {
		row := make(gateway.Row, len(m))
		for k, v := range m {
			row[k] = plainValue(v)
		}
		out = append(out, row)
	}
	return out, nil
}

// plainValue turns driver types into the strings, numbers and slices the
// normalizer understands.
func plainValue(v any) any {
	switch value := v.(type) {
	case [16]byte:
		return uuid.UUID(value).String()
	case pgtype.Numeric:
		if !value.Valid {
			return nil
		}
		text, err := value.Value()
		if err != nil {
			return nil
		}
		return text
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func buildSelect(table string, q gateway.Query) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range q.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ident(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(ident(table))

	where, args := buildWhere(q.Filters, 0)
	b.WriteString(where)

	if q.Order != nil {
		b.WriteString(" ORDER BY ")
		b.WriteString(ident(q.Order.Column))
		if q.Order.Ascending {
			b.WriteString(" ASC")
		} else {
			b.WriteString(" DESC")
		}
	}
	if q.Range != nil {
		limit := q.Range.To - q.Range.From + 1
		if limit < 0 {
			limit = 0
		}
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", limit, q.Range.From)
	}
	return b.String(), args
}

// buildWhere renders filters as placeholders numbered after offset.
func buildWhere(filters []gateway.Filter, offset int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if f.Value == nil {
			parts = append(parts, ident(f.Column)+" IS NULL")
			continue
		}
		args = append(args, f.Value)
		parts = append(parts, fmt.Sprintf("%s = $%d", ident(f.Column), offset+len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(table string, record gateway.Row) (string, []any) {
	keys := sortedKeys(record)
	if len(keys) == 0 {
		return "INSERT INTO " + ident(table) + " DEFAULT VALUES RETURNING *", nil
	}
	cols := make([]string, len(keys))
	holders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = ident(k)
		holders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[k]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		ident(table), strings.Join(cols, ", "), strings.Join(holders, ", ")), args
}

func buildUpdate(table string, patch gateway.Row, filter gateway.Filter) (string, []any) {
	keys := sortedKeys(patch)
	sets := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", ident(k), i+1)
		args[i] = patch[k]
	}
	where, whereArgs := buildWhere([]gateway.Filter{filter}, len(args))
	return "UPDATE " + ident(table) + " SET " + strings.Join(sets, ", ") + where, append(args, whereArgs...)
}

// buildCall uses named notation so argument order does not matter.
func buildCall(name string, args map[string]any) (string, []any) {
	keys := sortedKeys(args)
	params := make([]string, len(keys))
	values := make([]any, len(keys))
	for i, k := range keys {
		params[i] = fmt.Sprintf("%s => $%d", ident(k), i+1)
		values[i] = args[k]
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", ident(name), strings.Join(params, ", ")), values
}
