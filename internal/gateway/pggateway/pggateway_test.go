package pggateway

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/db"
	"stockdash/internal/gateway"
)

// execDB answers Exec with a fixed command tag.
type execDB struct {
	DB
	tag string
	sql string
}

func (d *execDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.sql = sql
	return pgconn.NewCommandTag(d.tag), nil
}

func TestUpdate_RowsAffected(t *testing.T) {
	ctx := context.Background()

	missing := &execDB{tag: "UPDATE 0"}
	err := New(missing).Update(ctx, "produtos", gateway.Row{"nome": "x"}, gateway.Eq("id", "ghost"))
	assert.ErrorIs(t, err, gateway.ErrNotFound)
	assert.Contains(t, missing.sql, `UPDATE "produtos"`)

	found := &execDB{tag: "UPDATE 1"}
	assert.NoError(t, New(found).Update(ctx, "produtos", gateway.Row{"nome": "x"}, gateway.Eq("id", "p1")))
}

func TestBuildSelect(t *testing.T) {
	sql, args := buildSelect("vendas", gateway.Query{
		Columns: []string{"id", "valor_total"},
		Filters: []gateway.Filter{gateway.Eq("produto_id", "p1"), gateway.Eq("cliente_id", nil)},
		Order:   &gateway.Order{Column: "id", Ascending: true},
		Range:   &gateway.Range{From: 500, To: 999},
	})

	assert.Equal(t,
		`SELECT "id", "valor_total" FROM "vendas" WHERE "produto_id" = $1 AND "cliente_id" IS NULL ORDER BY "id" ASC LIMIT 500 OFFSET 500`,
		sql)
	assert.Equal(t, []any{"p1"}, args)
}

func TestBuildSelect_QuotesHostileIdentifiers(t *testing.T) {
	sql, _ := buildSelect(`x"; DROP TABLE produtos; --`, gateway.Query{})
	assert.Equal(t, `SELECT * FROM "x""; DROP TABLE produtos; --"`, sql)
}

func TestBuildInsert_SortedColumns(t *testing.T) {
	sql, args := buildInsert("clientes", gateway.Row{"telefone": nil, "nome": "Maria"})

	assert.Equal(t, `INSERT INTO "clientes" ("nome", "telefone") VALUES ($1, $2) RETURNING *`, sql)
	assert.Equal(t, []any{"Maria", nil}, args)
}

func TestBuildUpdate_NumbersFilterAfterSet(t *testing.T) {
	sql, args := buildUpdate("clientes", gateway.Row{"telefone": "9", "email": "e"}, gateway.Eq("id", "c1"))

	assert.Equal(t, `UPDATE "clientes" SET "email" = $1, "telefone" = $2 WHERE "id" = $3`, sql)
	assert.Equal(t, []any{"e", "9", "c1"}, args)
}

func TestBuildCall(t *testing.T) {
	sql, args := buildCall("get_product_stock", nil)
	assert.Equal(t, `SELECT * FROM "get_product_stock"()`, sql)
	assert.Empty(t, args)

	sql, args = buildCall("f", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, `SELECT * FROM "f"("a" => $1, "b" => $2)`, sql)
	assert.Equal(t, []any{1, 2}, args)
}

func TestPlainValue(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String(), plainValue([16]byte(id)))

	num := pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}
	text, ok := plainValue(num).(string)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString(text).Equal(decimal.NewFromFloat(12.5)))
	assert.Nil(t, plainValue(pgtype.Numeric{}))

	assert.Equal(t, []any{"a", id.String()}, plainValue([]any{"a", [16]byte(id)}))
	assert.Equal(t, int32(3), plainValue(int32(3)))
}

// TestRoundTrip runs against a real database when TEST_DATABASE_URL is set.
func TestRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, db.PoolOptions{})
	require.NoError(t, err)
	defer pool.Close()
	_, err = db.RunMigrations(ctx, pool, nil)
	require.NoError(t, err)

	g := New(pool)
	row, err := g.Insert(ctx, gateway.TableProducts, gateway.Row{"nome": "Teste", "preco_compra": 10.5, "preco_venda": 20.0, "ativo": true})
	require.NoError(t, err)
	id, ok := row["id"].(string)
	require.True(t, ok)
	t.Cleanup(func() { _ = g.Delete(ctx, gateway.TableProducts, gateway.Eq("id", id)) })
	price, ok := row["preco_compra"].(string)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString(price).Equal(decimal.NewFromFloat(10.5)))

	_, err = g.Insert(ctx, gateway.TableReplenishments, gateway.Row{"produto_id": id, "quantidade": 4, "preco_unitario": 10.5, "custo_total": 42.0, "data": "2025-05-01T10:00:00Z"})
	require.NoError(t, err)

	stock, err := g.RPC(ctx, gateway.RPCProductStock, nil)
	require.NoError(t, err)
	found := false
	for _, r := range stock {
		if r["produto_id"] == id {
			found = true
			assert.EqualValues(t, 4, r["estoque_atual"])
		}
	}
	assert.True(t, found)

	n, err := g.Count(ctx, gateway.TableProducts, gateway.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
