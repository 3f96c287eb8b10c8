package memgateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/gateway"
)

func TestSelect_FilterOrderRangeColumns(t *testing.T) {
	g := New()
	g.Seed("t",
		gateway.Row{"id": "c", "n": 3, "k": "x"},
		gateway.Row{"id": "a", "n": 1, "k": "x"},
		gateway.Row{"id": "b", "n": 2, "k": "y"},
	)
	ctx := context.Background()

	rows, err := g.Select(ctx, "t", gateway.Query{Order: &gateway.Order{Column: "n", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, []any{rows[0]["id"], rows[1]["id"], rows[2]["id"]})

	rows, err = g.Select(ctx, "t", gateway.Query{
		Order: &gateway.Order{Column: "id"},
		Range: &gateway.Range{From: 1, To: 5},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0]["id"])

	rows, err = g.Select(ctx, "t", gateway.Query{Columns: []string{"id"}, Filters: []gateway.Filter{gateway.Eq("k", "x")}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotContains(t, rows[0], "n")
}

func TestInsertUpdateDelete(t *testing.T) {
	g := New()
	ctx := context.Background()

	row, err := g.Insert(ctx, "t", gateway.Row{"nome": "x"})
	require.NoError(t, err)
	id, _ := row["id"].(string)
	require.NotEmpty(t, id)
	assert.NotEmpty(t, row["created_at"])

	row["nome"] = "mutated"
	assert.Equal(t, "x", g.Rows("t")[0]["nome"], "returned rows are copies")

	require.NoError(t, g.Update(ctx, "t", gateway.Row{"nome": "y"}, gateway.Eq("id", id)))
	assert.Equal(t, "y", g.Rows("t")[0]["nome"])
	assert.ErrorIs(t, g.Update(ctx, "t", gateway.Row{"nome": "z"}, gateway.Eq("id", "ghost")), gateway.ErrNotFound)
	assert.Equal(t, "y", g.Rows("t")[0]["nome"])

	n, err := g.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, g.Delete(ctx, "t", gateway.Eq("id", id)))
	assert.Empty(t, g.Rows("t"))
}

func TestFailureInjection(t *testing.T) {
	g := New()
	boom := errors.New("boom")
	g.Fail(OpSelect, "t", boom, 2)
	ctx := context.Background()

	_, err := g.Select(ctx, "t", gateway.Query{})
	assert.ErrorIs(t, err, boom)
	_, err = g.Select(ctx, "t", gateway.Query{})
	assert.ErrorIs(t, err, boom)
	_, err = g.Select(ctx, "t", gateway.Query{})
	assert.NoError(t, err)
	assert.Equal(t, 3, g.Calls(OpSelect, "t"))
}

func TestRPCAndFunctions(t *testing.T) {
	g := New()
	ctx := context.Background()

	_, err := g.RPC(ctx, "missing", nil)
	assert.ErrorIs(t, err, gateway.ErrUnsupported)

	g.HandleRPC("sum", func(args map[string]any) ([]gateway.Row, error) {
		return []gateway.Row{{"total": args["a"]}}, nil
	})
	rows, err := g.RPC(ctx, "sum", map[string]any{"a": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, rows[0]["total"])

	_, err = g.Invoke(ctx, "fn", nil)
	assert.ErrorIs(t, err, gateway.ErrUnsupported)
}

func TestObjects(t *testing.T) {
	g := New()
	ctx := context.Background()

	require.NoError(t, g.Upload(ctx, "b", "products/x.png", strings.NewReader("data"), "image/png"))
	url := g.PublicURL("b", "products/x.png")

	path, ok := g.PathFromURL("b", url)
	require.True(t, ok)
	assert.Equal(t, "products/x.png", path)
	_, ok = g.PathFromURL("other", url)
	assert.False(t, ok)

	require.NoError(t, g.Remove(ctx, "b", []string{path}))
	_, exists := g.Object("b", path)
	assert.False(t, exists)
}
