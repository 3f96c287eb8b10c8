package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/gateway"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL + "/", Key: "anon-key"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSelect_WireFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/produtos", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "id,nome", r.URL.Query().Get("select"))
		assert.Equal(t, "id.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "eq.true", r.URL.Query().Get("ativo"))
		assert.Equal(t, "0-499", r.Header.Get("Range"))
		assert.Equal(t, "items", r.Header.Get("Range-Unit"))
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "p1", "nome": "Batom", "preco_compra": 10.5}})
	})

	rows, err := client.Select(context.Background(), "produtos", gateway.Query{
		Columns: []string{"id", "nome"},
		Filters: []gateway.Filter{gateway.Eq("ativo", true)},
		Order:   &gateway.Order{Column: "id", Ascending: true},
		Range:   &gateway.Range{From: 0, To: 499},
	})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Batom", rows[0]["nome"])
	assert.Equal(t, 10.5, rows[0]["preco_compra"])
}

func TestSelect_RangePastEndIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable, map[string]any{"message": "range"})
	})
	rows, err := client.Select(context.Background(), "vendas", gateway.Query{Range: &gateway.Range{From: 500, To: 999}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSelect_ErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "42703", "message": "column does not exist"})
	})

	_, err := client.Select(context.Background(), "vendas", gateway.Query{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "42703", apiErr.Code)
	assert.Equal(t, "column does not exist", apiErr.Message)
}

func TestCount_ParsesContentRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-24/3573")
		w.WriteHeader(http.StatusOK)
	})

	n, err := client.Count(context.Background(), "vendas")

	require.NoError(t, err)
	assert.Equal(t, 3573, n)
}

func TestParseContentRange(t *testing.T) {
	n, err := parseContentRange("*/0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = parseContentRange("garbage")
	assert.Error(t, err)
}

func TestInsert_ReturnsRepresentation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["id"] = "new-id"
		writeJSON(w, http.StatusCreated, []map[string]any{body})
	})

	row, err := client.Insert(context.Background(), "clientes", gateway.Row{"nome": "Maria"})

	require.NoError(t, err)
	assert.Equal(t, "new-id", row["id"])
	assert.Equal(t, "Maria", row["nome"])
}

func TestInsert_EmptyRepresentation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, []map[string]any{})
	})
	_, err := client.Insert(context.Background(), "clientes", gateway.Row{"nome": "Maria"})
	assert.ErrorIs(t, err, gateway.ErrNoRows)
}

func TestUpdateAndDelete_UseEqualityFilters(t *testing.T) {
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "eq.c1", r.URL.Query().Get("id"))
		if r.Method == http.MethodPatch {
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "c1"}})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Update(context.Background(), "clientes", gateway.Row{"telefone": nil}, gateway.Eq("id", "c1")))
	require.NoError(t, client.Delete(context.Background(), "clientes", gateway.Eq("id", "c1")))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
}

func TestUpdate_NoMatchingRowIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id", r.URL.Query().Get("select"))
		writeJSON(w, http.StatusOK, []map[string]any{})
	})

	err := client.Update(context.Background(), "produtos", gateway.Row{"nome": "x"}, gateway.Eq("id", "ghost"))

	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestRPC_ArrayAndObjectResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/rpc/get_product_stock":
			writeJSON(w, http.StatusOK, []map[string]any{{"produto_id": "p1", "estoque_atual": 3}})
		case "/rest/v1/rpc/get_dashboard_totals":
			writeJSON(w, http.StatusOK, map[string]any{"total_vendas": 10})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	rows, err := client.RPC(ctx, "get_product_stock", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0]["produto_id"])

	rows, err = client.RPC(ctx, "get_dashboard_totals", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(10), rows[0]["total_vendas"])

	_, err = client.RPC(ctx, "missing", nil)
	assert.Error(t, err)
}

func TestStorage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/produtos/products/a.png":
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			data, _ := io.ReadAll(r.Body)
			assert.Equal(t, "png-bytes", string(data))
			writeJSON(w, http.StatusOK, map[string]any{"Key": "produtos/products/a.png"})
		case r.Method == http.MethodDelete && r.URL.Path == "/storage/v1/object/produtos":
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"products/a.png"}, body["prefixes"])
			writeJSON(w, http.StatusOK, []any{})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found", "message": "Object not found"})
		}
	})
	ctx := context.Background()

	require.NoError(t, client.Upload(ctx, "produtos", "products/a.png", strings.NewReader("png-bytes"), "image/png"))

	url := client.PublicURL("produtos", "products/a.png")
	assert.True(t, strings.HasSuffix(url, "/storage/v1/object/public/produtos/products/a.png"))
	path, ok := client.PathFromURL("produtos", url)
	require.True(t, ok)
	assert.Equal(t, "products/a.png", path)
	_, ok = client.PathFromURL("produtos", "https://elsewhere/x.png")
	assert.False(t, ok)

	require.NoError(t, client.Remove(ctx, "produtos", []string{path}))

	err := client.Upload(ctx, "other", "x", strings.NewReader(""), "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Object not found", apiErr.Message)
}

func TestInvoke(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/import-planilha", r.URL.Path)
		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		writeJSON(w, http.StatusOK, map[string]any{"imported": len(rows)})
	})

	resp, err := client.Invoke(context.Background(), "import-planilha", []map[string]any{{"descricao": "a"}, {"descricao": "b"}})

	require.NoError(t, err)
	assert.Equal(t, float64(2), resp["imported"])
}
