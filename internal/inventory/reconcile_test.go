package inventory

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/domain"
)

func fixture() ([]domain.Product, []domain.Replenishment, []domain.Sale) {
	products := []domain.Product{
		{ID: "p1", Name: "Batom", PurchasePrice: decimal.NewFromInt(10), BasePrice: decimal.NewFromInt(25)},
		{ID: "p2", Name: "Base"},
		{ID: "p3", Name: "Rimel"},
		{ID: "p4", Name: "Blush"},
	}
	replenishments := []domain.Replenishment{
		{ID: "r1", ProductID: "p1", Quantity: 20},
		{ID: "r2", ProductID: "p2", Quantity: 3},
		{ID: "r3", ProductID: "p2", Quantity: 2},
		{ID: "r4", ProductID: "p3", Quantity: 1},
	}
	sales := []domain.Sale{
		{ID: "s1", ProductID: "p1", Quantity: 5, TotalValue: decimal.NewFromInt(125)},
		{ID: "s2", ProductID: "p2", Quantity: 5},
		{ID: "s3", ProductID: "p3", Quantity: 4},
	}
	return products, replenishments, sales
}

func stockByID(items []Item) map[string]int {
	out := make(map[string]int, len(items))
	for _, item := range items {
		out[item.ID] = item.CurrentStock
	}
	return out
}

func TestReconcile_LocalFold(t *testing.T) {
	products, replenishments, sales := fixture()

	items := Reconcile(products, replenishments, sales, nil)

	require.Len(t, items, 4)
	assert.Equal(t, map[string]int{"p1": 15, "p2": 0, "p3": -3, "p4": 0}, stockByID(items))
	assert.Equal(t, "p1", items[0].ID, "output follows product order")
	for _, item := range items {
		assert.False(t, item.ServerStock)
	}
}

func TestReconcile_ExampleScenario(t *testing.T) {
	products, replenishments, sales := fixture()
	items := Reconcile(products[:1], replenishments[:1], sales[:1], nil)

	require.Len(t, items, 1)
	assert.Equal(t, 15, items[0].CurrentStock)
	assert.True(t, items[0].UnitProfit().Equal(decimal.NewFromInt(15)))
}

func TestReconcile_OrderIndependent(t *testing.T) {
	products, replenishments, sales := fixture()
	want := stockByID(Reconcile(products, replenishments, sales, nil))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		p := append([]domain.Product(nil), products...)
		r := append([]domain.Replenishment(nil), replenishments...)
		s := append([]domain.Sale(nil), sales...)
		rng.Shuffle(len(p), func(a, b int) { p[a], p[b] = p[b], p[a] })
		rng.Shuffle(len(r), func(a, b int) { r[a], r[b] = r[b], r[a] })
		rng.Shuffle(len(s), func(a, b int) { s[a], s[b] = s[b], s[a] })

		assert.Equal(t, want, stockByID(Reconcile(p, r, s, nil)))
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	products, replenishments, sales := fixture()
	first := Reconcile(products, replenishments, sales, nil)
	second := Reconcile(products, replenishments, sales, nil)
	assert.Equal(t, first, second)
}

func TestReconcile_ServerStockOverridesLocalSums(t *testing.T) {
	products, replenishments, sales := fixture()

	items := Reconcile(products, replenishments, sales, map[string]int{"p1": 99})

	item, ok := Find(items, "p1")
	require.True(t, ok)
	assert.Equal(t, 99, item.CurrentStock)
	assert.True(t, item.ServerStock)

	other, _ := Find(items, "p2")
	assert.False(t, other.ServerStock)
	assert.Equal(t, 0, other.CurrentStock)
}

func TestReconcile_DeletingSaleRestoresQuantity(t *testing.T) {
	products, replenishments, sales := fixture()
	before := stockByID(Reconcile(products, replenishments, sales, nil))

	remaining := sales[1:] // s1 sold 5 units of p1
	after := stockByID(Reconcile(products, replenishments, remaining, nil))

	assert.Equal(t, before["p1"]+5, after["p1"])
	assert.Equal(t, before["p2"], after["p2"])
}

func TestOutOfStockAndNegative(t *testing.T) {
	items := []Item{{CurrentStock: 0}, {CurrentStock: 3}, {CurrentStock: -1}}
	assert.Len(t, OutOfStock(items), 1)
	assert.Len(t, Negative(items), 1)
}

func TestReconciler_MemoizesOnContents(t *testing.T) {
	products, replenishments, sales := fixture()
	r := NewReconciler()

	first := r.Reconcile(products, replenishments, sales, nil)
	first[0].CurrentStock = 1000

	second := r.Reconcile(products, replenishments, sales, nil)
	assert.Equal(t, 15, second[0].CurrentStock, "cached result is not aliased")

	shuffled := []domain.Sale{sales[2], sales[0], sales[1]}
	assert.Equal(t, stockByID(second), stockByID(r.Reconcile(products, replenishments, shuffled, nil)))

	extra := append(append([]domain.Sale(nil), sales...), domain.Sale{ID: "s4", ProductID: "p1", Quantity: 1})
	third := r.Reconcile(products, replenishments, extra, nil)
	assert.Equal(t, 14, stockByID(third)["p1"])

	renamed := append([]domain.Product(nil), products...)
	renamed[0].Name = "Batom Novo"
	fourth := r.Reconcile(renamed, replenishments, extra, nil)
	assert.Equal(t, "Batom Novo", fourth[0].Name)
}

func TestReconciler_KeyCoversEveryEmittedField(t *testing.T) {
	products, replenishments, sales := fixture()
	r := NewReconciler()
	r.Reconcile(products, replenishments, sales, nil)

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	dated := append([]domain.Product(nil), products...)
	dated[1].CreatedAt = &created
	items := r.Reconcile(dated, replenishments, sales, nil)
	require.NotNil(t, items[1].CreatedAt)
	assert.True(t, items[1].CreatedAt.Equal(created))

	empty := ""
	imaged := append([]domain.Product(nil), dated...)
	imaged[1].Image = &empty
	items = r.Reconcile(imaged, replenishments, sales, nil)
	assert.NotNil(t, items[1].Image, "empty image differs from no image")
}

func TestReconciler_SameShapeDifferentContents(t *testing.T) {
	products, replenishments, _ := fixture()
	r := NewReconciler()

	before := r.Reconcile(products, replenishments, []domain.Sale{
		{ID: "s1", ProductID: "p1", Quantity: 2},
		{ID: "s2", ProductID: "p2", Quantity: 3},
	}, nil)
	after := r.Reconcile(products, replenishments, []domain.Sale{
		{ID: "s1", ProductID: "p1", Quantity: 3},
		{ID: "s2", ProductID: "p2", Quantity: 2},
	}, nil)

	assert.Equal(t, 18, stockByID(before)["p1"])
	assert.Equal(t, 17, stockByID(after)["p1"])
	assert.Equal(t, 3, stockByID(after)["p2"])
}
