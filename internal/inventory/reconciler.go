package inventory

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"stockdash/internal/domain"
)

// Reconciler memoizes Reconcile on the contents of its inputs. The key is an
// exact encoding: products in order, since the output follows them, and
// replenishments, sales and server figures as sorted sets of entries.
type Reconciler struct {
	mu     sync.Mutex
	key    string
	valid  bool
	result []Item
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

func (r *Reconciler) Reconcile(
	products []domain.Product,
	replenishments []domain.Replenishment,
	sales []domain.Sale,
	serverStock map[string]int,
) []Item {
	key := contentKey(products, replenishments, sales, serverStock)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.valid || r.key != key {
		r.result = Reconcile(products, replenishments, sales, serverStock)
		r.key = key
		r.valid = true
	}
	out := make([]Item, len(r.result))
	copy(out, r.result)
	return out
}

// contentKey covers every product field an Item carries and every input the
// fold reads.
func contentKey(
	products []domain.Product,
	replenishments []domain.Replenishment,
	sales []domain.Sale,
	serverStock map[string]int,
) string {
	var b strings.Builder
	for _, p := range products {
		image := ""
		if p.Image != nil {
			image = *p.Image
		}
		createdAt := ""
		if p.CreatedAt != nil {
			createdAt = p.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		writeEntry(&b, p.ID, p.Name, p.PurchasePrice.String(), p.BasePrice.String(),
			strconv.FormatBool(p.Image != nil), image, strconv.FormatBool(p.Active), createdAt)
	}

	b.WriteString("\x1d")
	entries := make([]string, 0, max(len(replenishments), len(sales), len(serverStock)))
	for _, rep := range replenishments {
		entries = append(entries, entry(rep.ID, rep.ProductID, strconv.Itoa(rep.Quantity)))
	}
	writeSorted(&b, entries)

	entries = entries[:0]
	for _, s := range sales {
		entries = append(entries, entry(s.ID, s.ProductID, strconv.Itoa(s.Quantity)))
	}
	writeSorted(&b, entries)

	// A nil map and an empty one reconcile the same way.
	entries = entries[:0]
	for id, figure := range serverStock {
		entries = append(entries, entry(id, strconv.Itoa(figure)))
	}
	writeSorted(&b, entries)
	return b.String()
}

func entry(fields ...string) string {
	var b strings.Builder
	writeEntry(&b, fields...)
	return b.String()
}

func writeEntry(b *strings.Builder, fields ...string) {
	for _, field := range fields {
		b.WriteString(strconv.Quote(field))
		b.WriteByte(0)
	}
	b.WriteByte('\n')
}

func writeSorted(b *strings.Builder, entries []string) {
	slices.Sort(entries)
	for _, e := range entries {
		b.WriteString(e)
	}
	b.WriteString("\x1d")
}
