package paging

import (
	"context"
	"fmt"
)

const DefaultPageSize = 500

// PageFunc returns the rows in the inclusive range [from, to] of a stably ordered source.
type PageFunc[T any] func(ctx context.Context, from, to int) ([]T, error)

// FetchAll requests consecutive pages until one comes back shorter than pageSize
// (or empty) and returns the concatenation in source order.
func FetchAll[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	for from := 0; ; from += pageSize {
		page, err := fetch(ctx, from, from+pageSize-1)
		if err != nil {
			return nil, fmt.Errorf("fetch rows %d-%d: %w", from, from+pageSize-1, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
