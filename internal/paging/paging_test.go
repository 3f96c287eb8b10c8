package paging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceOf(n int) PageFunc[int] {
	return func(_ context.Context, from, to int) ([]int, error) {
		var out []int
		for i := from; i <= to && i < n; i++ {
			out = append(out, i)
		}
		return out, nil
	}
}

func TestFetchAll(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantCalls int
	}{
		{name: "empty source", total: 0, pageSize: 5, wantCalls: 1},
		{name: "single short page", total: 3, pageSize: 5, wantCalls: 1},
		{name: "exact multiple needs a trailing empty page", total: 10, pageSize: 5, wantCalls: 3},
		{name: "partial last page", total: 12, pageSize: 5, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			inner := sourceOf(tt.total)
			rows, err := FetchAll(context.Background(), tt.pageSize, func(ctx context.Context, from, to int) ([]int, error) {
				calls++
				assert.Equal(t, tt.pageSize-1, to-from)
				return inner(ctx, from, to)
			})

			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, calls)
			require.Len(t, rows, tt.total)
			for i, v := range rows {
				assert.Equal(t, i, v)
			}
		})
	}
}

func TestFetchAll_DefaultPageSize(t *testing.T) {
	var gotTo int
	_, err := FetchAll(context.Background(), 0, func(_ context.Context, from, to int) ([]int, error) {
		gotTo = to
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize-1, gotTo)
}

func TestFetchAll_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := FetchAll(context.Background(), 2, func(_ context.Context, from, _ int) ([]int, error) {
		if from > 0 {
			return nil, boom
		}
		return []int{1, 2}, nil
	})
	assert.ErrorIs(t, err, boom)
}
