package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aggregatorStub struct {
	gotIDs  []domain.CartItemID
	gotOpts domain.AggregationOptions
	result  domain.Result
	err     error
}

func (a *aggregatorStub) Aggregate(_ context.Context, ids []domain.CartItemID, opts domain.AggregationOptions) (domain.Result, error) {
	a.gotIDs = ids
	a.gotOpts = opts
	return a.result, a.err
}

func TestRecommendFlags_Apply(t *testing.T) {
	cmd := newRecommendCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--product-id", "p1,p2",
		"--product-id", "p3",
		"--sort", "highest_price",
		"--limit", "2",
	}))

	defaults := domain.AggregationOptions{
		SourceURL: "https://shop.example/recommendations/products",
		SortOrder: domain.SortAscending,
		Scope:     domain.ScopeAllCartItems,
		Limit:     4,
	}

	var f recommendFlags
	f.productIDs, _ = cmd.Flags().GetStringSlice("product-id")
	f.sort, _ = cmd.Flags().GetString("sort")
	f.limit, _ = cmd.Flags().GetInt("limit")

	opts, err := f.apply(cmd, defaults)
	require.NoError(t, err)
	assert.Equal(t, domain.SortDescending, opts.SortOrder)
	assert.Equal(t, domain.ScopeAllCartItems, opts.Scope, "unset flag keeps the configured scope")
	assert.Equal(t, 2, opts.Limit)
	assert.Equal(t, defaults.SourceURL, opts.SourceURL)
	assert.Equal(t, []domain.CartItemID{"p1", "p2", "p3"}, f.cartItemIDs())
}

func TestRecommendFlags_ApplyInvalidScope(t *testing.T) {
	cmd := newRecommendCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--scope", "everything"}))

	f := recommendFlags{scope: "everything"}
	_, err := f.apply(cmd, domain.AggregationOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidOption)
}

func TestRunRecommend_PrintsResult(t *testing.T) {
	agg := &aggregatorStub{result: domain.NewResult([]domain.Recommendation{
		{ID: "p4", Price: 2.5, Payload: "<div>p4</div>"},
	})}
	var out bytes.Buffer

	err := runRecommend(context.Background(), agg, []domain.CartItemID{"p1"}, domain.AggregationOptions{Limit: 1}, &out)
	require.NoError(t, err)

	var got domain.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.False(t, got.IsEmpty)
	assert.Equal(t, []string{"p4"}, got.IDs())
	assert.Equal(t, []domain.CartItemID{"p1"}, agg.gotIDs)
	assert.Equal(t, 1, agg.gotOpts.Limit)
}

func TestRunRecommend_Error(t *testing.T) {
	agg := &aggregatorStub{err: domain.ErrNoSource}
	var out bytes.Buffer

	err := runRecommend(context.Background(), agg, nil, domain.AggregationOptions{}, &out)
	assert.ErrorIs(t, err, domain.ErrNoSource)
	assert.Zero(t, out.Len())
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "recommend"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
