package source

import (
	"context"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
)

// Source fetches the recommendations related to one cart item. Errors wrap
// domain.ErrSourceUnavailable or domain.ErrMalformedResponse.
type Source interface {
	Fetch(ctx context.Context, sourceURL string, key domain.CartItemID, fetchLimit int) ([]domain.Recommendation, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, sourceURL string, key domain.CartItemID, fetchLimit int) ([]domain.Recommendation, error)

func (f Func) Fetch(ctx context.Context, sourceURL string, key domain.CartItemID, fetchLimit int) ([]domain.Recommendation, error) {
	return f(ctx, sourceURL, key, fetchLimit)
}
