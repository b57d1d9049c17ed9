package aggregator

import (
	"cmp"
	"slices"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
)

// Flatten concatenates the per-key results in key order.
func Flatten(perKey [][]domain.Recommendation) []domain.Recommendation {
	n := 0
	for _, recs := range perKey {
		n += len(recs)
	}
	out := make([]domain.Recommendation, 0, n)
	for _, recs := range perKey {
		out = append(out, recs...)
	}
	return out
}

// ExcludeInCart drops candidates whose id is in the cart.
func ExcludeInCart(recs []domain.Recommendation, inCart map[string]struct{}) []domain.Recommendation {
	out := make([]domain.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if _, ok := inCart[rec.ID]; ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Deduplicate keeps the first occurrence of every id.
func Deduplicate(recs []domain.Recommendation) []domain.Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := make([]domain.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// SortByPrice returns a stably sorted copy; equal prices keep their order.
func SortByPrice(recs []domain.Recommendation, order domain.SortOrder) []domain.Recommendation {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b domain.Recommendation) int {
		if order == domain.SortDescending {
			return cmp.Compare(b.Price, a.Price)
		}
		return cmp.Compare(a.Price, b.Price)
	})
	return out
}

// Truncate keeps at most limit entries. A limit of zero or less keeps none.
func Truncate(recs []domain.Recommendation, limit int) []domain.Recommendation {
	if limit <= 0 || len(recs) == 0 {
		return []domain.Recommendation{}
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return slices.Clone(recs)
}

// Merge runs the whole pipeline over the fetched per-key results.
func Merge(perKey [][]domain.Recommendation, inCart map[string]struct{}, opts domain.AggregationOptions) []domain.Recommendation {
	recs := Flatten(perKey)
	recs = ExcludeInCart(recs, inCart)
	recs = Deduplicate(recs)
	recs = SortByPrice(recs, opts.SortOrder)
	return Truncate(recs, opts.Limit)
}
