package aggregator

import "github.com/fjod/go_cart/upsell-service/internal/domain"

// SelectKeys picks the cart items that seed the fetch fan-out. cartItemIDs
// holds one id per cart line, most recently added first. The result never
// repeats an id.
func SelectKeys(cartItemIDs []domain.CartItemID, scope domain.Scope) []domain.CartItemID {
	if len(cartItemIDs) == 0 {
		return nil
	}
	switch scope {
	case domain.ScopeMostRecentItemOnly:
		return []domain.CartItemID{cartItemIDs[0]}
	case domain.ScopeAllCartItems:
		return distinct(cartItemIDs)
	default:
		return nil
	}
}

func distinct(ids []domain.CartItemID) []domain.CartItemID {
	seen := make(map[domain.CartItemID]struct{}, len(ids))
	out := make([]domain.CartItemID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func idSet(ids []domain.CartItemID) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[string(id)] = struct{}{}
	}
	return set
}
