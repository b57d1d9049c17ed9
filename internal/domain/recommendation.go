package domain

import "time"

// CartItemID identifies a product in the cart. Several lines of the same
// product share one id.
type CartItemID string

type CartLine struct {
	ProductID CartItemID `json:"product_id"`
	Quantity  int        `json:"quantity"`
	AddedAt   time.Time  `json:"added_at"`
}

// Recommendation is one candidate returned by the source. Payload is the
// markup fragment the storefront renders; it is never inspected here.
type Recommendation struct {
	ID      string  `json:"id"`
	Price   float64 `json:"price"`
	Payload string  `json:"payload"`
}

type Result struct {
	Items   []Recommendation `json:"items"`
	IsEmpty bool             `json:"is_empty"`
}

// NewResult wraps items so that Items is never nil and IsEmpty agrees with it.
func NewResult(items []Recommendation) Result {
	if items == nil {
		items = []Recommendation{}
	}
	return Result{
		Items:   items,
		IsEmpty: len(items) == 0,
	}
}

func EmptyResult() Result {
	return NewResult(nil)
}

// IDs returns the ids of the items in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.ID
	}
	return ids
}
