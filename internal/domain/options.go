package domain

import (
	"fmt"
	"strings"
)

const DefaultFetchLimit = 10

type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

func (s SortOrder) String() string {
	switch s {
	case SortAscending:
		return "ascending"
	case SortDescending:
		return "descending"
	default:
		return fmt.Sprintf("SortOrder(%d)", int(s))
	}
}

// ParseSortOrder accepts the storefront setting values (lowest_price,
// highest_price) as well as the plain names. An empty value means ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending", "lowest_price":
		return SortAscending, nil
	case "desc", "descending", "highest_price":
		return SortDescending, nil
	default:
		return SortAscending, fmt.Errorf("%w: unknown sort order %q", ErrInvalidOption, s)
	}
}

type Scope int

const (
	ScopeUnset Scope = iota
	ScopeAllCartItems
	ScopeMostRecentItemOnly
)

func (s Scope) String() string {
	switch s {
	case ScopeUnset:
		return "unset"
	case ScopeAllCartItems:
		return "all_cart_items"
	case ScopeMostRecentItemOnly:
		return "most_recent_item_only"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "all_cart_items":
		return ScopeAllCartItems, nil
	case "most_recent", "most_recent_item_only", "last_added":
		return ScopeMostRecentItemOnly, nil
	case "":
		return ScopeUnset, nil
	default:
		return ScopeUnset, fmt.Errorf("%w: unknown scope %q", ErrInvalidOption, s)
	}
}

// AggregationOptions is resolved once per aggregation and passed explicitly
// through every stage.
type AggregationOptions struct {
	SourceURL string
	SortOrder SortOrder
	Scope     Scope
	// Limit caps the final list. Zero shows nothing.
	Limit int
	// FetchLimit is the per-key cap sent to the source. It is independent of
	// Limit so that filtering still leaves enough candidates.
	FetchLimit int
}

func (o AggregationOptions) Validate() error {
	if strings.TrimSpace(o.SourceURL) == "" {
		return fmt.Errorf("%w: source url is empty", ErrMissingConfiguration)
	}
	if o.Scope != ScopeAllCartItems && o.Scope != ScopeMostRecentItemOnly {
		return fmt.Errorf("%w: scope is not set", ErrMissingConfiguration)
	}
	if o.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrMissingConfiguration)
	}
	return nil
}

func (o AggregationOptions) EffectiveFetchLimit() int {
	if o.FetchLimit <= 0 {
		return DefaultFetchLimit
	}
	return o.FetchLimit
}
