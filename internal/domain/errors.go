package domain

import "errors"

var (
	ErrSourceUnavailable    = errors.New("recommendation source unavailable")
	ErrMalformedResponse    = errors.New("malformed recommendation response")
	ErrMissingConfiguration = errors.New("missing aggregation configuration")
	ErrInvalidOption        = errors.New("invalid aggregation option")
	ErrNoSource             = errors.New("aggregator has no recommendation source")
)
