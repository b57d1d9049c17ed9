package aggregator

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/fjod/go_cart/upsell-service/internal/logger"
	"github.com/fjod/go_cart/upsell-service/internal/source"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/fjod/go_cart/upsell-service/internal/aggregator"

// Aggregator merges the recommendations of every selected cart item into one
// list. It holds no per-call state, so concurrent calls are independent.
type Aggregator struct {
	source         source.Source
	logger         *logger.Logger
	tracer         trace.Tracer
	maxConcurrency int
}

type Option func(*Aggregator)

func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxConcurrency bounds the number of in-flight fetches. Zero means one
// goroutine per key.
func WithMaxConcurrency(n int) Option {
	return func(a *Aggregator) {
		a.maxConcurrency = n
	}
}

func New(src source.Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: src,
		logger: logger.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches recommendations for the cart items selected by
// opts.Scope, then flattens, excludes cart items, deduplicates, sorts and
// truncates them. cartItemIDs holds one id per cart line, most recent first.
//
// Failed fetches contribute nothing. Incomplete options yield an empty result
// without any fetch. The only errors are domain.ErrNoSource and the context
// error when ctx is done before every fetch settled.
func (a *Aggregator) Aggregate(ctx context.Context, cartItemIDs []domain.CartItemID, opts domain.AggregationOptions) (domain.Result, error) {
	if a == nil || a.source == nil {
		return domain.EmptyResult(), domain.ErrNoSource
	}

	ctx, span := a.tracer.Start(ctx, "Aggregator.Aggregate")
	defer span.End()
	log := a.logger.WithContext(ctx)

	if err := opts.Validate(); err != nil {
		log.Debug("recommendations skipped", "reason", err.Error())
		return domain.EmptyResult(), nil
	}
	if opts.Limit == 0 {
		return domain.EmptyResult(), nil
	}

	keys := SelectKeys(cartItemIDs, opts.Scope)
	span.SetAttributes(
		attribute.Int("upsell.cart_lines", len(cartItemIDs)),
		attribute.Int("upsell.fetch_keys", len(keys)),
		attribute.String("upsell.scope", opts.Scope.String()),
	)
	if len(keys) == 0 {
		return domain.EmptyResult(), nil
	}

	perKey, err := a.fetchAll(ctx, log, keys, opts)
	if err != nil {
		return domain.EmptyResult(), err
	}

	items := Merge(perKey, idSet(cartItemIDs), opts)
	span.SetAttributes(attribute.Int("upsell.items", len(items)))
	log.Debug("recommendations aggregated", "keys", len(keys), "items", len(items))
	return domain.NewResult(items), nil
}

// fetchAll issues one fetch per key and waits for all of them. Each fetch
// writes only its own slot. Fetches run on a context detached from ctx's
// cancellation: if the caller gives up first, they finish on their own and
// their results are dropped.
func (a *Aggregator) fetchAll(ctx context.Context, log *logger.Logger, keys []domain.CartItemID, opts domain.AggregationOptions) ([][]domain.Recommendation, error) {
	results := make([][]domain.Recommendation, len(keys))
	fetchCtx := context.WithoutCancel(ctx)
	fetchLimit := opts.EffectiveFetchLimit()
	var failed atomic.Int32

	var g errgroup.Group
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, key := range keys {
			g.Go(func() error {
				recs, err := a.source.Fetch(fetchCtx, opts.SourceURL, key, fetchLimit)
				if err != nil {
					failed.Add(1)
					logFetchError(log, key, err)
					return nil
				}
				results[i] = recs
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("recommendations abandoned", "keys", len(keys), "error", ctx.Err())
		return nil, ctx.Err()
	}

	if n := failed.Load(); n > 0 {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("upsell.failed_keys", int(n)))
	}
	return results, nil
}

func logFetchError(log *logger.Logger, key domain.CartItemID, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedResponse):
		log.Warn("malformed recommendation response", "product_id", string(key), "error", err)
	case errors.Is(err, domain.ErrSourceUnavailable):
		log.Warn("recommendation source unavailable", "product_id", string(key), "error", err)
	default:
		log.Warn("recommendation fetch failed", "product_id", string(key), "error", err)
	}
}
