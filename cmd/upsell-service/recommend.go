package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"

	"github.com/fjod/go_cart/upsell-service/internal/aggregator"
	"github.com/fjod/go_cart/upsell-service/internal/config"
	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/fjod/go_cart/upsell-service/internal/logger"
	"github.com/fjod/go_cart/upsell-service/internal/source"
	"github.com/spf13/cobra"
)

type recommendFlags struct {
	productIDs []string
	sourceURL  string
	sort       string
	scope      string
	limit      int
}

func newRecommendCmd() *cobra.Command {
	var f recommendFlags
	cmd := &cobra.Command{
		Use:     "recommend",
		Short:   "Aggregate recommendations for the given cart items and print them as JSON",
		Example: "  upsell-service recommend --product-id 12 --product-id 7 --sort highest_price --limit 3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			opts, err := cfg.AggregationOptions()
			if err != nil {
				return err
			}
			opts, err = f.apply(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			agg := aggregator.New(
				source.NewHTTPSource(cfg.SourceConfig(), nil),
				aggregator.WithLogger(log),
				aggregator.WithMaxConcurrency(cfg.Upsell.MaxConcurrency),
			)
			return runRecommend(ctx, agg, f.cartItemIDs(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&f.productIDs, "product-id", nil, "cart item product id, most recently added first (repeatable)")
	cmd.Flags().StringVar(&f.sourceURL, "source-url", "", "recommendations endpoint (overrides config)")
	cmd.Flags().StringVar(&f.sort, "sort", "", "lowest_price or highest_price (overrides config)")
	cmd.Flags().StringVar(&f.scope, "scope", "", "all_cart_items or most_recent_item_only (overrides config)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "number of recommendations to show (overrides config)")
	return cmd
}

// apply overrides opts with the flags the user actually set.
func (f recommendFlags) apply(cmd *cobra.Command, opts domain.AggregationOptions) (domain.AggregationOptions, error) {
	flags := cmd.Flags()
	if flags.Changed("source-url") {
		opts.SourceURL = f.sourceURL
	}
	if flags.Changed("sort") {
		order, err := domain.ParseSortOrder(f.sort)
		if err != nil {
			return opts, err
		}
		opts.SortOrder = order
	}
	if flags.Changed("scope") {
		scope, err := domain.ParseScope(f.scope)
		if err != nil {
			return opts, err
		}
		opts.Scope = scope
	}
	if flags.Changed("limit") {
		opts.Limit = f.limit
	}
	return opts, nil
}

func (f recommendFlags) cartItemIDs() []domain.CartItemID {
	ids := make([]domain.CartItemID, 0, len(f.productIDs))
	for _, id := range f.productIDs {
		if id != "" {
			ids = append(ids, domain.CartItemID(id))
		}
	}
	return ids
}

type recommender interface {
	Aggregate(ctx context.Context, cartItemIDs []domain.CartItemID, opts domain.AggregationOptions) (domain.Result, error)
}

func runRecommend(ctx context.Context, agg recommender, ids []domain.CartItemID, opts domain.AggregationOptions, out io.Writer) error {
	res, err := agg.Aggregate(ctx, ids, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
