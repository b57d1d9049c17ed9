package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cartpb "github.com/fjod/go_cart/cart-service/pkg/proto"
	"github.com/fjod/go_cart/upsell-service/internal/aggregator"
	"github.com/fjod/go_cart/upsell-service/internal/cart"
	"github.com/fjod/go_cart/upsell-service/internal/config"
	h "github.com/fjod/go_cart/upsell-service/internal/http"
	"github.com/fjod/go_cart/upsell-service/internal/logger"
	"github.com/fjod/go_cart/upsell-service/internal/source"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recommendations HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	defaults, err := cfg.AggregationOptions()
	if err != nil {
		return err
	}
	if err := defaults.Validate(); err != nil {
		// still served: every aggregation comes back empty until configured
		log.Warn("recommendations are not configured", "error", err)
	}

	// Set up gRPC connection to Cart Service
	var cartReader cart.Reader
	if cfg.Cart.ServiceAddr != "" {
		cartConn, err := grpc.NewClient(
			cfg.Cart.ServiceAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)
		if err != nil {
			return err
		}
		defer cartConn.Close()
		cartReader = cart.NewGRPCReader(cartpb.NewCartServiceClient(cartConn))
		log.Info("cart service client ready", "addr", cfg.Cart.ServiceAddr)
	}

	agg := aggregator.New(
		source.NewHTTPSource(cfg.SourceConfig(), nil),
		aggregator.WithLogger(log),
		aggregator.WithMaxConcurrency(cfg.Upsell.MaxConcurrency),
	)
	handler := h.NewRecommendationHandler(agg, cartReader, defaults, cfg.HTTP.RequestTimeout, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      h.NewRouter(handler, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("upsell service starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}
