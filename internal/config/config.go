package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/fjod/go_cart/upsell-service/internal/source"
	"github.com/spf13/viper"
)

// Config holds service configuration.
type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	Cart   CartConfig   `mapstructure:"cart"`
	Source SourceConfig `mapstructure:"source"`
	Upsell UpsellConfig `mapstructure:"upsell"`
	Log    LogConfig    `mapstructure:"log"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CartConfig struct {
	ServiceAddr string `mapstructure:"service_addr"`
}

type SourceConfig struct {
	URL          string        `mapstructure:"url"`
	SectionID    string        `mapstructure:"section_id"`
	FetchLimit   int           `mapstructure:"fetch_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// UpsellConfig holds the storefront section settings used as defaults for
// every aggregation.
type UpsellConfig struct {
	Sort           string `mapstructure:"sort"`
	Scope          string `mapstructure:"scope"`
	Limit          int    `mapstructure:"limit"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// Load reads configuration from an optional file and env. Env var overrides
// use prefix UPSELL_, e.g. UPSELL_SOURCE_URL.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("cart.service_addr", "localhost:50052")
	v.SetDefault("source.url", "")
	v.SetDefault("source.section_id", source.DefaultSectionID)
	v.SetDefault("source.fetch_limit", domain.DefaultFetchLimit)
	v.SetDefault("source.timeout", 5*time.Second)
	v.SetDefault("source.max_body_bytes", source.DefaultMaxBodyBytes)
	v.SetDefault("source.breaker.max_failures", 5)
	v.SetDefault("source.breaker.open_timeout", 30*time.Second)
	v.SetDefault("upsell.sort", "lowest_price")
	v.SetDefault("upsell.scope", "all_cart_items")
	v.SetDefault("upsell.limit", 4)
	v.SetDefault("upsell.max_concurrency", 0)
	v.SetDefault("log.mode", "development")

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv("UPSELL_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("upsell")
	}

	v.SetEnvPrefix("UPSELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := c.AggregationOptions(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// AggregationOptions resolves the configured section settings.
func (c Config) AggregationOptions() (domain.AggregationOptions, error) {
	order, err := domain.ParseSortOrder(c.Upsell.Sort)
	if err != nil {
		return domain.AggregationOptions{}, fmt.Errorf("upsell.sort: %w", err)
	}
	scope, err := domain.ParseScope(c.Upsell.Scope)
	if err != nil {
		return domain.AggregationOptions{}, fmt.Errorf("upsell.scope: %w", err)
	}
	return domain.AggregationOptions{
		SourceURL:  c.Source.URL,
		SortOrder:  order,
		Scope:      scope,
		Limit:      c.Upsell.Limit,
		FetchLimit: c.Source.FetchLimit,
	}, nil
}

func (c Config) SourceConfig() source.Config {
	return source.Config{
		SectionID:          c.Source.SectionID,
		Timeout:            c.Source.Timeout,
		MaxBodyBytes:       c.Source.MaxBodyBytes,
		BreakerMaxFailures: c.Source.Breaker.MaxFailures,
		BreakerOpenTimeout: c.Source.Breaker.OpenTimeout,
	}
}
