package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultSectionID    = "cart-drawer"
	DefaultMaxBodyBytes = 1 << 20 // 1MB
)

type Config struct {
	SectionID    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// BreakerMaxFailures consecutive failures to get any response from the
	// source open the breaker. HTTP error statuses never count. Zero disables
	// it.
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// HTTPSource requests the rendered recommendations section of the storefront
// for one product and parses the returned markup.
type HTTPSource struct {
	client       *http.Client
	sectionID    string
	maxBodyBytes int64
	breaker      *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPSource builds a source. A nil client gets an instrumented client
// with cfg.Timeout.
func NewHTTPSource(cfg Config, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}
	s := &HTTPSource{
		client:       client,
		sectionID:    cfg.SectionID,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if s.sectionID == "" {
		s.sectionID = DefaultSectionID
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.BreakerMaxFailures > 0 {
		maxFailures := cfg.BreakerMaxFailures
		s.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "recommendation-source",
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return !isSourceDown(err)
			},
		})
	}
	return s
}

func (s *HTTPSource) Fetch(ctx context.Context, sourceURL string, key domain.CartItemID, fetchLimit int) ([]domain.Recommendation, error) {
	reqURL, err := s.requestURL(sourceURL, key, fetchLimit)
	if err != nil {
		return nil, err
	}

	body, err := s.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	recs, err := ParseRecommendations(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", key, err)
	}
	return recs, nil
}

func (s *HTTPSource) requestURL(sourceURL string, key domain.CartItemID, fetchLimit int) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid source url: %v", domain.ErrSourceUnavailable, err)
	}
	q := u.Query()
	q.Set("section_id", s.sectionID)
	q.Set("product_id", string(key))
	q.Set("limit", strconv.Itoa(fetchLimit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *HTTPSource) get(ctx context.Context, reqURL string) ([]byte, error) {
	if s.breaker == nil {
		return s.doGet(ctx, reqURL)
	}
	body, err := s.breaker.Execute(func() ([]byte, error) {
		return s.doGet(ctx, reqURL)
	})
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		// half-open: the trial request is in flight, the rest of the fan-out
		// goes through untracked
		return s.doGet(ctx, reqURL)
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	return body, err
}

// transportError is a request that got no response from the source.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// isSourceDown reports whether err means the source host could not be reached.
// Any HTTP response, even an error status, is about one product only.
func isSourceDown(err error) bool {
	var te *transportError
	return errors.As(err, &te) && !errors.Is(err, context.Canceled)
}

func (s *HTTPSource) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, &transportError{err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrSourceUnavailable, &transportError{err: err})
	}
	if int64(len(body)) > s.maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrMalformedResponse, s.maxBodyBytes)
	}
	return body, nil
}
