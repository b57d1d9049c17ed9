package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/upsell-service/internal/cart"
	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/fjod/go_cart/upsell-service/internal/logger"
	"google.golang.org/grpc/metadata"
)

const defaultTimeout = 30 * time.Second

type Aggregator interface {
	Aggregate(ctx context.Context, cartItemIDs []domain.CartItemID, opts domain.AggregationOptions) (domain.Result, error)
}

type RecommendationHandler struct {
	responder
	aggregator Aggregator
	cartReader cart.Reader
	defaults   domain.AggregationOptions
	timeout    time.Duration
}

// NewRecommendationHandler serves aggregations with defaults as the section
// settings. cartReader may be nil when no cart service is configured.
func NewRecommendationHandler(aggregator Aggregator, cartReader cart.Reader, defaults domain.AggregationOptions, timeout time.Duration, l *logger.Logger) *RecommendationHandler {
	if l == nil {
		l = logger.Nop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RecommendationHandler{
		responder:  responder{logger: l},
		aggregator: aggregator,
		cartReader: cartReader,
		defaults:   defaults,
		timeout:    timeout,
	}
}

// Get aggregates for the product ids given as repeated product_id query
// parameters, most recently added first.
func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	opts, err := h.options(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}

	var ids []domain.CartItemID
	for _, raw := range r.URL.Query()["product_id"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, domain.CartItemID(id))
			}
		}
	}

	h.aggregate(ctx, w, r, ids, opts)
}

// GetForCart aggregates for the caller's current cart.
func (h *RecommendationHandler) GetForCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.cartReader == nil {
		h.respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart service is not configured")
		return
	}

	rawUserID := getUserID(r.Context())
	if rawUserID == "" {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	userID, err := cart.ParseUserID(rawUserID)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	opts, err := h.options(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}

	// Propagate metadata
	cartCtx := metadata.AppendToOutgoingContext(ctx, "user-id", fmt.Sprint(userID), "request-id", getRequestID(r.Context()))

	lines, err := h.cartReader.Lines(cartCtx, userID)
	if err != nil {
		h.logger.WithContext(ctx).Warn("cart lookup failed", "user_id", userID, "error", err)
		h.handleGRPCError(w, err)
		return
	}

	h.aggregate(ctx, w, r, cart.ItemIDs(lines), opts)
}

func (h *RecommendationHandler) aggregate(ctx context.Context, w http.ResponseWriter, r *http.Request, ids []domain.CartItemID, opts domain.AggregationOptions) {
	res, err := h.aggregator.Aggregate(ctx, ids, opts)
	if err != nil {
		h.logger.WithContext(ctx).Error("aggregation failed", "error", err, "request_id", getRequestID(r.Context()))
		if errors.Is(err, context.DeadlineExceeded) {
			h.respondError(w, http.StatusGatewayTimeout, "timeout", "recommendations timed out")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if r.URL.Query().Get("format") == "html" {
		h.respondHTML(w, res)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// respondHTML renders the section list items. An empty result is 204 so the
// storefront hides the section.
func (h *RecommendationHandler) respondHTML(w http.ResponseWriter, res domain.Result) {
	if res.IsEmpty {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var b strings.Builder
	for _, item := range res.Items {
		b.WriteString(`<li class="cart-drawer-upsell__item">`)
		b.WriteString(item.Payload)
		b.WriteString("</li>\n")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(b.String())); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// options applies the sort, scope and limit query overrides to the defaults.
func (h *RecommendationHandler) options(r *http.Request) (domain.AggregationOptions, error) {
	opts := h.defaults
	q := r.URL.Query()

	if v := q.Get("sort"); v != "" {
		order, err := domain.ParseSortOrder(v)
		if err != nil {
			return opts, err
		}
		opts.SortOrder = order
	}
	if v := q.Get("scope"); v != "" {
		scope, err := domain.ParseScope(v)
		if err != nil {
			return opts, err
		}
		opts.Scope = scope
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return opts, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidOption)
		}
		opts.Limit = limit
	}
	return opts, nil
}

func (h *RecommendationHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
