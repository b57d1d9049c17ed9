package cart

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	cartpb "github.com/fjod/go_cart/cart-service/pkg/proto"
	"github.com/fjod/go_cart/upsell-service/internal/domain"
)

// cart-service formats timestamps with this layout
const timeFormat string = "2006-01-02T15:04:05Z07:00"

// Reader returns the lines of a user's cart, most recently added first.
type Reader interface {
	Lines(ctx context.Context, userID int64) ([]domain.CartLine, error)
}

type GRPCReader struct {
	client cartpb.CartServiceClient
}

func NewGRPCReader(client cartpb.CartServiceClient) *GRPCReader {
	return &GRPCReader{client: client}
}

// Lines returns the gRPC error untouched so callers can map its status.
func (r *GRPCReader) Lines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	resp, err := r.client.GetCart(ctx, &cartpb.GetCartRequest{UserId: userID})
	if err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return []domain.CartLine{}, nil
	}
	return convertLines(resp.Cart.Cart), nil
}

// convertLines orders lines newest first. cart-service appends new items, so
// the reversed order breaks ties between equal or unparseable timestamps.
func convertLines(items []*cartpb.CartItem) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if item == nil {
			continue
		}
		addedAt, _ := time.Parse(timeFormat, item.AddedAt)
		lines = append(lines, domain.CartLine{
			ProductID: domain.CartItemID(strconv.FormatInt(item.ProductId, 10)),
			Quantity:  int(item.Quantity),
			AddedAt:   addedAt,
		})
	}
	slices.SortStableFunc(lines, func(a, b domain.CartLine) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	return lines
}

// ItemIDs flattens lines into the per-line id sequence the aggregator takes.
func ItemIDs(lines []domain.CartLine) []domain.CartItemID {
	ids := make([]domain.CartItemID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

// ParseUserID validates a user id the way cart-service does.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("user_id must be a positive integer, got %q", s)
	}
	return id, nil
}
