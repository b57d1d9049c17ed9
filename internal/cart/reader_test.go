package cart

import (
	"context"
	"testing"

	cartpb "github.com/fjod/go_cart/cart-service/pkg/proto"
	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CartClientMock implements cartpb.CartServiceClient
type CartClientMock struct {
	cart      *cartpb.Cart
	err       error
	gotUserID int64
}

func (m *CartClientMock) GetCart(_ context.Context, in *cartpb.GetCartRequest, _ ...grpc.CallOption) (*cartpb.CartResponse, error) {
	m.gotUserID = in.UserId
	if m.err != nil {
		return nil, m.err
	}
	return &cartpb.CartResponse{Cart: m.cart}, nil
}

func (m *CartClientMock) AddItem(context.Context, *cartpb.AddCartItemRequest, ...grpc.CallOption) (*cartpb.CartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "not used")
}

func (m *CartClientMock) UpdateQuantity(context.Context, *cartpb.UpdateQuantityRequest, ...grpc.CallOption) (*cartpb.CartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "not used")
}

func (m *CartClientMock) RemoveItem(context.Context, *cartpb.RemoveItemRequest, ...grpc.CallOption) (*cartpb.CartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "not used")
}

func (m *CartClientMock) ClearCart(context.Context, *cartpb.ClearCartRequest, ...grpc.CallOption) (*cartpb.CartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "not used")
}

func TestLines_NewestFirst(t *testing.T) {
	mock := &CartClientMock{
		cart: &cartpb.Cart{
			UserId: 7,
			Cart: []*cartpb.CartItem{
				{ProductId: 1, Quantity: 1, AddedAt: "2026-01-02T10:00:00Z"},
				{ProductId: 2, Quantity: 3, AddedAt: "2026-01-02T12:00:00Z"},
				{ProductId: 3, Quantity: 2, AddedAt: "2026-01-02T11:00:00Z"},
			},
		},
	}
	reader := NewGRPCReader(mock)

	lines, err := reader.Lines(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), mock.gotUserID)
	assert.Equal(t, []domain.CartItemID{"2", "3", "1"}, ItemIDs(lines))
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestLines_TiesFavorLaterAppends(t *testing.T) {
	mock := &CartClientMock{
		cart: &cartpb.Cart{
			Cart: []*cartpb.CartItem{
				{ProductId: 10, AddedAt: "2026-01-02T10:00:00Z"},
				{ProductId: 11, AddedAt: "2026-01-02T10:00:00Z"},
				{ProductId: 12, AddedAt: "garbage"},
			},
		},
	}

	lines, err := NewGRPCReader(mock).Lines(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartItemID{"11", "10", "12"}, ItemIDs(lines))
}

func TestLines_EmptyCart(t *testing.T) {
	mock := &CartClientMock{cart: nil}

	lines, err := NewGRPCReader(mock).Lines(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestLines_PropagatesGRPCError(t *testing.T) {
	mock := &CartClientMock{err: status.Error(codes.Unavailable, "cart service down")}

	_, err := NewGRPCReader(mock).Lines(context.Background(), 1)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unavailable, st.Code())
}

func TestParseUserID(t *testing.T) {
	id, err := ParseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := ParseUserID(bad)
		assert.Error(t, err, bad)
	}
}
