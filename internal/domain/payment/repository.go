package payment

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . OrderRepository,Provider

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// OrderRepository persists locally recorded checkout orders.
type OrderRepository interface {
	Create(ctx context.Context, order *CheckoutOrder) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*CheckoutOrder, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	ExpirePending(ctx context.Context) (int64, error)
}

// Provider is the external payment-order creation capability. CreateOrder
// returns an opaque checkout reference the buyer follows to pay.
type Provider interface {
	CreateOrder(ctx context.Context, displayName string, price Price, customData json.RawMessage, description string) (string, error)
}
