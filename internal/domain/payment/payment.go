package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnconfirmedPayment = errors.New("payment not yet confirmed")
	ErrDuplicateOrder     = errors.New("payment order already applied")
	ErrInvalidMetadata    = errors.New("invalid order metadata")
	ErrOrderNotFound      = errors.New("checkout order not found")
)

// Notice is an inbound payment-provider notification. It is treated as an
// immutable fact once confirmations meet the threshold; the provider may
// redeliver it any number of times.
type Notice struct {
	ExternalOrderID string          `json:"externalOrderId"`
	Confirmations   int             `json:"confirmations"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	CustomData      json.RawMessage `json:"customData"`
}

// Confirmed reports whether the notice meets the confirmation threshold
// and carries a transaction hash.
func (n Notice) Confirmed(threshold int) bool {
	return n.TransactionHash != "" && n.Confirmations >= threshold
}

// OrderMetadata is the opaque custom data attached to a checkout order at
// creation and echoed back by the provider in the notice.
type OrderMetadata struct {
	User    string     `json:"user"`
	Amount  int64      `json:"amount"`
	OrderID *uuid.UUID `json:"orderId,omitempty"`
}

// Validate checks the metadata fields required to credit the ledger.
func (m OrderMetadata) Validate() error {
	if m.User == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidMetadata)
	}
	if m.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidMetadata)
	}
	return nil
}

// DecodeMetadata parses the custom data blob from a notice.
func DecodeMetadata(raw json.RawMessage) (OrderMetadata, error) {
	var m OrderMetadata
	if len(raw) == 0 {
		return m, fmt.Errorf("%w: empty custom data", ErrInvalidMetadata)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return m, m.Validate()
}

// EncodeMetadata serializes metadata for attachment to a checkout order.
func EncodeMetadata(m OrderMetadata) (json.RawMessage, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Price is a monetary amount in a single currency.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (p Price) String() string {
	return p.Amount.StringFixed(2) + " " + p.Currency
}

// OrderStatus tracks a locally recorded checkout order.
type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
	OrderExpired OrderStatus = "EXPIRED"
)

// CheckoutOrder is a created-but-not-yet-paid payment order recorded for
// bookkeeping. Unpaid orders hold no stock; reservation happens only when
// the payment is confirmed.
type CheckoutOrder struct {
	ID          int64       `json:"id"`
	OrderID     uuid.UUID   `json:"orderId"`
	Buyer       string      `json:"buyer"`
	Quantity    int64       `json:"quantity"`
	Total       Price       `json:"total"`
	CheckoutRef string      `json:"checkoutRef"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	PaidAt      *time.Time  `json:"paidAt,omitempty"`
}

// NewCheckoutOrder records a freshly created provider order with a TTL.
func NewCheckoutOrder(buyer string, quantity int64, total Price, checkoutRef string, ttl time.Duration) *CheckoutOrder {
	now := time.Now().UTC()
	return &CheckoutOrder{
		OrderID:     uuid.New(),
		Buyer:       buyer,
		Quantity:    quantity,
		Total:       total,
		CheckoutRef: checkoutRef,
		Status:      OrderPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}
