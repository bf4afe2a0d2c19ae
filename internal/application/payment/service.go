package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	"github.com/keyvend/keyvend/internal/domain/payment"
	"github.com/keyvend/keyvend/internal/domain/trade"
)

// Service processes payment-provider notifications and creates checkout
// orders. Each external order id credits the ledger at most once, no
// matter how many times the provider redelivers the notification.
type Service struct {
	ledger    *appledger.Service
	orders    payment.OrderRepository
	provider  payment.Provider
	messenger trade.Messenger
	threshold int
	orderTTL  time.Duration
	logger    zerolog.Logger
}

// NewService creates a payment service.
func NewService(
	ledgerSvc *appledger.Service,
	orders payment.OrderRepository,
	provider payment.Provider,
	messenger trade.Messenger,
	requiredConfirmations int,
	orderTTL time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		ledger:    ledgerSvc,
		orders:    orders,
		provider:  provider,
		messenger: messenger,
		threshold: requiredConfirmations,
		orderTTL:  orderTTL,
		logger:    logger.With().Str("service", "payment").Logger(),
	}
}

// Confirm applies a payment notification to the ledger. Channel
// authorization is enforced upstream by the webhook's secret path.
// Under-confirmed notices return ErrUnconfirmedPayment with no mutation;
// the provider is expected to redeliver as confirmations accrue.
// Redelivered, already-applied notices succeed without re-mutation.
func (s *Service) Confirm(ctx context.Context, notice payment.Notice) error {
	log := s.logger.With().Str("external_order_id", notice.ExternalOrderID).Logger()

	if !notice.Confirmed(s.threshold) {
		log.Info().Int("confirmations", notice.Confirmations).Msg("payment not yet confirmed")
		return payment.ErrUnconfirmedPayment
	}

	meta, err := payment.DecodeMetadata(notice.CustomData)
	if err != nil {
		return err
	}

	first, err := s.ledger.MarkApplied(ctx, notice.ExternalOrderID)
	if err != nil {
		return err
	}
	if !first {
		log.Info().Msg("duplicate payment notification ignored")
		return nil
	}

	balance, err := s.ledger.Credit(ctx, meta.User, meta.Amount)
	if err != nil {
		// Release the guard so the provider's redelivery can retry.
		if uerr := s.ledger.UnmarkApplied(ctx, notice.ExternalOrderID); uerr != nil {
			log.Error().Err(uerr).Msg("failed to release applied-order guard")
		}
		return err
	}
	if err := s.ledger.RecordSale(ctx, meta.Amount); err != nil {
		log.Error().Err(err).Msg("sold total update failed")
	}

	s.settleCheckoutOrder(ctx, meta, log)

	log.Info().Str("buyer", meta.User).Int64("amount", meta.Amount).Int64("balance", balance).Msg("payment recorded")

	// Best effort: a failed notice never rolls back the credit.
	msg := fmt.Sprintf("Your coins have been received! I now owe you %d keys. Send a trade request when you are ready.", balance)
	if err := s.messenger.Send(ctx, meta.User, msg); err != nil {
		log.Warn().Err(err).Str("buyer", meta.User).Msg("buyer notification failed")
	}
	return nil
}

func (s *Service) settleCheckoutOrder(ctx context.Context, meta payment.OrderMetadata, log zerolog.Logger) {
	if meta.OrderID == nil {
		return
	}
	order, err := s.orders.GetByOrderID(ctx, *meta.OrderID)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", *meta.OrderID).Msg("checkout order lookup failed")
		return
	}
	if order.Status == payment.OrderExpired {
		log.Warn().Stringer("order_id", order.OrderID).Msg("confirmation arrived for an expired order; honoring it")
	}
	if err := s.orders.MarkPaid(ctx, order.OrderID); err != nil {
		log.Warn().Err(err).Stringer("order_id", order.OrderID).Msg("checkout order settle failed")
	}
}

// CreateCheckout creates an external payment order for qty keys at the
// given unit price and records it locally with a TTL. It returns the
// provider's checkout reference.
func (s *Service) CreateCheckout(ctx context.Context, buyer string, qty int64, unitPrice payment.Price) (string, error) {
	total := payment.Price{
		Amount:   unitPrice.Amount.Mul(decimal.NewFromInt(qty)),
		Currency: unitPrice.Currency,
	}
	orderID := uuid.New()
	custom, err := payment.EncodeMetadata(payment.OrderMetadata{User: buyer, Amount: qty, OrderID: &orderID})
	if err != nil {
		return "", err
	}

	displayName := fmt.Sprintf("%d Keys", qty)
	description := "For user " + buyer
	ref, err := s.provider.CreateOrder(ctx, displayName, total, custom, description)
	if err != nil {
		s.logger.Error().Err(err).Str("buyer", buyer).Int64("qty", qty).Msg("payment order creation failed")
		return "", fmt.Errorf("create payment order: %w", err)
	}

	order := payment.NewCheckoutOrder(buyer, qty, total, ref, s.orderTTL)
	order.OrderID = orderID
	if err := s.orders.Create(ctx, order); err != nil {
		// The provider order exists; losing the local record only degrades
		// bookkeeping, so the buyer still gets the checkout reference.
		s.logger.Error().Err(err).Stringer("order_id", orderID).Msg("checkout order record failed")
	}
	s.logger.Info().Str("buyer", buyer).Int64("qty", qty).Str("total", total.String()).Msg("checkout created")
	return ref, nil
}

// ExpireOrders sweeps created-but-unpaid orders past their TTL. Expiry is
// bookkeeping only: unpaid orders never held stock, and a late
// confirmation for an expired order is still honored.
func (s *Service) ExpireOrders(ctx context.Context) (int64, error) {
	n, err := s.orders.ExpirePending(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("expired", n).Msg("expired unpaid checkout orders")
	}
	return n, nil
}
