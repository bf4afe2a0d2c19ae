package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/keyvend/keyvend/internal/domain/ledger"
)

// Service is the reservation ledger. Every mutation is a single atomic
// counter increment against the store; there is no read-modify-write
// across a suspension point. All ledger-mutating paths (admin buys,
// confirmed payments, trade settlement) funnel through this service.
type Service struct {
	store  ledger.Store
	logger zerolog.Logger
}

// NewService creates a ledger service.
func NewService(store ledger.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("service", "ledger").Logger(),
	}
}

// Credit increments the buyer's pending key balance and the global
// reserved total by amount. Returns the buyer's new balance.
func (s *Service) Credit(ctx context.Context, buyer string, amount int64) (int64, error) {
	if err := validate(buyer, amount); err != nil {
		return 0, err
	}
	balance, err := s.store.IncrementBy(ctx, ledger.AccountKey(buyer), amount)
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	if _, err := s.store.IncrementBy(ctx, ledger.ReservedKey, amount); err != nil {
		// Roll the account half back so a partial credit is never observable.
		if _, cerr := s.store.IncrementBy(ctx, ledger.AccountKey(buyer), -amount); cerr != nil {
			s.logger.Error().Err(cerr).Str("buyer", buyer).Int64("amount", amount).
				Msg("credit compensation failed, counters have drifted")
		}
		return 0, fmt.Errorf("credit reserved total: %w", err)
	}
	s.logger.Info().Str("buyer", buyer).Int64("amount", amount).Int64("balance", balance).Msg("ledger credited")
	return balance, nil
}

// Debit settles a delivery: it decrements both the buyer's pending key
// balance and the global reserved total by amount, keeping the reserved
// total equal to the sum of all pending balances.
func (s *Service) Debit(ctx context.Context, buyer string, amount int64) error {
	if err := validate(buyer, amount); err != nil {
		return err
	}
	if _, err := s.store.IncrementBy(ctx, ledger.AccountKey(buyer), -amount); err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if _, err := s.store.IncrementBy(ctx, ledger.ReservedKey, -amount); err != nil {
		if _, cerr := s.store.IncrementBy(ctx, ledger.AccountKey(buyer), amount); cerr != nil {
			s.logger.Error().Err(cerr).Str("buyer", buyer).Int64("amount", amount).
				Msg("debit compensation failed, counters have drifted")
		}
		return fmt.Errorf("debit reserved total: %w", err)
	}
	s.logger.Info().Str("buyer", buyer).Int64("amount", amount).Msg("ledger debited")
	return nil
}

// Balance returns the buyer's current pending key balance.
func (s *Service) Balance(ctx context.Context, buyer string) (int64, error) {
	if buyer == "" {
		return 0, ledger.ErrEmptyIdentity
	}
	return s.store.GetInt(ctx, ledger.AccountKey(buyer))
}

// RecordSale bumps the cumulative sold total. Sold never decreases.
func (s *Service) RecordSale(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if _, err := s.store.IncrementBy(ctx, ledger.SoldKey, amount); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	return nil
}

// Reserved returns the global reserved total.
func (s *Service) Reserved(ctx context.Context) (int64, error) {
	return s.store.GetInt(ctx, ledger.ReservedKey)
}

// Totals returns the global reserved and sold counters.
func (s *Service) Totals(ctx context.Context) (ledger.Totals, error) {
	reserved, err := s.store.GetInt(ctx, ledger.ReservedKey)
	if err != nil {
		return ledger.Totals{}, err
	}
	sold, err := s.store.GetInt(ctx, ledger.SoldKey)
	if err != nil {
		return ledger.Totals{}, err
	}
	return ledger.Totals{Reserved: reserved, Sold: sold}, nil
}

// MarkApplied flips the applied-order guard for an external order id.
// It returns true exactly once per order id; redeliveries see false.
func (s *Service) MarkApplied(ctx context.Context, externalOrderID string) (bool, error) {
	n, err := s.store.IncrementBy(ctx, ledger.AppliedKey(externalOrderID), 1)
	if err != nil {
		return false, fmt.Errorf("mark applied: %w", err)
	}
	return n == 1, nil
}

// UnmarkApplied releases the applied-order guard after a failed credit so
// the provider's redelivery can retry the application.
func (s *Service) UnmarkApplied(ctx context.Context, externalOrderID string) error {
	_, err := s.store.IncrementBy(ctx, ledger.AppliedKey(externalOrderID), -1)
	return err
}

func validate(buyer string, amount int64) error {
	if buyer == "" {
		return ledger.ErrEmptyIdentity
	}
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	return nil
}
