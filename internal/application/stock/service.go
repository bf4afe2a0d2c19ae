package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	"github.com/keyvend/keyvend/internal/domain/trade"
)

const statusPushAttempts = 3

// Service derives the currently sellable quantity from live inventory and
// the ledger's reserved total, and advertises it through presence.
type Service struct {
	trader   trade.Trader
	presence trade.Presence
	ledger   *appledger.Service
	itemName string
	display  string
	logger   zerolog.Logger
}

// NewService creates a stock accountant.
func NewService(trader trade.Trader, presence trade.Presence, ledgerSvc *appledger.Service, itemName, displayName string, logger zerolog.Logger) *Service {
	return &Service{
		trader:   trader,
		presence: presence,
		ledger:   ledgerSvc,
		itemName: itemName,
		display:  displayName,
		logger:   logger.With().Str("service", "stock").Logger(),
	}
}

// Available computes keyCount - reservedTotal for a snapshot. The result
// may be negative; callers clamp for display only.
func (s *Service) Available(snapshot trade.InventorySnapshot, reserved int64) int64 {
	return int64(snapshot.KeyCount(s.itemName)) - reserved
}

// LiveAvailable fetches a fresh inventory snapshot and returns the
// admission-control quantity. This is the only quantity a requested buy
// amount may be compared against.
func (s *Service) LiveAvailable(ctx context.Context) (int64, error) {
	snapshot, err := s.trader.LoadInventory(ctx)
	if err != nil {
		return 0, fmt.Errorf("load inventory: %w", err)
	}
	reserved, err := s.ledger.Reserved(ctx)
	if err != nil {
		return 0, fmt.Errorf("read reserved total: %w", err)
	}
	return s.Available(snapshot, reserved), nil
}

// Refresh recomputes availability and pushes the advertised status to the
// presence capability. The push is retried briefly and is best effort;
// its failure does not fail the refresh.
func (s *Service) Refresh(ctx context.Context) (int64, error) {
	available, err := s.LiveAvailable(ctx)
	if err != nil {
		return 0, err
	}
	s.advertise(ctx, available)
	return available, nil
}

func (s *Service) advertise(ctx context.Context, available int64) {
	name := fmt.Sprintf("%s - %d in stock", s.display, available)
	state := trade.AvailabilityTrading
	if available < 1 {
		name = s.display + " - OUT OF STOCK"
		state = trade.AvailabilityAway
		s.logger.Warn().Msg("out of keys")
	}

	push := func() error {
		if err := s.presence.SetDisplayName(ctx, name); err != nil {
			return err
		}
		return s.presence.SetAvailability(ctx, state)
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = 2 * time.Second

	var err error
	for attempt := 0; attempt < statusPushAttempts; attempt++ {
		if err = push(); err == nil {
			return
		}
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
	s.logger.Warn().Err(err).Int64("available", available).Msg("status push failed")
}
