package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	"github.com/keyvend/keyvend/internal/domain/trade"
	"github.com/keyvend/keyvend/internal/infrastructure/memstore"
)

// MockTrader is a mock implementation of trade.Trader
type MockTrader struct {
	mock.Mock
}

func (m *MockTrader) OpenSession(ctx context.Context, peer string) error {
	args := m.Called(ctx, peer)
	return args.Error(0)
}

func (m *MockTrader) LoadInventory(ctx context.Context) (trade.InventorySnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(trade.InventorySnapshot), args.Error(1)
}

func (m *MockTrader) StageItems(ctx context.Context, items []trade.Item) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockTrader) SignalReady(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTrader) RequestConfirmation(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTrader) AcceptProposal(ctx context.Context, tradeRef string) error {
	args := m.Called(ctx, tradeRef)
	return args.Error(0)
}

func (m *MockTrader) RejectProposal(ctx context.Context, tradeRef string) error {
	args := m.Called(ctx, tradeRef)
	return args.Error(0)
}

// MockPresence is a mock implementation of trade.Presence
type MockPresence struct {
	mock.Mock
}

func (m *MockPresence) SetDisplayName(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockPresence) SetAvailability(ctx context.Context, state trade.AvailabilityState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func snapshotOf(names ...string) trade.InventorySnapshot {
	items := make([]trade.Item, len(names))
	for i, n := range names {
		items[i] = trade.Item{ID: string(rune('a' + i)), Name: n}
	}
	return trade.InventorySnapshot{Items: items}
}

func TestAvailableSubtractsReserved(t *testing.T) {
	svc := NewService(nil, nil, nil, "Key", "Bot", zerolog.Nop())
	snap := snapshotOf("Key", "Key", "Hat", "Key")

	assert.Equal(t, int64(3), svc.Available(snap, 0))
	assert.Equal(t, int64(1), svc.Available(snap, 2))
	// Transiently negative is allowed; clamping happens at display time.
	assert.Equal(t, int64(-2), svc.Available(snap, 5))
}

func TestLiveAvailableUsesReservedTotal(t *testing.T) {
	trader := &MockTrader{}
	store := memstore.New()
	ledgerSvc := appledger.NewService(store, zerolog.Nop())
	svc := NewService(trader, nil, ledgerSvc, "Key", "Bot", zerolog.Nop())
	ctx := context.Background()

	_, err := ledgerSvc.Credit(ctx, "B", 2)
	require.NoError(t, err)
	trader.On("LoadInventory", ctx).Return(snapshotOf("Key", "Key", "Key"), nil)

	available, err := svc.LiveAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), available)
}

func TestRefreshAdvertisesInStock(t *testing.T) {
	trader := &MockTrader{}
	presence := &MockPresence{}
	ledgerSvc := appledger.NewService(memstore.New(), zerolog.Nop())
	svc := NewService(trader, presence, ledgerSvc, "Key", "Bot", zerolog.Nop())
	ctx := context.Background()

	trader.On("LoadInventory", ctx).Return(snapshotOf("Key", "Key"), nil)
	presence.On("SetDisplayName", ctx, "Bot - 2 in stock").Return(nil)
	presence.On("SetAvailability", ctx, trade.AvailabilityTrading).Return(nil)

	available, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), available)
	presence.AssertExpectations(t)
}

func TestRefreshAdvertisesOutOfStock(t *testing.T) {
	trader := &MockTrader{}
	presence := &MockPresence{}
	ledgerSvc := appledger.NewService(memstore.New(), zerolog.Nop())
	svc := NewService(trader, presence, ledgerSvc, "Key", "Bot", zerolog.Nop())
	ctx := context.Background()

	trader.On("LoadInventory", ctx).Return(snapshotOf("Hat"), nil)
	presence.On("SetDisplayName", ctx, "Bot - OUT OF STOCK").Return(nil)
	presence.On("SetAvailability", ctx, trade.AvailabilityAway).Return(nil)

	available, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)
	presence.AssertExpectations(t)
}

func TestRefreshSurvivesPresenceFailure(t *testing.T) {
	trader := &MockTrader{}
	presence := &MockPresence{}
	ledgerSvc := appledger.NewService(memstore.New(), zerolog.Nop())
	svc := NewService(trader, presence, ledgerSvc, "Key", "Bot", zerolog.Nop())
	ctx := context.Background()

	trader.On("LoadInventory", ctx).Return(snapshotOf("Key"), nil)
	presence.On("SetDisplayName", ctx, mock.Anything).Return(errors.New("network down"))

	available, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), available)
}
