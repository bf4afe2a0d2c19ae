package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	apppayment "github.com/keyvend/keyvend/internal/application/payment"
	appstock "github.com/keyvend/keyvend/internal/application/stock"
	"github.com/keyvend/keyvend/internal/domain/payment"
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

// MockMessenger is a mock implementation of trade.Messenger
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, identity, text string) error {
	args := m.Called(ctx, identity, text)
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

// MockProvider is a mock implementation of payment.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateOrder(ctx context.Context, displayName string, price payment.Price, customData json.RawMessage, description string) (string, error) {
	args := m.Called(ctx, displayName, price, customData, description)
	return args.String(0), args.Error(1)
}

type fixture struct {
	svc       *Service
	trader    *MockTrader
	messenger *MockMessenger
	presence  *MockPresence
	provider  *MockProvider
	ledger    *appledger.Service
}

func newFixture(admins ...string) *fixture {
	trader := &MockTrader{}
	messenger := &MockMessenger{}
	presence := &MockPresence{}
	provider := &MockProvider{}
	ledgerSvc := appledger.NewService(memstore.New(), zerolog.Nop())
	stockSvc := appstock.NewService(trader, presence, ledgerSvc, "Key", "Bot", zerolog.Nop())
	paymentSvc := apppayment.NewService(ledgerSvc, memstore.NewOrderRepository(), provider, messenger, 6, time.Hour, zerolog.Nop())
	return &fixture{
		svc:       NewService(ledgerSvc, stockSvc, paymentSvc, messenger, admins, decimal.NewFromInt(2), "USD", zerolog.Nop()),
		trader:    trader,
		messenger: messenger,
		presence:  presence,
		provider:  provider,
		ledger:    ledgerSvc,
	}
}

func snapshotOfKeys(n int) trade.InventorySnapshot {
	items := make([]trade.Item, n)
	for i := range items {
		items[i] = trade.Item{ID: string(rune('a' + i)), Name: "Key"}
	}
	return trade.InventorySnapshot{Items: items}
}

func TestBuyCreatesCheckoutOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.trader.On("LoadInventory", ctx).Return(snapshotOfKeys(10), nil)
	f.provider.On("CreateOrder", ctx, "3 Keys",
		payment.Price{Amount: decimal.NewFromInt(6), Currency: "USD"},
		mock.MatchedBy(func(raw json.RawMessage) bool {
			meta, err := payment.DecodeMetadata(raw)
			return err == nil && meta.User == "B" && meta.Amount == 3
		}), "For user B").Return("https://pay.example/checkouts/c0ffee", nil)
	f.messenger.On("Send", ctx, "B", "The payment processor is ready to accept your payment, click here: https://pay.example/checkouts/c0ffee").Return(nil)

	f.svc.HandleMessage(ctx, "B", "buy 3")

	// No ledger mutation until the payment is confirmed.
	totals, err := f.ledger.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.Reserved)
	assert.Zero(t, totals.Sold)
	f.provider.AssertExpectations(t)
	f.messenger.AssertExpectations(t)
}

func TestBuyRejectedWhenExceedingAvailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.trader.On("LoadInventory", ctx).Return(snapshotOfKeys(2), nil)
	f.messenger.On("Send", ctx, "B", msgInsufficient).Return(nil)

	f.svc.HandleMessage(ctx, "B", "buy 3")

	f.messenger.AssertExpectations(t)
	f.provider.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyAdmissionAccountsForReservations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, "other", 8)
	require.NoError(t, err)
	f.trader.On("LoadInventory", ctx).Return(snapshotOfKeys(10), nil)
	f.messenger.On("Send", ctx, "B", msgInsufficient).Return(nil)

	// 10 keys minus 8 reserved leaves 2 available.
	f.svc.HandleMessage(ctx, "B", "buy 3")
	f.messenger.AssertExpectations(t)
}

func TestBuyZeroAndNegativeAlwaysRejected(t *testing.T) {
	for _, issuer := range []string{"B", "Admin"} {
		f := newFixture("Admin")
		ctx := context.Background()
		f.messenger.On("Send", ctx, issuer, msgInvalidQuantity).Return(nil).Times(2)

		f.svc.HandleMessage(ctx, issuer, "buy 0")
		f.svc.HandleMessage(ctx, issuer, "buy -1")

		totals, err := f.ledger.Totals(ctx)
		require.NoError(t, err)
		assert.Zero(t, totals.Reserved, "issuer %s", issuer)
		f.messenger.AssertExpectations(t)
	}
}

func TestAdminBuyCreditsImmediately(t *testing.T) {
	f := newFixture("Admin")
	ctx := context.Background()

	f.trader.On("LoadInventory", ctx).Return(snapshotOfKeys(10), nil)
	f.messenger.On("Send", ctx, "Admin", msgAdminCredit).Return(nil)

	f.svc.HandleMessage(ctx, "Admin", "buy 5")

	balance, err := f.ledger.Balance(ctx, "Admin")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	// Available now reflects the fresh reservation: 10 - 5.
	available, err := f.svc.stock.LiveAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)

	f.provider.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyProviderFailureIsGeneric(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.trader.On("LoadInventory", ctx).Return(snapshotOfKeys(10), nil)
	f.provider.On("CreateOrder", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("provider down"))
	f.messenger.On("Send", ctx, "B", msgProviderError).Return(nil)

	f.svc.HandleMessage(ctx, "B", "buy 2")

	totals, err := f.ledger.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.Reserved)
	f.messenger.AssertExpectations(t)
}

func TestInventoryReportsClampedAvailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, "B", 5)
	require.NoError(t, err)
	f.trader.On("LoadInventory", ctx).Return(snapshotOfKeys(3), nil)
	f.presence.On("SetDisplayName", ctx, mock.Anything).Return(nil)
	f.presence.On("SetAvailability", ctx, mock.Anything).Return(nil)
	f.messenger.On("Send", ctx, "B", "Currently there are 0 keys in my inventory.").Return(nil)

	f.svc.HandleMessage(ctx, "B", "inventory")
	f.messenger.AssertExpectations(t)
}

func TestPriceQueryAndAdminSet(t *testing.T) {
	f := newFixture("Admin")
	ctx := context.Background()

	f.messenger.On("Send", ctx, "B", "The current key price is $2").Return(nil).Once()
	f.svc.HandleMessage(ctx, "B", "price")

	// Non-admins cannot set.
	f.messenger.On("Send", ctx, "B", "The current key price is $2").Return(nil).Once()
	f.svc.HandleMessage(ctx, "B", "price 9")

	// Admins with a numeric value do.
	f.messenger.On("Send", ctx, "Admin", "The current key price is $5").Return(nil).Once()
	f.svc.HandleMessage(ctx, "Admin", "price 5")

	// Non-numeric arguments are treated as a query.
	f.messenger.On("Send", ctx, "Admin", "The current key price is $5").Return(nil).Once()
	f.svc.HandleMessage(ctx, "Admin", "price cheap")

	f.messenger.AssertExpectations(t)
}

func TestPingHelpAndUnknown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.messenger.On("Send", ctx, "B", "pong").Return(nil).Once()
	f.svc.HandleMessage(ctx, "B", "ping")

	f.messenger.On("Send", ctx, "B", msgHelp).Return(nil).Once()
	f.svc.HandleMessage(ctx, "B", "help")

	f.messenger.On("Send", ctx, "B", msgUnknown).Return(nil).Once()
	f.svc.HandleMessage(ctx, "B", "dance")

	f.messenger.AssertExpectations(t)
}

func TestBlankMessageIgnored(t *testing.T) {
	f := newFixture()
	f.svc.HandleMessage(context.Background(), "B", "")
	f.messenger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestFriendRequestGreeting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.messenger.On("Send", ctx, "newcomer", msgGreeting).Return(nil)
	f.svc.HandleFriendRequest(ctx, "newcomer")
	f.messenger.AssertExpectations(t)
}
