package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	apppayment "github.com/keyvend/keyvend/internal/application/payment"
	appstock "github.com/keyvend/keyvend/internal/application/stock"
	"github.com/keyvend/keyvend/internal/domain/command"
	"github.com/keyvend/keyvend/internal/domain/payment"
	"github.com/keyvend/keyvend/internal/domain/trade"
)

const (
	msgInvalidQuantity = "Please specify how many keys you want."
	msgInsufficient    = "Sorry, you're asking for more keys than I have!"
	msgAdminCredit     = "Ah, I see you are an admin! Here, have some keys on me."
	msgProviderError   = "An error occurred and my creator has been notified. Please try again."
	msgUnknown         = "I'm sorry, that's not a valid command."
	msgGreeting        = "Welcome! Type help to begin!"
	msgHelp            = "Welcome to Keyvend! Type 'buy x', where x is the number of keys you want, to start the buying process. " +
		"You can also type 'inventory' to see how many keys I have, and 'price' will tell you the current key price."
)

// Service maps validated chat commands to ledger, stock and payment
// operations and replies to the issuer over the messenger.
type Service struct {
	ledger    *appledger.Service
	stock     *appstock.Service
	payment   *apppayment.Service
	messenger trade.Messenger
	admins    map[string]struct{}

	priceMu  sync.RWMutex
	price    decimal.Decimal
	currency string

	logger zerolog.Logger
}

// NewService creates a command dispatcher.
func NewService(
	ledgerSvc *appledger.Service,
	stockSvc *appstock.Service,
	paymentSvc *apppayment.Service,
	messenger trade.Messenger,
	admins []string,
	unitPrice decimal.Decimal,
	currency string,
	logger zerolog.Logger,
) *Service {
	adminSet := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		adminSet[a] = struct{}{}
	}
	return &Service{
		ledger:    ledgerSvc,
		stock:     stockSvc,
		payment:   paymentSvc,
		messenger: messenger,
		admins:    adminSet,
		price:     unitPrice,
		currency:  currency,
		logger:    logger.With().Str("service", "dispatcher").Logger(),
	}
}

// HandleMessage parses and dispatches one inbound chat message. Blank
// messages (typing notifications) are ignored.
func (s *Service) HandleMessage(ctx context.Context, source, text string) {
	if text == "" {
		return
	}
	s.logger.Info().Str("from", source).Str("text", text).Msg("message received")

	cmd, err := command.Parse(text)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrInvalidQuantity):
			s.reply(ctx, source, msgInvalidQuantity)
		default:
			s.reply(ctx, source, msgUnknown)
		}
		return
	}

	switch c := cmd.(type) {
	case command.Ping:
		s.reply(ctx, source, "pong")
	case command.Help:
		s.reply(ctx, source, msgHelp)
	case command.Inventory:
		s.handleInventory(ctx, source)
	case command.Price:
		s.handlePrice(ctx, source, c)
	case command.Buy:
		s.handleBuy(ctx, source, c.N)
	}
}

// HandleFriendRequest accepts an inbound friend request and greets the
// new peer.
func (s *Service) HandleFriendRequest(ctx context.Context, peer string) {
	s.logger.Info().Str("peer", peer).Msg("friend request accepted")
	s.reply(ctx, peer, msgGreeting)
}

func (s *Service) handleInventory(ctx context.Context, source string) {
	available, err := s.stock.Refresh(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("inventory check failed")
		s.reply(ctx, source, msgProviderError)
		return
	}
	if available < 0 {
		available = 0
	}
	s.reply(ctx, source, fmt.Sprintf("Currently there are %d keys in my inventory.", available))
}

func (s *Service) handlePrice(ctx context.Context, source string, c command.Price) {
	if _, admin := s.admins[source]; admin && c.Value != nil && *c.Value >= 0 {
		s.priceMu.Lock()
		s.price = decimal.NewFromInt(*c.Value)
		s.priceMu.Unlock()
		s.logger.Info().Str("admin", source).Int64("price", *c.Value).Msg("unit price updated")
	}
	s.reply(ctx, source, fmt.Sprintf("The current key price is $%s", s.UnitPrice().Amount.String()))
}

func (s *Service) handleBuy(ctx context.Context, source string, n int64) {
	available, err := s.stock.LiveAvailable(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("buyer", source).Msg("admission check failed")
		s.reply(ctx, source, msgProviderError)
		return
	}
	if n > available {
		s.reply(ctx, source, msgInsufficient)
		return
	}

	if _, admin := s.admins[source]; admin {
		if _, err := s.ledger.Credit(ctx, source, n); err != nil {
			s.logger.Error().Err(err).Str("admin", source).Msg("admin credit failed")
			s.reply(ctx, source, msgProviderError)
			return
		}
		s.reply(ctx, source, msgAdminCredit)
		return
	}

	ref, err := s.payment.CreateCheckout(ctx, source, n, s.UnitPrice())
	if err != nil {
		s.reply(ctx, source, msgProviderError)
		return
	}
	s.reply(ctx, source, "The payment processor is ready to accept your payment, click here: "+ref)
}

// UnitPrice returns the current unit price.
func (s *Service) UnitPrice() payment.Price {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	return payment.Price{Amount: s.price, Currency: s.currency}
}

func (s *Service) reply(ctx context.Context, identity, text string) {
	if err := s.messenger.Send(ctx, identity, text); err != nil {
		s.logger.Warn().Err(err).Str("to", identity).Msg("send failed")
	}
}
