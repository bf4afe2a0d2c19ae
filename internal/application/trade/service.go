package trade

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	appledger "github.com/keyvend/keyvend/internal/application/ledger"
	appstock "github.com/keyvend/keyvend/internal/application/stock"
	"github.com/keyvend/keyvend/internal/domain/trade"
)

const proposalRejectedMsg = "Either your coins have not arrived yet or you did not place an order."

// Service drives one trade session state machine per connected peer.
// A second session-start for the same peer replaces the prior context and
// cancels it, so a stale workflow can never settle after replacement.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*activeSession

	trader    trade.Trader
	messenger trade.Messenger
	ledger    *appledger.Service
	stock     *appstock.Service
	admins    map[string]struct{}
	itemName  string
	logger    zerolog.Logger
}

type activeSession struct {
	*trade.Session
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a trade session service.
func NewService(
	trader trade.Trader,
	messenger trade.Messenger,
	ledgerSvc *appledger.Service,
	stockSvc *appstock.Service,
	admins []string,
	itemName string,
	logger zerolog.Logger,
) *Service {
	adminSet := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		adminSet[a] = struct{}{}
	}
	return &Service{
		sessions:  make(map[string]*activeSession),
		trader:    trader,
		messenger: messenger,
		ledger:    ledgerSvc,
		stock:     stockSvc,
		admins:    adminSet,
		itemName:  itemName,
		logger:    logger.With().Str("service", "trade").Logger(),
	}
}

// HandleSessionStarted runs the staging workflow for a freshly started
// peer session: open, load inventory, stage min(owed, matching items),
// signal readiness and request confirmation. Any failure leaves the
// ledger untouched and discards the session.
func (s *Service) HandleSessionStarted(ctx context.Context, peer string) error {
	sess := s.replaceSession(ctx, peer)
	log := s.logger.With().Str("peer", peer).Str("trace_id", sess.TraceID).Logger()
	log.Info().Msg("peer is trading")

	if err := s.runStaging(sess.ctx, sess.Session); err != nil {
		_ = sess.MarkFailed()
		s.dropSession(peer, sess)
		log.Error().Err(err).Msg("trade staging failed")
		return err
	}
	log.Info().Int64("staged", sess.StagedCount()).Msg("offer staged, awaiting confirmation")
	return nil
}

func (s *Service) runStaging(ctx context.Context, sess *trade.Session) error {
	if err := sess.MarkOpen(); err != nil {
		return err
	}
	if err := s.trader.OpenSession(ctx, sess.Peer); err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	snapshot, err := s.trader.LoadInventory(ctx)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}
	if err := sess.MarkInventoryLoaded(); err != nil {
		return err
	}

	owed, err := s.ledger.Balance(ctx, sess.Peer)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	keys := snapshot.Matching(s.itemName)
	if int64(len(keys)) > owed {
		keys = keys[:owed]
	}
	if err := s.trader.StageItems(ctx, keys); err != nil {
		return fmt.Errorf("stage items: %w", err)
	}
	if err := sess.MarkStaged(keys, owed); err != nil {
		return err
	}

	return s.affirm(ctx, sess)
}

func (s *Service) affirm(ctx context.Context, sess *trade.Session) error {
	if err := s.trader.SignalReady(ctx); err != nil {
		return fmt.Errorf("signal ready: %w", err)
	}
	if err := s.trader.RequestConfirmation(ctx); err != nil {
		return fmt.Errorf("request confirmation: %w", err)
	}
	return sess.MarkAwaitingConfirmation()
}

// HandlePeerReady re-affirms readiness while awaiting confirmation. The
// peer may toggle its ready checkbox any number of times; re-affirmation
// never re-stages items.
func (s *Service) HandlePeerReady(ctx context.Context, peer string) error {
	sess := s.lookup(peer)
	if sess == nil {
		return trade.ErrSessionNotFound
	}
	if sess.State != trade.StateAwaitingConfirmation {
		return nil
	}
	return s.affirm(sess.ctx, sess.Session)
}

// HandleSessionEnded settles a terminal trade outcome. Only a complete
// outcome debits the ledger, by exactly the staged count; cancellation
// and errors preserve the buyer's balance for a future session.
func (s *Service) HandleSessionEnded(ctx context.Context, peer string, outcome trade.Outcome) error {
	sess := s.lookup(peer)
	if sess == nil {
		return trade.ErrSessionNotFound
	}
	defer s.dropSession(peer, sess)

	log := s.logger.With().Str("peer", peer).Str("trace_id", sess.TraceID).Str("outcome", string(outcome)).Logger()
	log.Info().Msg("trade session ended")

	switch outcome {
	case trade.OutcomeComplete:
		if err := sess.MarkCompleted(); err != nil {
			return err
		}
		delivered := sess.StagedCount()
		if delivered > 0 {
			if err := s.ledger.Debit(ctx, peer, delivered); err != nil {
				log.Error().Err(err).Int64("delivered", delivered).Msg("settlement debit failed")
				return err
			}
		}
		if _, err := s.stock.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("stock refresh after completion failed")
		}
		return nil
	case trade.OutcomeCancel:
		return sess.MarkCancelled()
	case trade.OutcomeError:
		return sess.MarkFailed()
	default:
		return fmt.Errorf("unknown trade outcome %q", outcome)
	}
}

// HandleTradeProposed accepts an inbound trade proposal when the peer has
// a positive owed balance or is an admin, and rejects it otherwise.
func (s *Service) HandleTradeProposed(ctx context.Context, tradeRef, peer string) error {
	log := s.logger.With().Str("peer", peer).Logger()
	log.Info().Msg("peer requests a trade")

	balance, err := s.ledger.Balance(ctx, peer)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if _, admin := s.admins[peer]; balance > 0 || admin {
		return s.trader.AcceptProposal(ctx, tradeRef)
	}
	if err := s.trader.RejectProposal(ctx, tradeRef); err != nil {
		return err
	}
	if err := s.messenger.Send(ctx, peer, proposalRejectedMsg); err != nil {
		log.Warn().Err(err).Msg("rejection notice failed")
	}
	return nil
}

// ActiveSession returns the session for a peer, or ErrSessionNotFound.
func (s *Service) ActiveSession(peer string) (*trade.Session, error) {
	sess := s.lookup(peer)
	if sess == nil {
		return nil, trade.ErrSessionNotFound
	}
	return sess.Session, nil
}

func (s *Service) replaceSession(ctx context.Context, peer string) *activeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.sessions[peer]; ok {
		prior.cancel()
		s.logger.Warn().Str("peer", peer).Str("trace_id", prior.TraceID).Msg("replacing active session")
	}
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &activeSession{Session: trade.NewSession(peer), ctx: sessCtx, cancel: cancel}
	s.sessions[peer] = sess
	return sess
}

func (s *Service) lookup(peer string) *activeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[peer]
}

// dropSession removes the entry only if it still maps to this session, so
// a replaced session cannot evict its successor.
func (s *Service) dropSession(peer string, sess *activeSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[peer]; ok && current == sess {
		sess.cancel()
		delete(s.sessions, peer)
	}
}

// IsAdmin reports whether the identity is privileged.
func (s *Service) IsAdmin(identity string) bool {
	_, ok := s.admins[identity]
	return ok
}
