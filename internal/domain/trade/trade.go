package trade

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a trade session.
type State string

const (
	StateIdle                 State = "IDLE"
	StateOpen                 State = "OPEN"
	StateInventoryLoaded      State = "INVENTORY_LOADED"
	StateItemsStaged          State = "ITEMS_STAGED"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateCompleted            State = "COMPLETED"
	StateCancelled            State = "CANCELLED"
	StateFailed               State = "FAILED"
)

// Outcome is the terminal result reported by the trading network when a
// session ends.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeCancel   Outcome = "cancel"
	OutcomeError    Outcome = "error"
)

var (
	ErrInvalidTransition  = errors.New("invalid session state transition")
	ErrSessionNotFound    = errors.New("no active session for peer")
	ErrStagingExceedsOwed = errors.New("staged items exceed owed balance")
)

// Item is a single inventory entry held by the agent on the trading network.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InventorySnapshot is an ordered view of the agent's live inventory.
type InventorySnapshot struct {
	Items     []Item
	FetchedAt time.Time
}

// Matching returns the items whose name equals the sellable item name,
// preserving inventory order.
func (s InventorySnapshot) Matching(name string) []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Name == name {
			out = append(out, it)
		}
	}
	return out
}

// KeyCount counts items matching the sellable item name.
func (s InventorySnapshot) KeyCount(name string) int {
	return len(s.Matching(name))
}

// Session tracks one peer-to-peer exchange lifecycle. A session never
// mutates the ledger itself; settlement happens in the application layer
// after a terminal outcome.
type Session struct {
	Peer      string
	State     State
	Staged    []Item
	TraceID   string
	StartedAt time.Time
}

// NewSession allocates a fresh session context for a peer.
func NewSession(peer string) *Session {
	return &Session{
		Peer:      peer,
		State:     StateIdle,
		TraceID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// CanTransitionTo checks whether a transition to the target state is valid.
func (s *Session) CanTransitionTo(target State) bool {
	transitions := map[State][]State{
		StateIdle:                 {StateOpen},
		StateOpen:                 {StateInventoryLoaded, StateCancelled, StateFailed},
		StateInventoryLoaded:      {StateItemsStaged, StateCancelled, StateFailed},
		StateItemsStaged:          {StateAwaitingConfirmation, StateCancelled, StateFailed},
		StateAwaitingConfirmation: {StateAwaitingConfirmation, StateCompleted, StateCancelled, StateFailed},
		StateCompleted:            {},
		StateCancelled:            {},
		StateFailed:               {},
	}
	allowed, ok := transitions[s.State]
	if !ok {
		return false
	}
	for _, st := range allowed {
		if st == target {
			return true
		}
	}
	return false
}

func (s *Session) transition(target State) error {
	if !s.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	s.State = target
	return nil
}

// MarkOpen records the session as opened with the peer.
func (s *Session) MarkOpen() error {
	return s.transition(StateOpen)
}

// MarkInventoryLoaded records a successful inventory fetch.
func (s *Session) MarkInventoryLoaded() error {
	return s.transition(StateInventoryLoaded)
}

// MarkStaged records the items placed into the outgoing offer. The staged
// count must not exceed the peer's owed balance at staging time.
func (s *Session) MarkStaged(items []Item, owed int64) error {
	if int64(len(items)) > owed {
		return ErrStagingExceedsOwed
	}
	if err := s.transition(StateItemsStaged); err != nil {
		return err
	}
	s.Staged = items
	return nil
}

// MarkAwaitingConfirmation records readiness. Re-entry while already
// awaiting confirmation is an idempotent re-affirmation and keeps the
// staged items untouched.
func (s *Session) MarkAwaitingConfirmation() error {
	return s.transition(StateAwaitingConfirmation)
}

// MarkCompleted records a successful trade outcome.
func (s *Session) MarkCompleted() error {
	return s.transition(StateCompleted)
}

// MarkCancelled records a peer- or provider-initiated cancellation.
func (s *Session) MarkCancelled() error {
	return s.transition(StateCancelled)
}

// MarkFailed records a protocol error. The owed balance is preserved for a
// future session.
func (s *Session) MarkFailed() error {
	return s.transition(StateFailed)
}

// IsTerminal returns true once the session reached a terminal state.
func (s *Session) IsTerminal() bool {
	return s.State == StateCompleted || s.State == StateCancelled || s.State == StateFailed
}

// StagedCount returns the number of items in the outgoing offer.
func (s *Session) StagedCount() int64 {
	return int64(len(s.Staged))
}
