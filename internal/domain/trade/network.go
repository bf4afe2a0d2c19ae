package trade

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_network.go -package=mocks . Trader,Messenger,Presence

import "context"

// Trader is the peer trading capability of the trading network. One trade
// window is open at a time; all calls address the window of the peer the
// session was opened with.
type Trader interface {
	OpenSession(ctx context.Context, peer string) error
	LoadInventory(ctx context.Context) (InventorySnapshot, error)
	StageItems(ctx context.Context, items []Item) error
	SignalReady(ctx context.Context) error
	RequestConfirmation(ctx context.Context) error
	AcceptProposal(ctx context.Context, tradeRef string) error
	RejectProposal(ctx context.Context, tradeRef string) error
}

// Messenger sends fire-and-forget chat messages to peers.
type Messenger interface {
	Send(ctx context.Context, identity, text string) error
}

// AvailabilityState is the advertised presence state.
type AvailabilityState string

const (
	AvailabilityTrading AvailabilityState = "looking_to_trade"
	AvailabilityAway    AvailabilityState = "away"
	AvailabilityBusy    AvailabilityState = "busy"
)

// Presence advertises the agent's display name and availability.
type Presence interface {
	SetDisplayName(ctx context.Context, name string) error
	SetAvailability(ctx context.Context, state AvailabilityState) error
}

// EventType tags an inbound trading-network lifecycle event.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventTradeProposed  EventType = "trade_proposed"
	EventPeerReady      EventType = "peer_ready"
	EventSessionEnded   EventType = "session_ended"
	EventFriendRequest  EventType = "friend_request"
	EventMessage        EventType = "message"
)

// Event is an inbound trading-network event. Fields beyond Type and Peer
// are populated per event type: TradeRef for proposals, Outcome for ended
// sessions, Text for chat messages.
type Event struct {
	Type     EventType
	Peer     string
	TradeRef string
	Outcome  Outcome
	Text     string
}
