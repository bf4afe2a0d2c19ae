// Package simnet is a simulated trading-network adapter. It implements
// the Trader, Messenger and Presence capabilities against an in-process
// inventory so the agent can run end to end without a live network
// connection; real deployments swap in a network-backed adapter here.
package simnet

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/keyvend/keyvend/internal/domain/trade"
)

// Client simulates a trading-network connection holding a fixed inventory.
type Client struct {
	mu        sync.Mutex
	inventory []trade.Item
	staged    []trade.Item
	peer      string

	events chan trade.Event
	logger zerolog.Logger
}

// New creates a simulated client seeded with n sellable items.
func New(itemName string, n int, logger zerolog.Logger) *Client {
	items := make([]trade.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, trade.Item{ID: fmt.Sprintf("item-%d", i+1), Name: itemName})
	}
	return &Client{
		inventory: items,
		events:    make(chan trade.Event, 64),
		logger:    logger.With().Str("service", "simnet").Logger(),
	}
}

// Events exposes the inbound event stream. Tests and local tooling push
// into it through Emit.
func (c *Client) Events() <-chan trade.Event {
	return c.events
}

// Emit injects an inbound trading-network event.
func (c *Client) Emit(ev trade.Event) {
	c.events <- ev
}

// Close stops the event stream.
func (c *Client) Close() {
	close(c.events)
}

func (c *Client) OpenSession(_ context.Context, peer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peer = peer
	c.staged = nil
	c.logger.Info().Str("peer", peer).Msg("trade window opened")
	return nil
}

func (c *Client) LoadInventory(_ context.Context) (trade.InventorySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]trade.Item, len(c.inventory))
	copy(items, c.inventory)
	return trade.InventorySnapshot{Items: items}, nil
}

func (c *Client) StageItems(_ context.Context, items []trade.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = items
	c.logger.Info().Int("count", len(items)).Msg("items staged")
	return nil
}

func (c *Client) SignalReady(context.Context) error {
	c.logger.Debug().Msg("ready signaled")
	return nil
}

func (c *Client) RequestConfirmation(context.Context) error {
	c.logger.Debug().Msg("confirmation requested")
	return nil
}

func (c *Client) AcceptProposal(_ context.Context, tradeRef string) error {
	c.logger.Info().Str("trade_ref", tradeRef).Msg("proposal accepted")
	return nil
}

func (c *Client) RejectProposal(_ context.Context, tradeRef string) error {
	c.logger.Info().Str("trade_ref", tradeRef).Msg("proposal rejected")
	return nil
}

// RemoveStaged drops the staged items from the inventory, simulating a
// completed exchange.
func (c *Client) RemoveStaged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	stagedIDs := make(map[string]struct{}, len(c.staged))
	for _, it := range c.staged {
		stagedIDs[it.ID] = struct{}{}
	}
	kept := c.inventory[:0]
	for _, it := range c.inventory {
		if _, ok := stagedIDs[it.ID]; !ok {
			kept = append(kept, it)
		}
	}
	c.inventory = kept
	c.staged = nil
}

func (c *Client) Send(_ context.Context, identity, text string) error {
	c.logger.Info().Str("to", identity).Str("text", text).Msg("message sent")
	return nil
}

func (c *Client) SetDisplayName(_ context.Context, name string) error {
	c.logger.Info().Str("name", name).Msg("display name set")
	return nil
}

func (c *Client) SetAvailability(_ context.Context, state trade.AvailabilityState) error {
	c.logger.Info().Str("state", string(state)).Msg("availability set")
	return nil
}
