// Package command defines the closed set of chat commands the agent
// accepts and a validating parser producing tagged, typed variants.
package command

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrUnknown         = errors.New("unrecognized command")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// Command is a validated chat command. The set of implementations is
// closed: Buy, Inventory, Price, Help and Ping.
type Command interface {
	isCommand()
}

// Buy requests n keys.
type Buy struct {
	N int64
}

// Inventory asks for the current sellable stock.
type Inventory struct{}

// Price reports the unit price, or sets it when issued by a privileged
// identity with a numeric value. Value is nil for plain queries and for
// non-numeric arguments, which are treated as queries.
type Price struct {
	Value *int64
}

// Help requests the usage text.
type Help struct{}

// Ping is the liveness probe.
type Ping struct{}

func (Buy) isCommand()       {}
func (Inventory) isCommand() {}
func (Price) isCommand()     {}
func (Help) isCommand()      {}
func (Ping) isCommand()      {}

// Parse validates a raw chat message into a command. Unknown verbs return
// ErrUnknown; a buy with a missing, non-integer or non-positive quantity
// returns ErrInvalidQuantity.
func Parse(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return nil, ErrUnknown
	}
	switch fields[0] {
	case "ping":
		return Ping{}, nil
	case "help":
		return Help{}, nil
	case "inventory":
		return Inventory{}, nil
	case "price":
		var value *int64
		if len(fields) > 1 {
			if n, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				value = &n
			}
		}
		return Price{Value: value}, nil
	case "buy":
		if len(fields) < 2 {
			return nil, ErrInvalidQuantity
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || n < 1 {
			return nil, ErrInvalidQuantity
		}
		return Buy{N: n}, nil
	default:
		return nil, ErrUnknown
	}
}
