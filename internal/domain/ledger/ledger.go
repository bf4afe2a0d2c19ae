package ledger

import "errors"

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyIdentity = errors.New("buyer identity is empty")
)

// Store key layout. All ledger state lives in a flat atomic counter
// namespace so that every mutation is a single increment.
const (
	ReservedKey = "reserved"
	SoldKey     = "sold"

	accountPrefix = "keys:"
	appliedPrefix = "applied:"
)

// AccountKey returns the counter key holding a buyer's pending key balance.
func AccountKey(buyer string) string {
	return accountPrefix + buyer
}

// AppliedKey returns the counter key guarding a payment order against
// double application.
func AppliedKey(externalOrderID string) string {
	return appliedPrefix + externalOrderID
}

// Totals is a snapshot of the global counters.
type Totals struct {
	Reserved int64 `json:"reserved"`
	Sold     int64 `json:"sold"`
}
