package ledger

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_store.go -package=mocks . Store

import "context"

// Store is the persistent atomic counter capability backing the ledger.
// IncrementBy must be atomic with respect to concurrent callers; GetInt
// returns zero for keys that were never incremented.
type Store interface {
	GetInt(ctx context.Context, key string) (int64, error)
	IncrementBy(ctx context.Context, key string, delta int64) (int64, error)
}
