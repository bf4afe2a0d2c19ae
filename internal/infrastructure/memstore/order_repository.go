package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyvend/keyvend/internal/domain/payment"
)

// OrderRepository is an in-process payment.OrderRepository.
type OrderRepository struct {
	mu     sync.Mutex
	nextID int64
	orders map[uuid.UUID]*payment.CheckoutOrder
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[uuid.UUID]*payment.CheckoutOrder)}
}

func (r *OrderRepository) Create(_ context.Context, o *payment.CheckoutOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	cp := *o
	r.orders[o.OrderID] = &cp
	return nil
}

func (r *OrderRepository) GetByOrderID(_ context.Context, orderID uuid.UUID) (*payment.CheckoutOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, payment.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *OrderRepository) MarkPaid(_ context.Context, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return payment.ErrOrderNotFound
	}
	now := time.Now().UTC()
	o.Status = payment.OrderPaid
	o.PaidAt = &now
	return nil
}

func (r *OrderRepository) ExpirePending(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, o := range r.orders {
		if o.Status == payment.OrderPending && o.ExpiresAt.Before(now) {
			o.Status = payment.OrderExpired
			n++
		}
	}
	return n, nil
}
