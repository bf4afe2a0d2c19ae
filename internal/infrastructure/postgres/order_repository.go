package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyvend/keyvend/internal/domain/payment"
)

// OrderRepository implements payment.OrderRepository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *payment.CheckoutOrder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO checkout_orders
		(order_id, buyer, quantity, total_amount, currency, checkout_ref, status, created_at, expires_at, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, o.OrderID, o.Buyer, o.Quantity, o.Total.Amount, o.Total.Currency, o.CheckoutRef, o.Status, o.CreatedAt, o.ExpiresAt, o.PaidAt)
	if err != nil {
		return fmt.Errorf("insert checkout order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.CheckoutOrder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, order_id, buyer, quantity, total_amount, currency, checkout_ref, status, created_at, expires_at, paid_at
		FROM checkout_orders WHERE order_id=$1
	`, orderID)
	o := &payment.CheckoutOrder{}
	err := row.Scan(&o.ID, &o.OrderID, &o.Buyer, &o.Quantity, &o.Total.Amount, &o.Total.Currency,
		&o.CheckoutRef, &o.Status, &o.CreatedAt, &o.ExpiresAt, &o.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payment.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE checkout_orders SET status=$1, paid_at=now()
		WHERE order_id=$2 AND status <> $1
	`, payment.OrderPaid, orderID)
	if err != nil {
		return fmt.Errorf("mark checkout order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) ExpirePending(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE checkout_orders SET status=$1
		WHERE status=$2 AND expires_at < now()
	`, payment.OrderExpired, payment.OrderPending)
	if err != nil {
		return 0, fmt.Errorf("expire checkout orders: %w", err)
	}
	return tag.RowsAffected(), nil
}
