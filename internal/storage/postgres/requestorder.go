package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cemention/internal/domain/requestorder"
)

const (
	requestOrderColumns = `id, user_id, brand, quantity, delivery_location, phone, preferred_date, status, created_at`

	createRequestOrderSQL = `INSERT INTO request_orders (` + requestOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listRequestOrdersSQL       = `SELECT ` + requestOrderColumns + ` FROM request_orders ORDER BY created_at DESC`
	listRequestOrdersByUserSQL = `SELECT ` + requestOrderColumns + ` FROM request_orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	updateRequestOrderStatusSQL = `UPDATE request_orders SET status = $2 WHERE id = $1`
)

var _ requestorder.Repository = (*RequestOrderRepository)(nil)

// RequestOrderRepository implements requestorder.Repository backed by
// PostgreSQL.
type RequestOrderRepository struct {
	pool *pgxpool.Pool
}

// NewRequestOrderRepository returns a RequestOrderRepository that uses the
// given pool.
func NewRequestOrderRepository(pool *pgxpool.Pool) *RequestOrderRepository {
	return &RequestOrderRepository{pool: pool}
}

func (r *RequestOrderRepository) Create(ctx context.Context, ro *requestorder.RequestOrder) error {
	_, err := r.pool.Exec(ctx, createRequestOrderSQL,
		ro.ID, ro.UserID, ro.Brand, ro.Quantity, ro.DeliveryLocation, ro.Phone,
		ro.PreferredDate, string(ro.Status), ro.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating request order %q: %w", ro.ID, err)
	}
	return nil
}

func (r *RequestOrderRepository) List(ctx context.Context) ([]requestorder.RequestOrder, error) {
	rows, err := r.pool.Query(ctx, listRequestOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing request orders: %w", err)
	}
	return pgx.CollectRows(rows, scanRequestOrder)
}

func (r *RequestOrderRepository) ListByUser(ctx context.Context, userID string) ([]requestorder.RequestOrder, error) {
	rows, err := r.pool.Query(ctx, listRequestOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing request orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanRequestOrder)
}

func (r *RequestOrderRepository) UpdateStatus(ctx context.Context, id string, status requestorder.Status) error {
	tag, err := r.pool.Exec(ctx, updateRequestOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating request order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return requestorder.ErrNotFound
	}
	return nil
}

func scanRequestOrder(row pgx.CollectableRow) (requestorder.RequestOrder, error) {
	var (
		ro     requestorder.RequestOrder
		status string
	)
	err := row.Scan(
		&ro.ID, &ro.UserID, &ro.Brand, &ro.Quantity, &ro.DeliveryLocation, &ro.Phone,
		&ro.PreferredDate, &status, &ro.CreatedAt,
	)
	ro.Status = requestorder.Status(status)
	return ro, err
}
