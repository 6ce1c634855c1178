package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cemention/internal/domain/cart"
	"github.com/xenking/cemention/internal/domain/pricing"
)

const (
	getCartSQL = `SELECT items, updated_at FROM carts WHERE user_id = $1`

	saveCartSQL = `INSERT INTO carts (user_id, items, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`

	clearCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores one cart row per user with the lines as JSONB.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the cart of userID, or an empty cart if none is stored.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}
	var items []byte
	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(&items, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("decoding cart of %q: %w", userID, err)
	}
	return c, nil
}

// Save upserts c.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items := c.Items
	if items == nil {
		items = []pricing.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}
	if _, err := r.pool.Exec(ctx, saveCartSQL, c.UserID, itemsJSON, c.UpdatedAt); err != nil {
		return fmt.Errorf("saving cart of %q: %w", c.UserID, err)
	}
	return nil
}

// Clear deletes the cart of userID. Clearing an empty cart succeeds.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}
