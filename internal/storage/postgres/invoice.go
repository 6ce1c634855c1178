package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cemention/internal/domain/order"
)

// ErrInvoiceNotFound is returned by Get for an unknown reference.
var ErrInvoiceNotFound = errors.New("invoice document not found")

const (
	putInvoiceSQL    = `INSERT INTO invoices (ref, order_id, document) VALUES ($1, $2, $3)`
	getInvoiceSQL    = `SELECT document FROM invoices WHERE ref = $1`
	deleteInvoiceSQL = `DELETE FROM invoices WHERE ref = $1`
)

var _ order.InvoiceStore = (*InvoiceStore)(nil)

// InvoiceStore keeps rendered invoice PDFs in a bytea column.
type InvoiceStore struct {
	pool *pgxpool.Pool
}

// NewInvoiceStore returns an InvoiceStore that uses the given pool.
func NewInvoiceStore(pool *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{pool: pool}
}

// Put stores doc under a fresh reference.
func (s *InvoiceStore) Put(ctx context.Context, orderID string, doc []byte) (string, error) {
	ref := uuid.New().String()
	if _, err := s.pool.Exec(ctx, putInvoiceSQL, ref, orderID, doc); err != nil {
		return "", fmt.Errorf("storing invoice of order %q: %w", orderID, err)
	}
	return ref, nil
}

// Get returns the document stored under ref.
func (s *InvoiceStore) Get(ctx context.Context, ref string) ([]byte, error) {
	var doc []byte
	if err := s.pool.QueryRow(ctx, getInvoiceSQL, ref).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("getting invoice %q: %w", ref, err)
	}
	return doc, nil
}

// Delete removes the document stored under ref.
func (s *InvoiceStore) Delete(ctx context.Context, ref string) error {
	if _, err := s.pool.Exec(ctx, deleteInvoiceSQL, ref); err != nil {
		return fmt.Errorf("deleting invoice %q: %w", ref, err)
	}
	return nil
}
