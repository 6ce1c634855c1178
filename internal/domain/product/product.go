package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultMinQuantity is the per-product minimum order in bags when none is set.
const DefaultMinQuantity = 100

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// InvalidProductError indicates a product with missing or out of range fields.
type InvalidProductError struct {
	Field  string
	Reason string
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("invalid product %s: %s", e.Field, e.Reason)
}

// Product is a cement brand and grade sold in bags.
type Product struct {
	ID          string
	Brand       string
	Grade       string
	BasePrice   decimal.Decimal
	Image       string
	MinQuantity int
	// Stock is a stored counter only; orders do not reserve or decrement it.
	Stock     int
	CreatedAt time.Time
}

// Name returns the display name, e.g. "UltraTech OPC 53".
func (p Product) Name() string {
	return strings.TrimSpace(p.Brand + " " + p.Grade)
}

// Normalize trims text fields and applies the default minimum quantity.
func (p *Product) Normalize() {
	p.Brand = strings.TrimSpace(p.Brand)
	p.Grade = strings.TrimSpace(p.Grade)
	p.Image = strings.TrimSpace(p.Image)
	if p.MinQuantity <= 0 {
		p.MinQuantity = DefaultMinQuantity
	}
}

// Validate checks the fields an admin must provide.
func (p Product) Validate() error {
	switch {
	case p.Brand == "":
		return &InvalidProductError{Field: "brand", Reason: "required"}
	case p.Grade == "":
		return &InvalidProductError{Field: "grade", Reason: "required"}
	case !p.BasePrice.IsPositive():
		return &InvalidProductError{Field: "basePrice", Reason: "must be greater than 0"}
	case p.Stock < 0:
		return &InvalidProductError{Field: "stock", Reason: "must not be negative"}
	}
	return nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
