// Package cart keeps one shopping cart per user. A line's unit price is
// computed from the catalog when the product is first added and stays locked
// until checkout, even if the catalog price changes in between.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/user"
)

// ErrItemNotInCart is returned when removing a product the cart does not hold.
var ErrItemNotInCart = errors.New("item not in cart")

// InvalidQuantityError indicates a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Cart is a user's pending selection.
type Cart struct {
	UserID    string
	Items     []pricing.LineItem
	UpdatedAt time.Time
}

// Find returns the index of the line for productID, or -1.
func (c *Cart) Find(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Repository persists carts. Get returns an empty cart for users who never
// saved one.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, userID string) error
}

// Service implements cart operations.
type Service struct {
	carts    Repository
	products product.Repository
	pricing  *pricing.Engine
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository, engine *pricing.Engine) *Service {
	return &Service{
		carts:    carts,
		products: products,
		pricing:  engine,
		now:      time.Now,
	}
}

// Get returns the buyer's cart.
func (s *Service) Get(ctx context.Context, buyer *user.User) (*Cart, error) {
	c, err := s.carts.Get(ctx, buyer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// Add puts quantity bags of productID into the cart. A product already in
// the cart has its quantity replaced and keeps its locked price.
func (s *Service) Add(ctx context.Context, buyer *user.User, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	c, err := s.carts.Get(ctx, buyer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	if i := c.Find(productID); i >= 0 {
		c.Items[i].Quantity = quantity
	} else {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return nil, errors.Wrapf(err, "get product %s", productID)
		}
		c.Items = append(c.Items, pricing.LineItem{
			ProductID: p.ID,
			Quantity:  quantity,
			UnitPrice: s.pricing.UnitPrice(p.BasePrice, buyer.Role),
		})
	}

	c.UserID = buyer.ID
	c.UpdatedAt = s.now().UTC()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Remove drops productID from the cart.
func (s *Service) Remove(ctx context.Context, buyer *user.User, productID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, buyer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	i := c.Find(productID)
	if i < 0 {
		return nil, ErrItemNotInCart
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.UserID = buyer.ID
	c.UpdatedAt = s.now().UTC()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the buyer's cart.
func (s *Service) Clear(ctx context.Context, buyer *user.User) error {
	if err := s.carts.Clear(ctx, buyer.ID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
