package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/cemention/internal/domain/user"
)

// ErrForbidden is returned when a non-admin edits the catalog.
var ErrForbidden = errors.New("catalog changes require admin")

// Service is the catalog. Anyone can read it; only admins change it.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return out, nil
}

// Create adds p with a fresh id.
func (s *Service) Create(ctx context.Context, caller *user.User, p Product) (*Product, error) {
	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = uuid.New().String()
	p.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return &p, nil
}

// Update replaces the editable fields of product p.ID. Orders and carts keep
// the prices they already hold.
func (s *Service) Update(ctx context.Context, caller *user.User, p Product) (*Product, error) {
	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return &p, nil
}

// Delete removes product id from the catalog.
func (s *Service) Delete(ctx context.Context, caller *user.User, id string) error {
	if !caller.Role.IsAdmin() {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
