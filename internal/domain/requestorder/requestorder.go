// Package requestorder handles bulk enquiries: a buyer asks for a quantity of
// a brand to be delivered somewhere and an admin follows up by phone.
package requestorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/cemention/internal/domain/user"
)

// Status of an enquiry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusContacted Status = "contacted"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrNotFound is returned when a request order does not exist.
	ErrNotFound = errors.New("request order not found")
	// ErrForbidden is returned when a non-admin updates an enquiry.
	ErrForbidden = errors.New("request order update requires admin")
)

// InvalidRequestError indicates a missing or malformed enquiry field.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request order %s: %s", e.Field, e.Reason)
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusContacted, StatusFulfilled, StatusCancelled:
		return st, nil
	default:
		return "", &InvalidRequestError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
}

// RequestOrder is a bulk enquiry.
type RequestOrder struct {
	ID               string
	UserID           string
	Brand            string
	Quantity         int
	DeliveryLocation string
	Phone            string
	PreferredDate    string
	Status           Status
	CreatedAt        time.Time
}

// Repository persists request orders.
type Repository interface {
	Create(ctx context.Context, r *RequestOrder) error
	List(ctx context.Context) ([]RequestOrder, error)
	ListByUser(ctx context.Context, userID string) ([]RequestOrder, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// CreateRequest holds the buyer supplied enquiry fields.
type CreateRequest struct {
	Brand            string
	Quantity         int
	DeliveryLocation string
	Phone            string
	PreferredDate    string
}

// Service implements request order operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a request order Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new pending enquiry for buyer.
func (s *Service) Create(ctx context.Context, buyer *user.User, req CreateRequest) (*RequestOrder, error) {
	switch {
	case strings.TrimSpace(req.Brand) == "":
		return nil, &InvalidRequestError{Field: "brand", Reason: "required"}
	case req.Quantity <= 0:
		return nil, &InvalidRequestError{Field: "quantity", Reason: "must be greater than 0"}
	case strings.TrimSpace(req.DeliveryLocation) == "":
		return nil, &InvalidRequestError{Field: "deliveryLocation", Reason: "required"}
	case strings.TrimSpace(req.Phone) == "":
		return nil, &InvalidRequestError{Field: "phone", Reason: "required"}
	}

	r := &RequestOrder{
		ID:               uuid.New().String(),
		UserID:           buyer.ID,
		Brand:            strings.TrimSpace(req.Brand),
		Quantity:         req.Quantity,
		DeliveryLocation: strings.TrimSpace(req.DeliveryLocation),
		Phone:            strings.TrimSpace(req.Phone),
		PreferredDate:    strings.TrimSpace(req.PreferredDate),
		Status:           StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create request order")
	}
	return r, nil
}

// List returns every enquiry for admins and the caller's own otherwise.
func (s *Service) List(ctx context.Context, caller *user.User) ([]RequestOrder, error) {
	var (
		out []RequestOrder
		err error
	)
	if caller.Role.IsAdmin() {
		out, err = s.repo.List(ctx)
	} else {
		out, err = s.repo.ListByUser(ctx, caller.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list request orders")
	}
	return out, nil
}

// UpdateStatus sets the status of an enquiry. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, caller *user.User, id string, status Status) error {
	if !caller.Role.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return errors.Wrap(err, "update request order status")
	}
	return nil
}
