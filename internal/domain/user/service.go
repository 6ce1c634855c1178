package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrForbidden is returned when a non-admin calls an admin operation.
var ErrForbidden = errors.New("admin role required")

// InvalidAddressError indicates an address with a missing field.
type InvalidAddressError struct {
	Index int
	Field string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("address %d: %s is required", e.Index, e.Field)
}

// Validate checks that every address field is present.
func (a Address) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"pincode", a.Pincode},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &InvalidAddressError{Field: f.name}
		}
	}
	return nil
}

// ProfileUpdate is a partial profile change. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name          *string
	Phone         *string
	BusinessName  *string
	TaxRegistered *bool
	TaxID         *string
	Addresses     []Address
}

// Service manages profiles and roles.
type Service struct {
	users Repository
}

// NewService creates a user Service.
func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies upd to the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if name := strings.TrimSpace(*upd.Name); name != "" {
			u.Name = name
		}
	}
	if upd.Phone != nil {
		if phone := strings.TrimSpace(*upd.Phone); phone != "" {
			u.Phone = phone
		}
	}
	if upd.BusinessName != nil {
		u.BusinessName = strings.TrimSpace(*upd.BusinessName)
	}
	if upd.TaxRegistered != nil || upd.TaxID != nil {
		registered, taxID := u.TaxRegistered, u.TaxID
		if upd.TaxRegistered != nil {
			registered = *upd.TaxRegistered
			if !registered {
				taxID = ""
			}
		}
		if upd.TaxID != nil {
			taxID = *upd.TaxID
		}
		if err := u.SetTaxRegistration(registered, taxID); err != nil {
			return nil, err
		}
	}
	if upd.Addresses != nil {
		for i, a := range upd.Addresses {
			if err := a.Validate(); err != nil {
				var ae *InvalidAddressError
				if errors.As(err, &ae) {
					ae.Index = i
				}
				return nil, err
			}
		}
		u.Addresses = upd.Addresses
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// List returns all users. Admin only.
func (s *Service) List(ctx context.Context, caller *User) ([]User, error) {
	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.users.List(ctx)
}

// ChangeRole sets the role of user id. Admin only. An admin cannot demote
// itself, so the system always keeps at least the caller as admin.
func (s *Service) ChangeRole(ctx context.Context, caller *User, id string, role Role) (*User, error) {
	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	if caller.ID == id && !role.IsAdmin() {
		return nil, errors.Wrap(ErrForbidden, "cannot demote yourself")
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}
