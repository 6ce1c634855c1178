package user

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Role is the closed set of account roles. Buyers are dealers, retailers or
// customers; admins run fulfillment.
type Role string

const (
	RoleDealer   Role = "dealer"
	RoleRetailer Role = "retailer"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// InvalidRoleError indicates a role string outside the known set.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q", e.Role)
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDealer, RoleRetailer, RoleCustomer, RoleAdmin:
		return r, nil
	default:
		return "", &InvalidRoleError{Role: s}
	}
}

// IsAdmin reports whether the role may run fulfillment operations.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleDealer, RoleRetailer, RoleCustomer:
		return false
	default:
		return false
	}
}

// SelfRegistrable reports whether a new account may pick this role itself.
func (r Role) SelfRegistrable() bool {
	switch r {
	case RoleDealer, RoleRetailer, RoleCustomer:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

// Title returns the role name with an upper-case first letter.
func (r Role) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// Address is a postal delivery address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// User is an account. For ordering purposes it is the buyer profile: role
// and tax registration drive pricing.
type User struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	BusinessName  string
	Role          Role
	TaxRegistered bool
	TaxID         string
	PasswordHash  string
	Addresses     []Address
	CreatedAt     time.Time
}

// taxIDPattern is the GSTIN layout: state code, PAN (5 letters, 4 digits,
// 1 letter), entity number, literal Z, checksum character.
var taxIDPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// InvalidTaxIDError indicates a tax id that does not match the GSTIN layout,
// or a tax id set on an unregistered buyer.
type InvalidTaxIDError struct {
	TaxID  string
	Reason string
}

func (e *InvalidTaxIDError) Error() string {
	return fmt.Sprintf("invalid tax id %q: %s", e.TaxID, e.Reason)
}

// NormalizeTaxID upper-cases and trims a tax id.
func NormalizeTaxID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidateTaxID checks id against the GSTIN layout. Input is matched
// case-insensitively.
func ValidateTaxID(id string) error {
	if !taxIDPattern.MatchString(NormalizeTaxID(id)) {
		return &InvalidTaxIDError{TaxID: id, Reason: "does not match GSTIN format"}
	}
	return nil
}

// SetTaxRegistration updates the tax fields. Registered buyers must carry a
// valid tax id; unregistered buyers must not carry one.
func (u *User) SetTaxRegistration(registered bool, taxID string) error {
	taxID = NormalizeTaxID(taxID)
	if !registered {
		if taxID != "" {
			return &InvalidTaxIDError{TaxID: taxID, Reason: "buyer is not tax registered"}
		}
		u.TaxRegistered = false
		u.TaxID = ""
		return nil
	}
	if taxID == "" {
		return &InvalidTaxIDError{Reason: "required for tax registered buyers"}
	}
	if err := ValidateTaxID(taxID); err != nil {
		return err
	}
	u.TaxRegistered = true
	u.TaxID = taxID
	return nil
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	UpdateRole(ctx context.Context, id string, role Role) error
}
