// Package pricing turns line items into order totals: subtotal, GST,
// card surcharge and grand total, all in exact decimal arithmetic.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/cemention/internal/domain/user"
)

// PaymentMethod is how the buyer intends to pay.
type PaymentMethod string

const (
	MethodCOD  PaymentMethod = "cod"
	MethodCard PaymentMethod = "card"
	MethodUPI  PaymentMethod = "upi"
	MethodBank PaymentMethod = "bank"
)

// InvalidPaymentMethodError indicates an unknown payment method string.
type InvalidPaymentMethodError struct {
	Method string
}

func (e *InvalidPaymentMethodError) Error() string {
	return fmt.Sprintf("invalid payment method %q", e.Method)
}

// ParsePaymentMethod converts s into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodCOD, MethodCard, MethodUPI, MethodBank:
		return m, nil
	default:
		return "", &InvalidPaymentMethodError{Method: s}
	}
}

// LineItem is one product line. UnitPrice is locked when the item enters the
// cart and is not re-read from the catalog afterwards.
type LineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Amount returns quantity * unit price.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Breakdown is the priced result of a set of line items.
type Breakdown struct {
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Surcharge decimal.Decimal
	Total     decimal.Decimal
}

// Equal reports whether every component of b equals the one in o.
func (b Breakdown) Equal(o Breakdown) bool {
	return b.Subtotal.Equal(o.Subtotal) &&
		b.Tax.Equal(o.Tax) &&
		b.Surcharge.Equal(o.Surcharge) &&
		b.Total.Equal(o.Total)
}

// Config holds the process-wide pricing rates.
type Config struct {
	// TaxRate is applied to the whole subtotal of tax registered buyers.
	TaxRate decimal.Decimal
	// SurchargeRate is applied to the subtotal of card payments.
	SurchargeRate decimal.Decimal
	// Multipliers scale catalog base prices per buyer role. Roles without an
	// entry pay the base price.
	Multipliers map[user.Role]decimal.Decimal
}

// DefaultConfig returns 18% GST, 2% card surcharge and the standard role
// multipliers.
func DefaultConfig() Config {
	return Config{
		TaxRate:       decimal.RequireFromString("0.18"),
		SurchargeRate: decimal.RequireFromString("0.02"),
		Multipliers: map[user.Role]decimal.Decimal{
			user.RoleDealer:   decimal.NewFromInt(1),
			user.RoleRetailer: decimal.RequireFromString("1.0167"),
			user.RoleCustomer: decimal.RequireFromString("1.025"),
			user.RoleAdmin:    decimal.NewFromInt(1),
		},
	}
}

// Engine prices orders. It is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// TaxRate returns the configured tax rate.
func (e *Engine) TaxRate() decimal.Decimal { return e.cfg.TaxRate }

// SurchargeRate returns the configured card surcharge rate.
func (e *Engine) SurchargeRate() decimal.Decimal { return e.cfg.SurchargeRate }

// Price computes the breakdown for items bought by buyer with method.
// Every component is rounded to 2 decimal places before the total is summed.
func (e *Engine) Price(items []LineItem, buyer *user.User, method PaymentMethod) Breakdown {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}
	subtotal = subtotal.Round(2)

	tax := decimal.Zero
	if buyer != nil && buyer.TaxRegistered {
		tax = subtotal.Mul(e.cfg.TaxRate).Round(2)
	}

	surcharge := decimal.Zero
	if method == MethodCard {
		surcharge = subtotal.Mul(e.cfg.SurchargeRate).Round(2)
	}

	return Breakdown{
		Subtotal:  subtotal,
		Tax:       tax,
		Surcharge: surcharge,
		Total:     subtotal.Add(tax).Add(surcharge),
	}
}

// UnitPrice returns the catalog price a buyer with role pays per unit.
func (e *Engine) UnitPrice(base decimal.Decimal, role user.Role) decimal.Decimal {
	m, ok := e.cfg.Multipliers[role]
	if !ok {
		return base.Round(2)
	}
	return base.Mul(m).Round(2)
}
