// Package quantity validates order quantities against a minimum and a set of
// allowed pack multiples.
package quantity

import (
	"fmt"
	"strconv"
	"strings"
)

// Reason enumerates the ways a quantity can violate the policy.
type Reason string

const (
	// BelowMinimum means the quantity is smaller than the minimum order.
	BelowMinimum Reason = "below_minimum"
	// InvalidMultiple means the quantity is not a multiple of any allowed step.
	InvalidMultiple Reason = "invalid_multiple"
)

// RuleViolationError describes a rejected quantity. Its message is meant to
// be shown to the buyer.
type RuleViolationError struct {
	Reason    Reason
	ProductID string
	Quantity  int
	MinQty    int
	Multiples []int
}

func (e *RuleViolationError) Error() string {
	var msg string
	switch e.Reason {
	case BelowMinimum:
		msg = fmt.Sprintf("minimum order quantity is %d bags", e.MinQty)
	case InvalidMultiple:
		parts := make([]string, len(e.Multiples))
		for i, m := range e.Multiples {
			parts[i] = strconv.Itoa(m)
		}
		msg = fmt.Sprintf("quantity must be in multiples of %s", strings.Join(parts, " or "))
	default:
		msg = "quantity rejected"
	}
	if e.ProductID != "" {
		return fmt.Sprintf("%s (product %s, quantity %d)", msg, e.ProductID, e.Quantity)
	}
	return msg
}

// Policy holds the quantity rules. The zero value accepts every quantity.
type Policy struct {
	MinQty    int
	Multiples []int
}

// NewPolicy returns a Policy, dropping non-positive multiples.
func NewPolicy(minQty int, multiples []int) Policy {
	clean := make([]int, 0, len(multiples))
	for _, m := range multiples {
		if m > 0 {
			clean = append(clean, m)
		}
	}
	return Policy{MinQty: minQty, Multiples: clean}
}

// Validate checks q against the policy.
func (p Policy) Validate(q int) error {
	return Validate(q, p.MinQty, p.Multiples)
}

// Validate accepts q iff q >= minQty and q is divisible by at least one of
// the allowed multiples. Non-positive multiples are ignored and an empty set
// imposes no step.
func Validate(q, minQty int, multiples []int) error {
	if q < minQty {
		return &RuleViolationError{Reason: BelowMinimum, Quantity: q, MinQty: minQty, Multiples: multiples}
	}

	steps := 0
	for _, m := range multiples {
		if m <= 0 {
			continue
		}
		steps++
		if q%m == 0 {
			return nil
		}
	}
	if steps == 0 {
		return nil
	}
	return &RuleViolationError{Reason: InvalidMultiple, Quantity: q, MinQty: minQty, Multiples: multiples}
}
