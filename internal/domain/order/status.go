package order

import (
	"fmt"
	"strings"

	"github.com/xenking/cemention/internal/domain/pricing"
)

// PaymentStatus is the payment axis of the order lifecycle.
type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "pending"
	PaymentVerificationPending PaymentStatus = "verification_pending"
	PaymentCOD                 PaymentStatus = "cod"
	PaymentReceived            PaymentStatus = "received"
)

// paymentTransitions lists the legal next states. received is terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:             {PaymentVerificationPending, PaymentCOD, PaymentReceived},
	PaymentVerificationPending: {PaymentPending, PaymentReceived},
	PaymentCOD:                 {PaymentReceived},
	PaymentReceived:            {},
}

// ParsePaymentStatus converts s into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := paymentTransitions[st]; !ok {
		return "", &InvalidStatusError{Axis: AxisPayment, Status: s}
	}
	return st, nil
}

// CanTransitionTo reports whether the payment status may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InitialPaymentStatus picks the status of a new order: cod for cash on
// delivery, verification_pending when the buyer supplied a transaction
// reference, pending otherwise.
func InitialPaymentStatus(method PaymentMethod, txnRef string) PaymentStatus {
	switch {
	case method == pricing.MethodCOD:
		return PaymentCOD
	case strings.TrimSpace(txnRef) != "":
		return PaymentVerificationPending
	default:
		return PaymentPending
	}
}

// DeliveryStatus is the delivery axis of the order lifecycle.
type DeliveryStatus string

const (
	DeliveryUnassigned     DeliveryStatus = "unassigned"
	DeliveryDriverAssigned DeliveryStatus = "driver_assigned"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
)

// ParseDeliveryStatus converts s into a DeliveryStatus.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch st := DeliveryStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case DeliveryUnassigned, DeliveryDriverAssigned, DeliveryOutForDelivery, DeliveryDelivered:
		return st, nil
	default:
		return "", &InvalidStatusError{Axis: AxisDelivery, Status: s}
	}
}

// RequiresDriver reports whether a driver must be recorded in this status.
func (s DeliveryStatus) RequiresDriver() bool {
	switch s {
	case DeliveryDriverAssigned, DeliveryOutForDelivery, DeliveryDelivered:
		return true
	case DeliveryUnassigned:
		return false
	default:
		return false
	}
}

// Event names a lifecycle notification.
type Event string

const (
	EventOrderPlaced     Event = "order_placed"
	EventPaymentReceived Event = "payment_received"
	EventPaymentPending  Event = "payment_pending"
	EventDriverAssigned  Event = "driver_assigned"
	EventOutForDelivery  Event = "out_for_delivery"
	EventDelivered       Event = "delivered"
)

// Events lists every known event.
var Events = []Event{
	EventOrderPlaced,
	EventPaymentReceived,
	EventPaymentPending,
	EventDriverAssigned,
	EventOutForDelivery,
	EventDelivered,
}

// ParseEvent converts s into an Event.
func ParseEvent(s string) (Event, error) {
	e := Event(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Events {
		if e == known {
			return e, nil
		}
	}
	return "", &InvalidStatusError{Axis: AxisEvent, Status: s}
}

// deliveryEvent maps delivery statuses to the notification they trigger.
// Other statuses are silent.
func deliveryEvent(s DeliveryStatus) (Event, bool) {
	switch s {
	case DeliveryOutForDelivery:
		return EventOutForDelivery, true
	case DeliveryDelivered:
		return EventDelivered, true
	case DeliveryUnassigned, DeliveryDriverAssigned:
		return "", false
	default:
		return "", false
	}
}

// Axis names a lifecycle dimension in errors.
type Axis string

const (
	AxisPayment  Axis = "payment"
	AxisDelivery Axis = "delivery"
	AxisEvent    Axis = "event"
)

// InvalidStatusError indicates an unknown status string.
type InvalidStatusError struct {
	Axis   Axis
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid %s status %q", e.Axis, e.Status)
}

// TransitionError indicates a state change the lifecycle does not allow.
type TransitionError struct {
	Axis   Axis
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s status cannot change from %s to %s", e.Axis, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
