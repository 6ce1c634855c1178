package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/user"
)

// LineItem is a priced order line; the unit price was locked in the cart.
type LineItem = pricing.LineItem

// PaymentMethod is how the buyer pays.
type PaymentMethod = pricing.PaymentMethod

// Address is the delivery address copied onto the order.
type Address = user.Address

// Driver is the dispatch record. All three fields are set together.
type Driver struct {
	Name    string
	Mobile  string
	Vehicle string
}

// Order is a placed order. Totals are frozen at creation and are the amount
// owed; only the payment, delivery, driver and invoice fields change later.
type Order struct {
	ID              string
	BuyerID         string
	Items           []LineItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Surcharge       decimal.Decimal
	Total           decimal.Decimal
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	TransactionRef  string
	DeliveryAddress Address
	Driver          *Driver
	DeliveryStatus  DeliveryStatus
	InvoiceRef      string
	CreatedAt       time.Time
}

// Totals returns the stored amounts as a pricing breakdown.
func (o *Order) Totals() pricing.Breakdown {
	return pricing.Breakdown{
		Subtotal:  o.Subtotal,
		Tax:       o.Tax,
		Surcharge: o.Surcharge,
		Total:     o.Total,
	}
}

// Number is the short human facing order number: the first 8 characters of
// the id, upper-cased. Invoices use it as the invoice number.
func (o *Order) Number() string {
	n := o.ID
	if len(n) > 8 {
		n = n[:8]
	}
	return strings.ToUpper(n)
}

// Invoiced reports whether an invoice document is attached.
func (o *Order) Invoiced() bool {
	return o.InvoiceRef != ""
}

// ProductIDs returns the product ids of the order lines in order.
func (o *Order) ProductIDs() []string {
	ids := make([]string, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ProductID
	}
	return ids
}

// Repository defines persistence operations for orders. Orders are never
// deleted.
type Repository interface {
	// Create stores a new order. It returns ErrAlreadyExists when the id is
	// taken.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	// TransitionPayment sets the payment status to `to` only if it is
	// currently `from`, and reports whether it did. A non-empty txnRef
	// overwrites the stored transaction reference.
	TransitionPayment(ctx context.Context, id string, from, to PaymentStatus, txnRef string) (bool, error)
	// AttachInvoice sets the invoice reference only if none is set yet, and
	// reports whether it did.
	AttachInvoice(ctx context.Context, id, ref string) (bool, error)
	// AssignDriver writes the driver and the driver_assigned status in one
	// update.
	AssignDriver(ctx context.Context, id string, d Driver) error
	UpdateDeliveryStatus(ctx context.Context, id string, status DeliveryStatus) error
}

// InvoiceStore keeps rendered invoice documents.
type InvoiceStore interface {
	Put(ctx context.Context, orderID string, doc []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// InvoiceRenderer produces the invoice document for a paid order.
type InvoiceRenderer interface {
	RenderInvoice(ctx context.Context, o *Order, buyer *user.User, products []product.Product) ([]byte, error)
}

// Message is a composed notification ready for delivery.
type Message struct {
	Event     Event
	OrderID   string
	Recipient string
	Text      string
	Link      string
}

// Notifier composes and delivers lifecycle notifications.
type Notifier interface {
	Compose(o *Order, buyer *user.User, event Event) Message
	Send(ctx context.Context, msg Message) error
}

// CartClearer empties a buyer's cart after checkout.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// UserReader loads buyer profiles.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// ProductReader loads catalog entries for order lines.
type ProductReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}
