// Package notify composes buyer notifications for order lifecycle events and
// builds WhatsApp click-to-chat links for them. It never talks to the
// network; delivery is delegated to a Sender.
package notify

import (
	"context"
	"net/url"
	"strings"
	"text/template"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/user"
)

// DefaultCountryCode is prefixed to bare 10 digit phone numbers.
const DefaultCountryCode = "91"

// Company is the issuer identity quoted in messages.
type Company struct {
	Name        string
	Phone       string
	Email       string
	Website     string
	UPIID       string
	BankAccount string
	BankIFSC    string
	BankName    string
}

var templates = map[order.Event]string{
	order.EventOrderPlaced: `*Order placed* 🎉

Order: {{.OrderNo}}
Customer: {{.Customer}} ({{.Role}})
Total: ₹{{.Total}}
Payment: {{.Method}} / {{.PaymentStatus}}

Deliver to:
{{.Address.Street}}
{{.Address.City}}, {{.Address.State}}
Pincode: {{.Address.Pincode}}

Thank you for ordering with {{.Company.Name}}.
Queries: {{.Company.Phone}}`,

	order.EventPaymentReceived: `*Payment received* ✅

Order: {{.OrderNo}}
Customer: {{.Customer}}
Amount: ₹{{.Total}}
Transaction: {{or .TransactionRef "N/A"}}

Your order is being processed and the invoice is ready.

Queries: {{.Company.Phone}}`,

	order.EventPaymentPending: `*Payment pending* ⏳

Order: {{.OrderNo}}
Customer: {{.Customer}}
Amount: ₹{{.Total}}

Please complete the payment so we can process your order.
{{with .Company}}
UPI: {{.UPIID}}
Account: {{.BankAccount}}
IFSC: {{.BankIFSC}}
Bank: {{.BankName}}
{{end}}
Queries: {{.Company.Phone}}`,

	order.EventDriverAssigned: `*Driver assigned* 🚚

Order: {{.OrderNo}}
Customer: {{.Customer}}

*DRIVER: {{upper .Driver.Name}}*
*MOBILE: {{.Driver.Mobile}}*
*VEHICLE: {{.Driver.Vehicle}}*

Your order will be delivered soon.

Queries: {{.Company.Phone}}`,

	order.EventOutForDelivery: `*Out for delivery* 🚚

Order: {{.OrderNo}}
Customer: {{.Customer}}

*DRIVER: {{upper .Driver.Name}}*
*MOBILE: {{.Driver.Mobile}}*

Please be available at the delivery address.

Queries: {{.Company.Phone}}`,

	order.EventDelivered: `*Order delivered* ✅

Order: {{.OrderNo}}
Customer: {{.Customer}}

Thank you for ordering with {{.Company.Name}}. We would love your feedback.

Queries: {{.Company.Phone}}
{{- if .Company.Website}}
Website: {{.Company.Website}}
{{- end}}`,
}

type messageData struct {
	OrderNo        string
	Customer       string
	Role           string
	Total          string
	Method         string
	PaymentStatus  string
	TransactionRef string
	Address        order.Address
	Driver         order.Driver
	Company        Company
}

// Composer renders event messages. It is safe for concurrent use.
type Composer struct {
	company     Company
	countryCode string
	templates   map[order.Event]*template.Template
}

// NewComposer parses the message templates.
func NewComposer(company Company, countryCode string) *Composer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	funcs := template.FuncMap{"upper": strings.ToUpper}
	parsed := make(map[order.Event]*template.Template, len(templates))
	for event, src := range templates {
		parsed[event] = template.Must(template.New(string(event)).Funcs(funcs).Parse(src))
	}
	return &Composer{
		company:     company,
		countryCode: countryCode,
		templates:   parsed,
	}
}

// Text returns the message for event, or "" for unknown events or when the
// template cannot be executed.
func (c *Composer) Text(o *order.Order, buyer *user.User, event order.Event) string {
	tmpl, ok := c.templates[event]
	if !ok {
		return ""
	}

	data := messageData{
		OrderNo:        o.Number(),
		Customer:       buyer.Name,
		Role:           buyer.Role.Title(),
		Total:          o.Total.StringFixed(2),
		Method:         strings.ToUpper(string(o.PaymentMethod)),
		PaymentStatus:  strings.ToUpper(string(o.PaymentStatus)),
		TransactionRef: o.TransactionRef,
		Address:        o.DeliveryAddress,
		Driver:         order.Driver{Name: "TBD", Mobile: "TBD", Vehicle: "TBD"},
		Company:        c.company,
	}
	if o.Driver != nil {
		data.Driver = *o.Driver
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return ""
	}
	return b.String()
}

// Compose builds the message for event addressed to the buyer's phone.
func (c *Composer) Compose(o *order.Order, buyer *user.User, event order.Event) order.Message {
	msg := order.Message{
		Event:     event,
		OrderID:   o.ID,
		Recipient: NormalizePhone(buyer.Phone, c.countryCode),
		Text:      c.Text(o, buyer, event),
	}
	if msg.Text != "" {
		msg.Link = WhatsAppLink(msg.Recipient, msg.Text, c.countryCode)
	}
	return msg
}

// NormalizePhone keeps the digits of phone and prefixes countryCode when
// exactly 10 digits remain and they do not already start with it.
func NormalizePhone(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits
}

// WhatsAppLink returns a wa.me click-to-chat link with text pre-filled.
func WhatsAppLink(phone, text, countryCode string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + NormalizePhone(phone, countryCode) + "?text=" + escaped
}

// Sender delivers a composed message to its recipient.
type Sender interface {
	Send(ctx context.Context, msg order.Message) error
}

// Dispatcher composes with a Composer and delivers with a Sender. It
// satisfies order.Notifier.
type Dispatcher struct {
	*Composer
	sender Sender
}

var _ order.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher.
func NewDispatcher(c *Composer, s Sender) *Dispatcher {
	return &Dispatcher{Composer: c, sender: s}
}

// Send delivers msg.
func (d *Dispatcher) Send(ctx context.Context, msg order.Message) error {
	return d.sender.Send(ctx, msg)
}
