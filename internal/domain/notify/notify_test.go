package notify

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/user"
)

var company = Company{
	Name:        "Cemention",
	Phone:       "9823064024",
	Website:     "www.cemention.com",
	UPIID:       "9823064024@ybl",
	BankAccount: "1676200100003406",
	BankIFSC:    "PUNB0167620",
	BankName:    "Punjab National Bank",
}

func testOrder() *order.Order {
	return &order.Order{
		ID:              "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		BuyerID:         "u1",
		Total:           decimal.RequireFromString("11800"),
		PaymentMethod:   pricing.MethodUPI,
		PaymentStatus:   order.PaymentPending,
		DeliveryAddress: order.Address{Street: "Station Road", City: "Jalgaon", State: "Maharashtra", Pincode: "425001"},
		DeliveryStatus:  order.DeliveryUnassigned,
	}
}

var buyer = &user.User{ID: "u1", Name: "Shree Traders", Phone: "+91 98000-00001", Role: user.RoleDealer}

func TestComposer_Text(t *testing.T) {
	c := NewComposer(company, "")
	o := testOrder()

	placed := c.Text(o, buyer, order.EventOrderPlaced)
	assert.Contains(t, placed, "Order: 3FA85F64")
	assert.Contains(t, placed, "Shree Traders (Dealer)")
	assert.Contains(t, placed, "₹11800.00")
	assert.Contains(t, placed, "UPI / PENDING")
	assert.Contains(t, placed, "Jalgaon, Maharashtra")

	pending := c.Text(o, buyer, order.EventPaymentPending)
	assert.Contains(t, pending, "UPI: 9823064024@ybl")
	assert.Contains(t, pending, "IFSC: PUNB0167620")

	received := c.Text(o, buyer, order.EventPaymentReceived)
	assert.Contains(t, received, "Transaction: N/A")
	o.TransactionRef = "UTR123"
	assert.Contains(t, c.Text(o, buyer, order.EventPaymentReceived), "Transaction: UTR123")

	assert.Contains(t, c.Text(o, buyer, order.EventDriverAssigned), "*DRIVER: TBD*")
	o.Driver = &order.Driver{Name: "Ramesh", Mobile: "9811111111", Vehicle: "MH19 AB 1234"}
	assigned := c.Text(o, buyer, order.EventDriverAssigned)
	assert.Contains(t, assigned, "*DRIVER: RAMESH*")
	assert.Contains(t, assigned, "*VEHICLE: MH19 AB 1234*")
	assert.Contains(t, c.Text(o, buyer, order.EventOutForDelivery), "*MOBILE: 9811111111*")

	delivered := c.Text(o, buyer, order.EventDelivered)
	assert.True(t, strings.HasSuffix(delivered, "Website: www.cemention.com"), delivered)
}

func TestComposer_EveryEventHasTemplate(t *testing.T) {
	c := NewComposer(company, "")
	for _, event := range order.Events {
		assert.NotEmpty(t, c.Text(testOrder(), buyer, event), event)
	}
}

func TestComposer_UnknownEvent(t *testing.T) {
	c := NewComposer(company, "")
	msg := c.Compose(testOrder(), buyer, order.Event("refunded"))
	assert.Empty(t, msg.Text)
	assert.Empty(t, msg.Link)
}

func TestComposer_Compose(t *testing.T) {
	c := NewComposer(company, "91")
	msg := c.Compose(testOrder(), buyer, order.EventOrderPlaced)

	assert.Equal(t, "919800000001", msg.Recipient)
	require.True(t, strings.HasPrefix(msg.Link, "https://wa.me/919800000001?text="))

	u, err := url.Parse(msg.Link)
	require.NoError(t, err)
	assert.Equal(t, msg.Text, u.Query().Get("text"))
	assert.NotContains(t, msg.Link, "+")
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "98230 64024", want: "919823064024"},
		{in: "+91-98230-64024", want: "919823064024"},
		{in: "919823064024", want: "919823064024"},
		{in: "9123064024", want: "9123064024"},
		{in: "12345", want: "12345"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in, DefaultCountryCode), tt.in)
	}
}

func TestWhatsAppLink(t *testing.T) {
	link := WhatsAppLink("9823064024", "Hi there & 100% ok", "91")
	assert.Equal(t, "https://wa.me/919823064024?text=Hi%20there%20%26%20100%25%20ok", link)
}

type recordingSender struct {
	got []order.Message
	err error
}

func (s *recordingSender) Send(_ context.Context, msg order.Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestDispatcher(t *testing.T) {
	sender := &recordingSender{err: errors.New("offline")}
	d := NewDispatcher(NewComposer(company, ""), sender)

	msg := d.Compose(testOrder(), buyer, order.EventDelivered)
	require.Error(t, d.Send(context.Background(), msg))
	require.Len(t, sender.got, 1)
	assert.Equal(t, order.EventDelivered, sender.got[0].Event)
}
