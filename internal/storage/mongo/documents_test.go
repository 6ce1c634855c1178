package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/user"
)

func TestOrderDoc_KeepsExactAmounts(t *testing.T) {
	o := &order.Order{
		ID:      "o1",
		BuyerID: "u1",
		Items: []order.LineItem{
			{ProductID: "opc", Quantity: 150, UnitPrice: decimal.RequireFromString("381.26")},
		},
		Subtotal:        decimal.RequireFromString("57189.00"),
		Tax:             decimal.RequireFromString("10294.02"),
		Surcharge:       decimal.RequireFromString("1349.66"),
		Total:           decimal.RequireFromString("68832.68"),
		PaymentMethod:   pricing.MethodCard,
		PaymentStatus:   order.PaymentPending,
		DeliveryAddress: user.Address{Street: "Station Road", City: "Jalgaon", State: "MH", Pincode: "425001"},
		DeliveryStatus:  order.DeliveryUnassigned,
		CreatedAt:       time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC),
	}

	doc, err := toOrderDoc(o)
	require.NoError(t, err)
	assert.Nil(t, doc.InvoiceRef)
	assert.Nil(t, doc.Driver)

	// Survive a real BSON round trip, which is what the collection does.
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded orderDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got, err := decoded.order()
	require.NoError(t, err)
	assert.True(t, o.Totals().Equal(got.Totals()))
	assert.True(t, o.Items[0].UnitPrice.Equal(got.Items[0].UnitPrice))
	assert.Equal(t, o.DeliveryAddress, got.DeliveryAddress)
	assert.Nil(t, got.Driver)
	assert.Empty(t, got.InvoiceRef)
}

func TestOrderDoc_InvoiceRefIsNullUntilAttached(t *testing.T) {
	doc, err := toOrderDoc(&order.Order{ID: "o1"})
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	val, err := bson.Raw(raw).LookupErr("invoice_ref")
	require.NoError(t, err, "invoice_ref must be present so the null filter matches")
	assert.Equal(t, bson.TypeNull, val.Type)

	doc, err = toOrderDoc(&order.Order{
		ID:         "o2",
		InvoiceRef: "ref-1",
		Driver:     &order.Driver{Name: "Ramesh", Mobile: "9811111111", Vehicle: "MH19"},
	})
	require.NoError(t, err)
	got, err := doc.order()
	require.NoError(t, err)
	assert.Equal(t, "ref-1", got.InvoiceRef)
	require.NotNil(t, got.Driver)
	assert.Equal(t, "MH19", got.Driver.Vehicle)
}

func TestUserAndProductDocs(t *testing.T) {
	u := &user.User{
		ID: "u1", Email: "a@b.example", Role: user.RoleRetailer,
		Addresses: []user.Address{{Street: "s", City: "c", State: "st", Pincode: "p"}},
	}
	assert.Equal(t, *u, toUserDoc(u).user())

	p := &product.Product{ID: "opc", Brand: "ACC", BasePrice: decimal.RequireFromString("360.5"), MinQuantity: 100}
	doc, err := toProductDoc(p)
	require.NoError(t, err)
	got, err := doc.product()
	require.NoError(t, err)
	assert.True(t, p.BasePrice.Equal(got.BasePrice))
	assert.Equal(t, "ACC", got.Brand)
}
