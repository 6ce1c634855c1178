package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
)

// Money is stored as Decimal128 so amounts keep their exact value.

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encoding amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decoding amount %s: %w", v, err)
	}
	return d, nil
}

type addressDoc struct {
	Street  string `bson:"street"`
	City    string `bson:"city"`
	State   string `bson:"state"`
	Pincode string `bson:"pincode"`
}

func toAddressDoc(a user.Address) addressDoc {
	return addressDoc{Street: a.Street, City: a.City, State: a.State, Pincode: a.Pincode}
}

func (d addressDoc) address() user.Address {
	return user.Address{Street: d.Street, City: d.City, State: d.State, Pincode: d.Pincode}
}

type userDoc struct {
	ID            string       `bson:"_id"`
	Name          string       `bson:"name"`
	Email         string       `bson:"email"`
	Phone         string       `bson:"phone"`
	BusinessName  string       `bson:"business_name"`
	Role          string       `bson:"role"`
	TaxRegistered bool         `bson:"tax_registered"`
	TaxID         string       `bson:"tax_id"`
	PasswordHash  string       `bson:"password_hash"`
	Addresses     []addressDoc `bson:"addresses"`
	CreatedAt     time.Time    `bson:"created_at"`
}

func toUserDoc(u *user.User) userDoc {
	doc := userDoc{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		BusinessName:  u.BusinessName,
		Role:          string(u.Role),
		TaxRegistered: u.TaxRegistered,
		TaxID:         u.TaxID,
		PasswordHash:  u.PasswordHash,
		Addresses:     make([]addressDoc, len(u.Addresses)),
		CreatedAt:     u.CreatedAt,
	}
	for i, a := range u.Addresses {
		doc.Addresses[i] = toAddressDoc(a)
	}
	return doc
}

func (d userDoc) user() user.User {
	u := user.User{
		ID:            d.ID,
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.Phone,
		BusinessName:  d.BusinessName,
		Role:          user.Role(d.Role),
		TaxRegistered: d.TaxRegistered,
		TaxID:         d.TaxID,
		PasswordHash:  d.PasswordHash,
		CreatedAt:     d.CreatedAt,
	}
	for _, a := range d.Addresses {
		u.Addresses = append(u.Addresses, a.address())
	}
	return u
}

type productDoc struct {
	ID          string               `bson:"_id"`
	Brand       string               `bson:"brand"`
	Grade       string               `bson:"grade"`
	BasePrice   primitive.Decimal128 `bson:"base_price"`
	Image       string               `bson:"image"`
	MinQuantity int                  `bson:"min_quantity"`
	Stock       int                  `bson:"stock"`
	CreatedAt   time.Time            `bson:"created_at"`
}

func toProductDoc(p *product.Product) (productDoc, error) {
	price, err := toDecimal128(p.BasePrice)
	if err != nil {
		return productDoc{}, err
	}
	return productDoc{
		ID:          p.ID,
		Brand:       p.Brand,
		Grade:       p.Grade,
		BasePrice:   price,
		Image:       p.Image,
		MinQuantity: p.MinQuantity,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func (d productDoc) product() (product.Product, error) {
	price, err := fromDecimal128(d.BasePrice)
	if err != nil {
		return product.Product{}, err
	}
	return product.Product{
		ID:          d.ID,
		Brand:       d.Brand,
		Grade:       d.Grade,
		BasePrice:   price,
		Image:       d.Image,
		MinQuantity: d.MinQuantity,
		Stock:       d.Stock,
		CreatedAt:   d.CreatedAt,
	}, nil
}

type lineItemDoc struct {
	ProductID string               `bson:"product_id"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
}

func toLineItemDocs(items []pricing.LineItem) ([]lineItemDoc, error) {
	out := make([]lineItemDoc, len(items))
	for i, item := range items {
		price, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		out[i] = lineItemDoc{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: price}
	}
	return out, nil
}

func lineItems(docs []lineItemDoc) ([]pricing.LineItem, error) {
	out := make([]pricing.LineItem, len(docs))
	for i, d := range docs {
		price, err := fromDecimal128(d.UnitPrice)
		if err != nil {
			return nil, err
		}
		out[i] = pricing.LineItem{ProductID: d.ProductID, Quantity: d.Quantity, UnitPrice: price}
	}
	return out, nil
}

type cartDoc struct {
	UserID    string        `bson:"_id"`
	Items     []lineItemDoc `bson:"items"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type driverDoc struct {
	Name    string `bson:"name"`
	Mobile  string `bson:"mobile"`
	Vehicle string `bson:"vehicle_number"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	BuyerID         string               `bson:"buyer_id"`
	Items           []lineItemDoc        `bson:"items"`
	Subtotal        primitive.Decimal128 `bson:"subtotal"`
	Tax             primitive.Decimal128 `bson:"tax_amount"`
	Surcharge       primitive.Decimal128 `bson:"surcharge_amount"`
	Total           primitive.Decimal128 `bson:"total_amount"`
	PaymentMethod   string               `bson:"payment_method"`
	PaymentStatus   string               `bson:"payment_status"`
	TransactionRef  string               `bson:"transaction_ref"`
	DeliveryAddress addressDoc           `bson:"delivery_address"`
	Driver          *driverDoc           `bson:"driver,omitempty"`
	DeliveryStatus  string               `bson:"delivery_status"`
	// InvoiceRef is nil until an invoice is attached; AttachInvoice filters
	// on it being null.
	InvoiceRef *string   `bson:"invoice_ref"`
	CreatedAt  time.Time `bson:"created_at"`
}

func toOrderDoc(o *order.Order) (orderDoc, error) {
	items, err := toLineItemDocs(o.Items)
	if err != nil {
		return orderDoc{}, err
	}
	doc := orderDoc{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		Items:           items,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		TransactionRef:  o.TransactionRef,
		DeliveryAddress: toAddressDoc(o.DeliveryAddress),
		DeliveryStatus:  string(o.DeliveryStatus),
		CreatedAt:       o.CreatedAt,
	}
	amounts := []struct {
		dst *primitive.Decimal128
		src decimal.Decimal
	}{
		{&doc.Subtotal, o.Subtotal},
		{&doc.Tax, o.Tax},
		{&doc.Surcharge, o.Surcharge},
		{&doc.Total, o.Total},
	}
	for _, a := range amounts {
		if *a.dst, err = toDecimal128(a.src); err != nil {
			return orderDoc{}, err
		}
	}
	if o.Driver != nil {
		doc.Driver = &driverDoc{Name: o.Driver.Name, Mobile: o.Driver.Mobile, Vehicle: o.Driver.Vehicle}
	}
	if o.InvoiceRef != "" {
		ref := o.InvoiceRef
		doc.InvoiceRef = &ref
	}
	return doc, nil
}

func (d orderDoc) order() (order.Order, error) {
	items, err := lineItems(d.Items)
	if err != nil {
		return order.Order{}, err
	}
	o := order.Order{
		ID:              d.ID,
		BuyerID:         d.BuyerID,
		Items:           items,
		PaymentMethod:   order.PaymentMethod(d.PaymentMethod),
		PaymentStatus:   order.PaymentStatus(d.PaymentStatus),
		TransactionRef:  d.TransactionRef,
		DeliveryAddress: d.DeliveryAddress.address(),
		DeliveryStatus:  order.DeliveryStatus(d.DeliveryStatus),
		CreatedAt:       d.CreatedAt,
	}
	amounts := []struct {
		dst *decimal.Decimal
		src primitive.Decimal128
	}{
		{&o.Subtotal, d.Subtotal},
		{&o.Tax, d.Tax},
		{&o.Surcharge, d.Surcharge},
		{&o.Total, d.Total},
	}
	for _, a := range amounts {
		if *a.dst, err = fromDecimal128(a.src); err != nil {
			return order.Order{}, err
		}
	}
	if d.Driver != nil {
		o.Driver = &order.Driver{Name: d.Driver.Name, Mobile: d.Driver.Mobile, Vehicle: d.Driver.Vehicle}
	}
	if d.InvoiceRef != nil {
		o.InvoiceRef = *d.InvoiceRef
	}
	return o, nil
}

type invoiceDoc struct {
	Ref       string    `bson:"_id"`
	OrderID   string    `bson:"order_id"`
	Document  []byte    `bson:"document"`
	CreatedAt time.Time `bson:"created_at"`
}

type requestOrderDoc struct {
	ID               string    `bson:"_id"`
	UserID           string    `bson:"user_id"`
	Brand            string    `bson:"brand"`
	Quantity         int       `bson:"quantity"`
	DeliveryLocation string    `bson:"delivery_location"`
	Phone            string    `bson:"phone"`
	PreferredDate    string    `bson:"preferred_date"`
	Status           string    `bson:"status"`
	CreatedAt        time.Time `bson:"created_at"`
}

func toRequestOrderDoc(r *requestorder.RequestOrder) requestOrderDoc {
	return requestOrderDoc{
		ID:               r.ID,
		UserID:           r.UserID,
		Brand:            r.Brand,
		Quantity:         r.Quantity,
		DeliveryLocation: r.DeliveryLocation,
		Phone:            r.Phone,
		PreferredDate:    r.PreferredDate,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

func (d requestOrderDoc) requestOrder() requestorder.RequestOrder {
	return requestorder.RequestOrder{
		ID:               d.ID,
		UserID:           d.UserID,
		Brand:            d.Brand,
		Quantity:         d.Quantity,
		DeliveryLocation: d.DeliveryLocation,
		Phone:            d.Phone,
		PreferredDate:    d.PreferredDate,
		Status:           requestorder.Status(d.Status),
		CreatedAt:        d.CreatedAt,
	}
}
