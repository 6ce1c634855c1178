package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/cemention/internal/domain/cart"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
)

// Amounts are encoded as JSON strings holding the exact decimal value.

// User is the public view of an account; the password hash never leaves the
// server.
type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	BusinessName  string         `json:"businessName,omitempty"`
	Role          user.Role      `json:"role"`
	TaxRegistered bool           `json:"taxRegistered"`
	TaxID         string         `json:"taxId,omitempty"`
	Addresses     []user.Address `json:"addresses"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func newUser(u *user.User) User {
	addrs := u.Addresses
	if addrs == nil {
		addrs = []user.Address{}
	}
	return User{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		BusinessName:  u.BusinessName,
		Role:          u.Role,
		TaxRegistered: u.TaxRegistered,
		TaxID:         u.TaxID,
		Addresses:     addrs,
		CreatedAt:     u.CreatedAt,
	}
}

// Session is returned by register and login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Product is a catalog entry. Price is the caller's role price and is only
// present for signed in callers.
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Brand       string           `json:"brand"`
	Grade       string           `json:"grade"`
	BasePrice   decimal.Decimal  `json:"basePrice"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Image       string           `json:"image,omitempty"`
	MinQuantity int              `json:"minQuantity"`
	Stock       int              `json:"stock"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func newProduct(p *product.Product) Product {
	return Product{
		ID:          p.ID,
		Name:        p.Name(),
		Brand:       p.Brand,
		Grade:       p.Grade,
		BasePrice:   p.BasePrice,
		Image:       p.Image,
		MinQuantity: p.MinQuantity,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
	}
}

// ProductInput is the admin create and update body.
type ProductInput struct {
	Brand       string          `json:"brand"`
	Grade       string          `json:"grade"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Image       string          `json:"image"`
	MinQuantity int             `json:"minQuantity"`
	Stock       int             `json:"stock"`
}

func (in ProductInput) product(id string) product.Product {
	return product.Product{
		ID:          id,
		Brand:       in.Brand,
		Grade:       in.Grade,
		BasePrice:   in.BasePrice,
		Image:       in.Image,
		MinQuantity: in.MinQuantity,
		Stock:       in.Stock,
	}
}

// Cart is the caller's cart with its pre-tax subtotal.
type Cart struct {
	Items     []pricing.LineItem `json:"items"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
}

func newCart(c *cart.Cart) Cart {
	out := Cart{Items: c.Items, Subtotal: decimal.Zero}
	if out.Items == nil {
		out.Items = []pricing.LineItem{}
	}
	for _, item := range c.Items {
		out.Subtotal = out.Subtotal.Add(item.Amount())
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Driver is the dispatch record of an order.
type Driver struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Vehicle string `json:"vehicleNumber"`
}

// Order is a placed order.
type Order struct {
	ID               string                `json:"id"`
	Number           string                `json:"number"`
	BuyerID          string                `json:"buyerId"`
	Items            []pricing.LineItem    `json:"items"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	Tax              decimal.Decimal       `json:"taxAmount"`
	Surcharge        decimal.Decimal       `json:"surchargeAmount"`
	Total            decimal.Decimal       `json:"totalAmount"`
	PaymentMethod    pricing.PaymentMethod `json:"paymentMethod"`
	PaymentStatus    order.PaymentStatus   `json:"paymentStatus"`
	TransactionRef   string                `json:"transactionRef,omitempty"`
	DeliveryAddress  user.Address          `json:"deliveryAddress"`
	Driver           *Driver               `json:"driver,omitempty"`
	DeliveryStatus   order.DeliveryStatus  `json:"deliveryStatus"`
	InvoiceAvailable bool                  `json:"invoiceAvailable"`
	CreatedAt        time.Time             `json:"createdAt"`
}

func newOrder(o *order.Order) Order {
	out := Order{
		ID:               o.ID,
		Number:           o.Number(),
		BuyerID:          o.BuyerID,
		Items:            o.Items,
		Subtotal:         o.Subtotal,
		Tax:              o.Tax,
		Surcharge:        o.Surcharge,
		Total:            o.Total,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		TransactionRef:   o.TransactionRef,
		DeliveryAddress:  o.DeliveryAddress,
		DeliveryStatus:   o.DeliveryStatus,
		InvoiceAvailable: o.Invoiced(),
		CreatedAt:        o.CreatedAt,
	}
	if o.Driver != nil {
		out.Driver = &Driver{Name: o.Driver.Name, Mobile: o.Driver.Mobile, Vehicle: o.Driver.Vehicle}
	}
	return out
}

// Notification is a composed message ready to forward by hand.
type Notification struct {
	Event     order.Event `json:"event"`
	OrderID   string      `json:"orderId"`
	Recipient string      `json:"recipient"`
	Text      string      `json:"text"`
	Link      string      `json:"link,omitempty"`
}

// RequestOrder is a bulk enquiry.
type RequestOrder struct {
	ID               string              `json:"id"`
	UserID           string              `json:"userId"`
	Brand            string              `json:"brand"`
	Quantity         int                 `json:"quantity"`
	DeliveryLocation string              `json:"deliveryLocation"`
	Phone            string              `json:"phone"`
	PreferredDate    string              `json:"preferredDate,omitempty"`
	Status           requestorder.Status `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
}

func newRequestOrder(r *requestorder.RequestOrder) RequestOrder {
	return RequestOrder{
		ID:               r.ID,
		UserID:           r.UserID,
		Brand:            r.Brand,
		Quantity:         r.Quantity,
		DeliveryLocation: r.DeliveryLocation,
		Phone:            r.Phone,
		PreferredDate:    r.PreferredDate,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
}

// mapSlice converts every element of in with fn.
func mapSlice[In, Out any](in []In, fn func(*In) Out) []Out {
	out := make([]Out, len(in))
	for i := range in {
		out[i] = fn(&in[i])
	}
	return out
}
