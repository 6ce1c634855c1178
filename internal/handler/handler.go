// Package handler exposes the order backend as a JSON API under /api.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/cemention/internal/auth"
	"github.com/xenking/cemention/internal/domain/cart"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
)

// Accounts registers, logs in and authenticates users.
type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*user.User, string, error)
	Login(ctx context.Context, email, password string) (*user.User, string, error)
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// Users manages profiles and roles.
type Users interface {
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (*user.User, error)
	List(ctx context.Context, caller *user.User) ([]user.User, error)
	ChangeRole(ctx context.Context, caller *user.User, id string, role user.Role) (*user.User, error)
}

// Catalog lists and edits products.
type Catalog interface {
	List(ctx context.Context) ([]product.Product, error)
	Create(ctx context.Context, caller *user.User, p product.Product) (*product.Product, error)
	Update(ctx context.Context, caller *user.User, p product.Product) (*product.Product, error)
	Delete(ctx context.Context, caller *user.User, id string) error
}

// Carts manages the caller's cart.
type Carts interface {
	Get(ctx context.Context, buyer *user.User) (*cart.Cart, error)
	Add(ctx context.Context, buyer *user.User, productID string, quantity int) (*cart.Cart, error)
	Remove(ctx context.Context, buyer *user.User, productID string) (*cart.Cart, error)
	Clear(ctx context.Context, buyer *user.User) error
}

// Orders drives the order lifecycle.
type Orders interface {
	CreateOrder(ctx context.Context, buyer *user.User, req order.CreateRequest) (*order.CreateResult, error)
	Get(ctx context.Context, caller *user.User, id string) (*order.Order, error)
	List(ctx context.Context, caller *user.User) ([]order.Order, error)
	ConfirmPayment(ctx context.Context, caller *user.User, id, txnRef string) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, caller *user.User, id string, to order.PaymentStatus, txnRef string) (*order.Order, error)
	AssignDriver(ctx context.Context, caller *user.User, id string, d order.Driver) (*order.Order, error)
	UpdateDeliveryStatus(ctx context.Context, caller *user.User, id string, status order.DeliveryStatus) (*order.Order, error)
	FetchInvoice(ctx context.Context, caller *user.User, id string) ([]byte, error)
	ComposeNotification(ctx context.Context, caller *user.User, id string, event order.Event) (order.Message, error)
}

// Enquiries handles bulk request orders.
type Enquiries interface {
	Create(ctx context.Context, buyer *user.User, req requestorder.CreateRequest) (*requestorder.RequestOrder, error)
	List(ctx context.Context, caller *user.User) ([]requestorder.RequestOrder, error)
	UpdateStatus(ctx context.Context, caller *user.User, id string, status requestorder.Status) error
}

var (
	_ Accounts  = (*auth.Service)(nil)
	_ Users     = (*user.Service)(nil)
	_ Catalog   = (*product.Service)(nil)
	_ Carts     = (*cart.Service)(nil)
	_ Orders    = (*order.Service)(nil)
	_ Enquiries = (*requestorder.Service)(nil)
)

// Deps are the services behind the API.
type Deps struct {
	Accounts  Accounts
	Users     Users
	Catalog   Catalog
	Carts     Carts
	Orders    Orders
	Enquiries Enquiries
	// Pricing quotes role prices in the catalog for signed in callers.
	Pricing *pricing.Engine
}

// Handler serves the API routes.
type Handler struct {
	accounts  Accounts
	users     Users
	catalog   Catalog
	carts     Carts
	orders    Orders
	enquiries Enquiries
	pricing   *pricing.Engine
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		accounts:  deps.Accounts,
		users:     deps.Users,
		catalog:   deps.Catalog,
		carts:     deps.Carts,
		orders:    deps.Orders,
		enquiries: deps.Enquiries,
		pricing:   deps.Pricing,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("GET /api/auth/me", h.authed(h.me))
	mux.HandleFunc("PUT /api/auth/me", h.authed(h.updateMe))

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/products", h.authed(h.createProduct))
	mux.HandleFunc("PUT /api/products/{id}", h.authed(h.updateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", h.authed(h.deleteProduct))

	mux.HandleFunc("GET /api/cart", h.authed(h.getCart))
	mux.HandleFunc("POST /api/cart", h.authed(h.addToCart))
	mux.HandleFunc("DELETE /api/cart/{productId}", h.authed(h.removeFromCart))
	mux.HandleFunc("DELETE /api/cart", h.authed(h.clearCart))

	mux.HandleFunc("POST /api/orders", h.authed(h.createOrder))
	mux.HandleFunc("GET /api/orders", h.authed(h.listOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.authed(h.getOrder))
	mux.HandleFunc("PUT /api/orders/{id}/payment", h.authed(h.updatePayment))
	mux.HandleFunc("PUT /api/orders/{id}/driver", h.authed(h.assignDriver))
	mux.HandleFunc("PUT /api/orders/{id}/delivery", h.authed(h.updateDelivery))
	mux.HandleFunc("GET /api/orders/{id}/invoice", h.authed(h.invoice))
	mux.HandleFunc("GET /api/orders/{id}/notifications/{event}", h.authed(h.notification))

	mux.HandleFunc("POST /api/request-orders", h.authed(h.createRequestOrder))
	mux.HandleFunc("GET /api/request-orders", h.authed(h.listRequestOrders))
	mux.HandleFunc("PUT /api/request-orders/{id}", h.authed(h.updateRequestOrder))

	mux.HandleFunc("GET /api/admin/users", h.authed(h.listUsers))
	mux.HandleFunc("PUT /api/admin/users/{id}/role", h.authed(h.changeRole))
}
