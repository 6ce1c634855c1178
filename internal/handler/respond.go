package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cemention/internal/auth"
	"github.com/xenking/cemention/internal/domain/cart"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/quantity"
	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
)

const maxBodyBytes = 1 << 20

// errBadBody is returned for bodies that are not valid JSON.
var errBadBody = errors.New("invalid request body")

// Error is the body of every non-2xx JSON response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Order is set when a payment was recorded but its invoice failed.
	Order *Order `json:"order,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

// writeError maps err to a status code and writes it. Unexpected errors are
// logged and reported as 500 without their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request error", zap.Error(err))
		msg = http.StatusText(code)
	}
	writeJSON(w, code, Error{Code: code, Message: msg})
}

// writeOrderError is writeError for calls that may fail after the order was
// already changed. An invoice failure still returns the updated order.
func writeOrderError(w http.ResponseWriter, r *http.Request, o *order.Order, err error) {
	var invoiceErr *order.InvoiceError
	if o == nil || !errors.As(err, &invoiceErr) {
		writeError(w, r, err)
		return
	}
	zctx.From(r.Context()).Warn("Invoice generation failed",
		zap.String("order_id", o.ID),
		zap.Error(err),
	)
	body := newOrder(o)
	writeJSON(w, http.StatusBadGateway, Error{
		Code:    http.StatusBadGateway,
		Message: "payment recorded, invoice generation failed; retry confirmation",
		Order:   &body,
	})
}

func errorStatus(err error) int {
	switch {
	case isA[*order.InvoiceError](err):
		return http.StatusBadGateway
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, user.ErrForbidden),
		errors.Is(err, product.ErrForbidden),
		errors.Is(err, requestorder.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, requestorder.ErrNotFound),
		errors.Is(err, cart.ErrItemNotInCart):
		return http.StatusNotFound
	case errors.Is(err, order.ErrNotYetGenerated),
		errors.Is(err, order.ErrConcurrentUpdate),
		errors.Is(err, order.ErrAlreadyExists),
		errors.Is(err, user.ErrEmailTaken),
		isA[*order.TransitionError](err):
		return http.StatusConflict
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrMissingAddress),
		isA[*quantity.RuleViolationError](err),
		isA[*order.InvalidQuantityError](err),
		isA[*order.ProductNotFoundError](err),
		isA[*order.InvalidDriverError](err),
		isA[*order.InvalidStatusError](err),
		isA[*pricing.InvalidPaymentMethodError](err),
		isA[*cart.InvalidQuantityError](err),
		isA[*user.InvalidTaxIDError](err),
		isA[*user.InvalidRoleError](err),
		isA[*user.InvalidAddressError](err),
		isA[*auth.InvalidFieldError](err),
		isA[*product.InvalidProductError](err),
		isA[*requestorder.InvalidRequestError](err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isA[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
