package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/user"
)

type createOrderRequest struct {
	// OrderID is an optional idempotency key chosen by the client.
	OrderID         string        `json:"orderId"`
	PaymentMethod   string        `json:"paymentMethod"`
	TransactionRef  string        `json:"transactionRef"`
	DeliveryAddress *user.Address `json:"deliveryAddress"`
}

// createOrder places an order for the caller's cart.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.Get(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	create := order.CreateRequest{
		OrderID:        req.OrderID,
		Items:          c.Items,
		PaymentMethod:  pricing.PaymentMethod(req.PaymentMethod),
		TransactionRef: req.TransactionRef,
	}
	if req.DeliveryAddress != nil {
		create.DeliveryAddress = *req.DeliveryAddress
	}
	res, err := h.orders.CreateOrder(r.Context(), caller, create)
	if err != nil {
		writeError(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, newOrder(res.Order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, caller *user.User) {
	orders, err := h.orders.List(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(orders, newOrder))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, caller *user.User) {
	o, err := h.orders.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrder(o))
}

type paymentRequest struct {
	// Status defaults to received.
	Status         string `json:"status"`
	TransactionRef string `json:"transactionRef"`
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req paymentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")

	var (
		o   *order.Order
		err error
	)
	if req.Status == "" {
		o, err = h.orders.ConfirmPayment(r.Context(), caller, id, req.TransactionRef)
	} else {
		var status order.PaymentStatus
		if status, err = order.ParsePaymentStatus(req.Status); err != nil {
			writeError(w, r, err)
			return
		}
		o, err = h.orders.UpdatePaymentStatus(r.Context(), caller, id, status, req.TransactionRef)
	}
	if err != nil {
		writeOrderError(w, r, o, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrder(o))
}

type driverRequest struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Vehicle string `json:"vehicleNumber"`
}

func (h *Handler) assignDriver(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req driverRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.AssignDriver(r.Context(), caller, r.PathValue("id"), order.Driver{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Vehicle: req.Vehicle,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrder(o))
}

type deliveryRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateDelivery(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req deliveryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := order.ParseDeliveryStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateDeliveryStatus(r.Context(), caller, r.PathValue("id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrder(o))
}

// invoice streams the stored PDF.
func (h *Handler) invoice(w http.ResponseWriter, r *http.Request, caller *user.User) {
	id := r.PathValue("id")
	doc, err := h.orders.FetchInvoice(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	number := (&order.Order{ID: id}).Number()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, number))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *Handler) notification(w http.ResponseWriter, r *http.Request, caller *user.User) {
	event, err := order.ParseEvent(r.PathValue("event"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.orders.ComposeNotification(r.Context(), caller, r.PathValue("id"), event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Notification{
		Event:     msg.Event,
		OrderID:   msg.OrderID,
		Recipient: msg.Recipient,
		Text:      msg.Text,
		Link:      msg.Link,
	})
}
