package handler

import (
	"net/http"

	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
)

type requestOrderRequest struct {
	Brand            string `json:"brand"`
	Quantity         int    `json:"quantity"`
	DeliveryLocation string `json:"deliveryLocation"`
	Phone            string `json:"phone"`
	PreferredDate    string `json:"preferredDate"`
}

func (h *Handler) createRequestOrder(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req requestOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	phone := req.Phone
	if phone == "" {
		phone = caller.Phone
	}
	ro, err := h.enquiries.Create(r.Context(), caller, requestorder.CreateRequest{
		Brand:            req.Brand,
		Quantity:         req.Quantity,
		DeliveryLocation: req.DeliveryLocation,
		Phone:            phone,
		PreferredDate:    req.PreferredDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRequestOrder(ro))
}

func (h *Handler) listRequestOrders(w http.ResponseWriter, r *http.Request, caller *user.User) {
	list, err := h.enquiries.List(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newRequestOrder))
}

type requestOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateRequestOrder(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req requestOrderStatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := requestorder.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.enquiries.UpdateStatus(r.Context(), caller, r.PathValue("id"), status); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
