package handler

import (
	"net/http"

	"github.com/xenking/cemention/internal/domain/user"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, caller *user.User) {
	c, err := h.carts.Get(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCart(c))
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req cartItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.Add(r.Context(), caller, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCart(c))
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request, caller *user.User) {
	c, err := h.carts.Remove(r.Context(), caller, r.PathValue("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCart(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, caller *user.User) {
	if err := h.carts.Clear(r.Context(), caller); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
