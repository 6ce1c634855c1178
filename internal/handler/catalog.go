package handler

import (
	"net/http"

	"github.com/xenking/cemention/internal/domain/user"
)

// listProducts is public. Signed in callers also get their role price.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller := h.optionalCaller(r)

	out := make([]Product, len(products))
	for i := range products {
		out[i] = newProduct(&products[i])
		if caller != nil && h.pricing != nil {
			price := h.pricing.UnitPrice(products[i].BasePrice, caller.Role)
			out[i].Price = &price
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var in ProductInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), caller, in.product(""))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProduct(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var in ProductInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), caller, in.product(r.PathValue("id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProduct(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request, caller *user.User) {
	if err := h.catalog.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
