package handler

import (
	"net/http"

	"github.com/xenking/cemention/internal/auth"
	"github.com/xenking/cemention/internal/domain/user"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	BusinessName string `json:"businessName"`
	Role         string `json:"role"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, token, err := h.accounts.Register(r.Context(), auth.RegisterRequest{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Phone:        req.Phone,
		BusinessName: req.BusinessName,
		Role:         req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Session{Token: token, User: newUser(u)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Session{Token: token, User: newUser(u)})
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request, caller *user.User) {
	writeJSON(w, http.StatusOK, newUser(caller))
}

type profileRequest struct {
	Name          *string        `json:"name"`
	Phone         *string        `json:"phone"`
	BusinessName  *string        `json:"businessName"`
	TaxRegistered *bool          `json:"taxRegistered"`
	TaxID         *string        `json:"taxId"`
	Addresses     []user.Address `json:"addresses"`
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), caller.ID, user.ProfileUpdate{
		Name:          req.Name,
		Phone:         req.Phone,
		BusinessName:  req.BusinessName,
		TaxRegistered: req.TaxRegistered,
		TaxID:         req.TaxID,
		Addresses:     req.Addresses,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUser(u))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request, caller *user.User) {
	users, err := h.users.List(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(users, newUser))
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request, caller *user.User) {
	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.ChangeRole(r.Context(), caller, r.PathValue("id"), role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUser(u))
}
