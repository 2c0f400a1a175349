package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/cart"
	"github.com/gero-pdv/caisse/internal/common"
)

// Handler exposes checkout, follow-up payments and receipts over HTTP.
type Handler struct {
	Service  *Service
	Sessions *cart.Registry
}

// Routes mounts the checkout endpoints on a session-scoped router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions/{sessionID}/checkout", h.checkout)
	r.Post("/sessions/{sessionID}/payments", h.addPayment)
	r.Get("/orders/{orderID}/ticket", h.ticket)
	r.Get("/comptes", h.comptes)
	r.Get("/methodes-paiement", h.methodesPaiement)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *cart.Session {
	id := chi.URLParam(r, "sessionID")
	s, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil)
		} else {
			common.JSONError(w, http.StatusInternalServerError, "SESSION_LOAD_FAILED", "could not load session", nil)
		}
		return nil
	}
	return s
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	out, err := h.Service.Create(r.Context(), s, in)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, out)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	status, err := h.Service.AddPayment(r.Context(), s, in)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"order": status})
}

func (h *Handler) ticket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.Ticket(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ticket})
}

func (h *Handler) comptes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Service.Backend.Comptes(r.Context())
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) methodesPaiement(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Service.Backend.MethodesPaiement(r.Context())
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// writeCheckoutError maps domain and backend failures onto API responses.
// Backend field validation errors keep their field map so the till can
// surface them next to the corresponding inputs.
func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_EMPTY", "le panier est vide", nil)
	case errors.Is(err, ErrNoClient):
		common.JSONError(w, http.StatusUnprocessableEntity, "CLIENT_REQUIRED", "veuillez sélectionner un client", nil)
	case errors.Is(err, ErrNoOrder):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_ORDER", "aucune commande à compléter", nil)
	case errors.Is(err, backend.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "le serveur est injoignable", nil)
	default:
		var verr *backend.ValidationError
		if errors.As(err, &verr) {
			common.JSONError(w, http.StatusUnprocessableEntity, "BACKEND_REJECTED", verr.Message, verr.Fields)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "CHECKOUT_FAILED", err.Error(), nil)
	}
}
