package clients

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/common"
)

// Handler exposes the customer directory over HTTP.
type Handler struct {
	Service *Service
}

// Routes mounts the client endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/clients", h.search)
	r.Post("/clients", h.quickAdd)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	found, err := h.Service.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeClientError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": found})
}

func (h *Handler) quickAdd(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	created, err := h.Service.QuickAdd(r.Context(), in.Name)
	if err != nil {
		if errors.Is(err, ErrEmptyName) {
			common.JSONError(w, http.StatusUnprocessableEntity, "NAME_REQUIRED", "veuillez saisir un nom", nil)
			return
		}
		writeClientError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

func writeClientError(w http.ResponseWriter, err error) {
	if errors.Is(err, backend.ErrUnavailable) {
		common.JSONError(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "le serveur est injoignable", nil)
		return
	}
	var verr *backend.ValidationError
	if errors.As(err, &verr) {
		common.JSONError(w, http.StatusUnprocessableEntity, "BACKEND_REJECTED", verr.Message, verr.Fields)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "CLIENTS_FAILED", "could not reach the customer directory", nil)
}
