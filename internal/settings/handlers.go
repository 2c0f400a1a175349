package settings

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gero-pdv/caisse/internal/common"
)

// Handler exposes the feature flags over HTTP.
type Handler struct {
	Service *Service
}

// Routes mounts the settings endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings/{feature}", h.set)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	f, err := h.Service.Get(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SETTINGS_FAILED", "could not load settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": f})
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	f, err := h.Service.Set(r.Context(), chi.URLParam(r, "feature"), in.Enabled)
	if err != nil {
		if errors.Is(err, ErrUnknownFeature) {
			common.JSONError(w, http.StatusNotFound, "UNKNOWN_FEATURE", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "SETTINGS_FAILED", "could not save settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": f})
}
