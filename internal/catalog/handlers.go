package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/common"
)

// Handler exposes the product catalog over HTTP.
type Handler struct {
	Service *Service
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/articles", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	search := r.URL.Query().Get("search")

	products, err := h.Service.Search(r.Context(), search, page)
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			common.JSONError(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "le serveur est injoignable", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "CATALOG_FAILED", "could not load catalog", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}
