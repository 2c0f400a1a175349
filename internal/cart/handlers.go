package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gero-pdv/caisse/internal/common"
	"github.com/gero-pdv/caisse/internal/pricing"
	"github.com/gero-pdv/caisse/internal/settings"
)

// Handler exposes cart sessions over HTTP. Price editing and reductions are
// store policies, enforced here rather than in the engine.
type Handler struct {
	Sessions *Registry
	Flags    *settings.Service
	Logger   zerolog.Logger
}

// Routes mounts the session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.create)
	r.Get("/sessions/{sessionID}", h.get)
	r.Delete("/sessions/{sessionID}", h.delete)
	r.Post("/sessions/{sessionID}/lines", h.addLine)
	r.Delete("/sessions/{sessionID}/lines/{productID}", h.removeLine)
	r.Put("/sessions/{sessionID}/lines/{productID}/quantity", h.setQuantity)
	r.Put("/sessions/{sessionID}/lines/{productID}/price", h.setPrice)
	r.Put("/sessions/{sessionID}/lines/{productID}/reduction", h.setLineReduction)
	r.Put("/sessions/{sessionID}/reduction", h.setGlobalReduction)
	r.Put("/sessions/{sessionID}/order-type", h.setOrderType)
	r.Put("/sessions/{sessionID}/client", h.setClient)
	r.Delete("/sessions/{sessionID}/client", h.clearClient)
	r.Post("/sessions/{sessionID}/clear", h.clear)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Create(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", "could not create session", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{"sessionId": s.ID, "cart": s.Snapshot()},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Snapshot()})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SESSION_DELETE_FAILED", "could not delete session", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := common.DecodeJSON(r, &p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if p.ID == "" {
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_REQUIRED", "product id is required", nil)
		return
	}
	h.mutate(w, r, func(c *Cart) error {
		c.AddLine(p)
		return nil
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	h.mutate(w, r, func(c *Cart) error {
		c.RemoveLine(productID)
		return nil
	})
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	productID := chi.URLParam(r, "productID")
	h.mutate(w, r, func(c *Cart) error {
		c.SetQuantity(productID, in.Quantity)
		return nil
	})
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, settings.FeaturePriceEditing) {
		return
	}
	var in struct {
		Price float64 `json:"price"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	productID := chi.URLParam(r, "productID")
	h.mutate(w, r, func(c *Cart) error {
		c.SetUnitPrice(productID, in.Price)
		return nil
	})
}

func (h *Handler) setLineReduction(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, settings.FeatureReductions) {
		return
	}
	var in pricing.Reduction
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	productID := chi.URLParam(r, "productID")
	h.mutate(w, r, func(c *Cart) error {
		c.SetLineReduction(productID, in)
		return nil
	})
}

func (h *Handler) setGlobalReduction(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, settings.FeatureReductions) {
		return
	}
	var in struct {
		Percent float64 `json:"percent"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	h.mutate(w, r, func(c *Cart) error {
		c.SetGlobalReduction(in.Percent)
		return nil
	})
}

func (h *Handler) setOrderType(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type OrderType `json:"type"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if in.Type != OrderSale && in.Type != OrderReturn {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_ORDER_TYPE", "type must be sale or return", nil)
		return
	}
	h.mutate(w, r, func(c *Cart) error {
		c.SetOrderType(in.Type)
		return nil
	})
}

func (h *Handler) setClient(w http.ResponseWriter, r *http.Request) {
	var in Client
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if in.ID == 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "CLIENT_REQUIRED", "client id is required", nil)
		return
	}
	h.mutate(w, r, func(c *Cart) error {
		c.SetClient(in)
		return nil
	})
}

func (h *Handler) clearClient(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) error {
		c.ClearClient()
		return nil
	})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *Session {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil)
		} else {
			common.JSONError(w, http.StatusInternalServerError, "SESSION_LOAD_FAILED", "could not load session", nil)
		}
		return nil
	}
	return s
}

// mutate applies fn to the session cart and responds with the new snapshot.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*Cart) error) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	snap, err := h.Sessions.Update(r.Context(), s, fn)
	if err != nil {
		h.Logger.Error().Err(err).Str("session_id", s.ID).Msg("cart mutation failed")
		common.JSONError(w, http.StatusInternalServerError, "CART_UPDATE_FAILED", "could not update cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// allowed checks a store policy flag, replying 403 when the feature is off.
// A settings read failure fails open: the till must keep selling.
func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, feature string) bool {
	if h.Flags == nil {
		return true
	}
	f, err := h.Flags.Get(r.Context())
	if err != nil {
		h.Logger.Warn().Err(err).Msg("settings read failed, allowing action")
		return true
	}
	enabled := true
	switch feature {
	case settings.FeaturePriceEditing:
		enabled = f.PriceEditing
	case settings.FeatureReductions:
		enabled = f.Reductions
	}
	if !enabled {
		common.JSONError(w, http.StatusForbidden, "FEATURE_DISABLED", "this action is disabled on this terminal", nil)
	}
	return enabled
}
