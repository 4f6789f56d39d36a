package till

import (
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler exposes the till float over HTTP.
type Handler struct {
	Store *Store
}

// List renders the current denomination inventory, descending by value.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "till store not configured", nil)
		return
	}
	denoms, err := h.Store.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load denominations", nil)
		return
	}
	if denoms == nil {
		denoms = []Denomination{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": denoms})
}
