package server

import (
	"net/http"
	"strings"

	"github.com/tomwolfe/storefront/internal/httputil"
	"github.com/tomwolfe/storefront/internal/store"
)

type inventorySyncRequest struct {
	Items []inventorySyncItem `json:"items"`
}

type inventorySyncItem struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// handleInventorySync applies restock levels from the external restocking
// process. The route bypasses the gate, so the shared secret is checked
// here; restocks mutate the same rows reservations decrement.
func (s *Server) handleInventorySync(w http.ResponseWriter, r *http.Request) {
	if !s.gate.secretMatches(r.Header.Get(InternalKeyHeader)) {
		httputil.RespondError(w, http.StatusUnauthorized, "valid internal system key required for inventory sync")
		return
	}

	var req inventorySyncRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondErrorf(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if len(req.Items) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	levels := make([]store.StockLevel, 0, len(req.Items))
	for _, item := range req.Items {
		storeID := strings.TrimSpace(item.StoreID)
		productID := strings.TrimSpace(item.ProductID)
		if storeID == "" || productID == "" {
			httputil.RespondError(w, http.StatusBadRequest, "store_id and product_id are required for every item")
			return
		}
		if item.Quantity < 0 {
			httputil.RespondErrorf(w, http.StatusBadRequest, "quantity for (%s, %s) must be non-negative", storeID, productID)
			return
		}
		levels = append(levels, store.StockLevel{
			StoreID:   storeID,
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	if err := s.store.UpsertStock(r.Context(), levels); err != nil {
		s.logger.Error().Err(err).Msg("inventory sync failed")
		httputil.RespondError(w, http.StatusInternalServerError, "inventory sync failed")
		return
	}

	s.logger.Info().Int("items", len(levels)).Msg("inventory sync applied")
	httputil.RespondJSON(w, http.StatusOK, map[string]int{"updated": len(levels)})
}
