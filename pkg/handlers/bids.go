package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// BidHandler handles generated bids and their review.
type BidHandler struct {
	bids   services.BidService
	logger *zap.Logger
}

// NewBidHandler creates a new bid handler.
func NewBidHandler(bids services.BidService, logger *zap.Logger) *BidHandler {
	return &BidHandler{bids: bids, logger: logger}
}

// RegisterRoutes registers the bid handler's routes on the given mux.
func (h *BidHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/bids"

	mux.HandleFunc("GET "+base, protect(authMiddleware, tenantMiddleware, h.List))
	mux.HandleFunc("GET "+base+"/{id}", protect(authMiddleware, tenantMiddleware, h.Get))
	mux.HandleFunc("PUT "+base+"/{id}/review", protect(authMiddleware, tenantMiddleware, h.Review))
}

// List handles GET /api/bids
func (h *BidHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, h.logger)
	if !ok {
		return
	}

	bids, err := h.bids.List(r.Context(), caller, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newListResponse(bids, page), h.logger)
}

// Get handles GET /api/bids/{id}
func (h *BidHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	bid, err := h.bids.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, bid, h.logger)
}

// Review handles PUT /api/bids/{id}/review
func (h *BidHandler) Review(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req services.ReviewInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	bid, err := h.bids.Review(r.Context(), caller, id, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, bid, h.logger)
}
