package quote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/motorcraft/backend-configurator/internal/common"
)

// Handler exposes the price quote endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Price handles POST /api/v1/configurator/price.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	result, err := h.service.Price(r.Context(), req)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONAppError(w, appErr)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		return
	}
	common.JSONData(w, http.StatusOK, result)
}
