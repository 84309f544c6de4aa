package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/common"
)

// Handler exposes order endpoints. Customer routes are owner-scoped; Status
// is admin only and must sit behind the role middleware.
type Handler struct {
	Service *Service
}

// Create handles POST /api/v1/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	created, err := h.Service.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, created)
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	status := Status(r.URL.Query().Get("status"))
	orders, total, err := h.Service.List(r.Context(), userID, status, perPage, (page-1)*perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestOrderID(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

// Cancel handles PUT /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestOrderID(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Cancel(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

type statusRequest struct {
	Status Status `json:"status"`
}

// Status handles PUT /api/v1/orders/{id}/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := requestOrderID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	if req.Status == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "status is required", nil)
		return
	}
	o, err := h.Service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

func requestUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func requestOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONAppError(w, appErr)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
}
