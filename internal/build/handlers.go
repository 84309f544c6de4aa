package build

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/common"
)

// Handler exposes build endpoints. All routes are owner-scoped and must sit
// behind the auth middleware.
type Handler struct {
	Service *Service
}

// Create handles POST /api/v1/builds.
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

// List handles GET /api/v1/builds.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	builds, total, err := h.Service.List(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       builds,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/builds/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestBuildID(w, r)
	if !ok {
		return
	}
	b, err := h.Service.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, b)
}

// Replace handles PUT /api/v1/builds/{id}.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestBuildID(w, r)
	if !ok {
		return
	}
	var req ReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	updated, err := h.Service.Replace(r.Context(), userID, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/builds/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestBuildID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"ok": true}})
}

type colorRequest struct {
	Color   string `json:"color"`
	Version int64  `json:"version"`
}

type versionRequest struct {
	Version int64 `json:"version"`
}

// SelectColor handles PUT /api/v1/builds/{id}/color.
func (h *Handler) SelectColor(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestBuildID(w, r)
	if !ok {
		return
	}
	var req colorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	updated, err := h.Service.SelectColor(r.Context(), userID, id, req.Color, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, updated)
}

// ToggleOption handles PUT /api/v1/builds/{id}/options/{optionId}.
func (h *Handler) ToggleOption(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestBuildID(w, r)
	if !ok {
		return
	}
	optionID, err := uuid.Parse(chi.URLParam(r, "optionId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid option id", nil)
		return
	}
	var req versionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	updated, err := h.Service.ToggleOption(r.Context(), userID, id, optionID, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, updated)
}

// TogglePackage handles PUT /api/v1/builds/{id}/packages/{packageId}.
func (h *Handler) TogglePackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id, ok := requestBuildID(w, r)
	if !ok {
		return
	}
	packageID, err := uuid.Parse(chi.URLParam(r, "packageId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid package id", nil)
		return
	}
	var req versionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	updated, err := h.Service.TogglePackage(r.Context(), userID, id, packageID, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, updated)
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

func requestBuildID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid build id", nil)
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
