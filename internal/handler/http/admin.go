package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/weathermate/server/internal/service"
	"github.com/weathermate/server/pkg/httputil"
	"github.com/weathermate/server/pkg/validator"
)

// AdminHandler handles operator endpoints for session management.
type AdminHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// RevokeSessionRequest targets one session of one user.
type RevokeSessionRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	SessionID string `json:"session_id" validate:"required"`
	Reason    string `json:"reason" validate:"omitempty,max=200"`
}

// RevokeUserSessionsRequest targets every session of one user.
type RevokeUserSessionsRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

// RevokeSession handles POST /api/admin/sessions/revoke
func (h *AdminHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	var req RevokeSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.AdminRevokeSession(r.Context(), req.UserID, req.SessionID, req.Reason); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "session revoked"})
}

// RevokeUserSessions handles POST /api/admin/users/revoke-sessions
func (h *AdminHandler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	var req RevokeUserSessionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	n, err := h.service.AdminRevokeUserSessions(r.Context(), req.UserID, req.Reason)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "sessions revoked",
		"revoked_sessions": n,
	})
}

// ListUserSessions handles GET /api/admin/users/{id}/sessions?page=&per_page=
func (h *AdminHandler) ListUserSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	page, perPage := pagination(r)

	sessions, total, err := h.service.ListUserSessions(r.Context(), id.String(), perPage, (page-1)*perPage)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, httputil.NewPaginatedResponse(sessions, total, page, perPage))
}

func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
