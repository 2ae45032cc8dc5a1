package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/rbac"
)

type InvitationHandler struct {
	invitations *invitation.Service
	logger      *slog.Logger
}

func NewInvitationHandler(invitations *invitation.Service, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, logger: logger}
}

// Create handles POST /api/v1/invitations
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	inv, err := h.invitations.Create(r.Context(), invitation.CreateInput{
		Email:           req.Email,
		Role:            rbac.Role(req.Role),
		InvitedByUserID: middleware.GetUserID(r.Context()),
		Message:         req.Message,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create invitation")
		return
	}

	resp := dto.NewInvitationDTO(inv)
	resp.Token = inv.Token
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/v1/invitations
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.InvitationStatus(strings.ToUpper(r.URL.Query().Get("status")))
	switch status {
	case "", models.InvitationPending, models.InvitationAccepted, models.InvitationDeclined,
		models.InvitationExpired, models.InvitationCanceled:
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status filter"})
		return
	}

	invitations, err := h.invitations.ListForOrganization(r.Context(), middleware.GetOrganizationID(r.Context()), status)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list invitations")
		return
	}
	writeJSON(w, http.StatusOK, toInvitationDTOs(invitations))
}

// Mine handles GET /api/v1/invitations/mine
func (h *InvitationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitations.ListForEmail(r.Context(), middleware.GetUserEmail(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list invitations")
		return
	}
	writeJSON(w, http.StatusOK, toInvitationDTOs(invitations))
}

// Cancel handles DELETE /api/v1/invitations/{id}
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid invitation ID")
	if !ok {
		return
	}

	if err := h.invitations.Cancel(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "Failed to cancel invitation")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invitation canceled"})
}

// Resolve handles GET /api/v1/invitations/token/{token}
func (h *InvitationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invitations.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load invitation")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewInvitationDTO(inv))
}

// Accept handles POST /api/v1/invitations/token/{token}/accept
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	m, err := h.invitations.Accept(r.Context(), chi.URLParam(r, "token"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to accept invitation")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Decline handles POST /api/v1/invitations/token/{token}/decline
func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if err := h.invitations.Decline(r.Context(), chi.URLParam(r, "token")); err != nil {
		writeServiceError(w, h.logger, err, "Failed to decline invitation")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invitation declined"})
}

func toInvitationDTOs(invitations []models.Invitation) []dto.InvitationDTO {
	out := make([]dto.InvitationDTO, len(invitations))
	for i := range invitations {
		out[i] = dto.NewInvitationDTO(&invitations[i])
	}
	return out
}
