package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/organization"
	"github.com/hugh/go-equip/internal/rbac"
)

type OrganizationHandler struct {
	orgs   *organization.Service
	logger *slog.Logger
}

func NewOrganizationHandler(orgs *organization.Service, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, logger: logger}
}

// List handles GET /api/v1/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.orgs.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list organizations")
		return
	}

	response := make([]dto.OrganizationDTO, len(memberships))
	for i, m := range memberships {
		org := dto.NewOrganizationDTO(&m.Organization)
		org.Role = string(m.Role)
		org.Current = m.Current
		response[i] = *org
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	org, err := h.orgs.Create(r.Context(), middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create organization")
		return
	}

	resp := dto.NewOrganizationDTO(org)
	resp.Role = string(rbac.RoleAdministrator)
	resp.Current = true
	writeJSON(w, http.StatusCreated, resp)
}

// Current handles GET /api/v1/organizations/current
func (h *OrganizationHandler) Current(w http.ResponseWriter, r *http.Request) {
	org, role, err := h.orgs.Current(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load organization")
		return
	}

	resp := dto.NewOrganizationDTO(org)
	resp.Role = string(role)
	resp.Current = true
	writeJSON(w, http.StatusOK, resp)
}

// Switch handles PUT /api/v1/organizations/current
func (h *OrganizationHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req dto.SwitchOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	orgID, err := uuid.Parse(strings.TrimSpace(req.OrganizationID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid organization ID"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	if _, err := h.orgs.Switch(r.Context(), userID, orgID); err != nil {
		writeServiceError(w, h.logger, err, "Failed to switch organization")
		return
	}

	h.Current(w, r)
}

// Update handles PATCH /api/v1/organizations/current
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	org, err := h.orgs.Update(r.Context(), middleware.GetUserID(r.Context()), organization.UpdateInput{Name: req.Name})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update organization")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrganizationDTO(org))
}

// Delete handles DELETE /api/v1/organizations/current
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orgs.Delete(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete organization")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Organization deleted"})
}

// ListMembers handles GET /api/v1/members
func (h *OrganizationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.orgs.ListMembers(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// UpdateMemberRole handles PUT /api/v1/members/{userID}/role
func (h *OrganizationHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := parseIDParam(w, r, "userID", "Invalid user ID")
	if !ok {
		return
	}

	var req dto.UpdateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	m, err := h.orgs.UpdateMemberRole(r.Context(), middleware.GetUserID(r.Context()), targetID, rbac.Role(req.Role))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Deactivate handles POST /api/v1/members/{userID}/deactivate
func (h *OrganizationHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	targetID, ok := parseIDParam(w, r, "userID", "Invalid user ID")
	if !ok {
		return
	}

	if err := h.orgs.DeactivateMember(r.Context(), middleware.GetUserID(r.Context()), targetID); err != nil {
		writeServiceError(w, h.logger, err, "Failed to deactivate member")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member deactivated"})
}

// Remove handles DELETE /api/v1/members/{userID}
func (h *OrganizationHandler) Remove(w http.ResponseWriter, r *http.Request) {
	targetID, ok := parseIDParam(w, r, "userID", "Invalid user ID")
	if !ok {
		return
	}

	if err := h.orgs.RemoveMember(r.Context(), middleware.GetUserID(r.Context()), targetID); err != nil {
		writeServiceError(w, h.logger, err, "Failed to remove member")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: message})
		return uuid.Nil, false
	}
	return id, true
}
