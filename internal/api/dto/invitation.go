package dto

import (
	"strings"
	"time"

	"github.com/hugh/go-equip/internal/api/validation"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/rbac"
)

type CreateInvitationRequest struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
}

func (r CreateInvitationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors["email"] = "Invalid email format"
	}
	if _, err := rbac.ParseRole(r.Role); err != nil {
		errors["role"] = "Invalid role"
	}
	if len(r.Message) > 1000 {
		errors["message"] = "Message must be at most 1000 characters"
	}
	return errors
}

type InvitationDTO struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Role             string  `json:"role"`
	Status           string  `json:"status"`
	OrganizationID   string  `json:"organization_id"`
	OrganizationName string  `json:"organization_name,omitempty"`
	InvitedBy        string  `json:"invited_by"`
	Message          string  `json:"message,omitempty"`
	ExpiresAt        string  `json:"expires_at"`
	RespondedAt      *string `json:"responded_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	// Token is only returned to the inviter on create.
	Token string `json:"token,omitempty"`
}

func NewInvitationDTO(inv *models.Invitation) InvitationDTO {
	d := InvitationDTO{
		ID:             inv.ID.String(),
		Email:          inv.Email,
		Role:           string(inv.Role),
		Status:         string(inv.Status),
		OrganizationID: inv.OrganizationID.String(),
		InvitedBy:      inv.InvitedByUserID.String(),
		Message:        inv.Message,
		ExpiresAt:      inv.ExpiresAt.Format(time.RFC3339),
		CreatedAt:      inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.Organization != nil {
		d.OrganizationName = inv.Organization.Name
	}
	if inv.RespondedAt != nil {
		s := inv.RespondedAt.Format(time.RFC3339)
		d.RespondedAt = &s
	}
	return d
}
