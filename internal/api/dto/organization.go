package dto

import (
	"strings"
	"time"

	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/rbac"
)

type OrganizationDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Plan      string `json:"plan,omitempty"`
	Role      string `json:"role,omitempty"`
	Current   bool   `json:"current,omitempty"`
	CreatedAt string `json:"created_at"`
}

func NewOrganizationDTO(org *models.Organization) *OrganizationDTO {
	if org == nil {
		return nil
	}
	return &OrganizationDTO{
		ID:        org.ID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		Plan:      org.Plan,
		CreatedAt: org.CreatedAt.Format(time.RFC3339),
	}
}

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

func (r CreateOrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	name := strings.TrimSpace(r.Name)
	if name == "" {
		errors["name"] = "Name is required"
	} else if len(name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	return errors
}

type UpdateOrganizationRequest struct {
	Name *string `json:"name,omitempty"`
}

func (r UpdateOrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			errors["name"] = "Name cannot be empty"
		} else if len(name) > 100 {
			errors["name"] = "Name must be at most 100 characters"
		}
	}
	return errors
}

// SwitchOrganizationRequest selects the caller's current organization.
type SwitchOrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

func (r UpdateMemberRoleRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if _, err := rbac.ParseRole(r.Role); err != nil {
		errors["role"] = "Invalid role"
	}
	return errors
}
