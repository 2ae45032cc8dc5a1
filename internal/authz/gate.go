// Package authz decides whether a user may perform a named action in the
// organization they currently have selected.
package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/rbac"
)

type Reason string

const (
	ReasonNoOrganizationContext Reason = "NoOrganizationContext"
	ReasonNotAMember            Reason = "NotAMember"
	ReasonInsufficientRole      Reason = "InsufficientRole"
)

// Decision is the outcome of one authorization check. OrganizationID and Role
// are set whenever a context was found, including on denial.
type Decision struct {
	Allowed        bool            `json:"allowed"`
	Reason         Reason          `json:"reason,omitempty"`
	Permission     rbac.Permission `json:"permission"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Role           rbac.Role       `json:"role,omitempty"`
}

// ContextStore is the subset of the organization context store the gate needs.
type ContextStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.OrganizationContext, error)
	Invalidate(ctx context.Context, userID, orgID uuid.UUID) error
	RefreshRole(ctx context.Context, userID, orgID uuid.UUID, role rbac.Role) error
}

// MembershipGetter returns nil, nil when the user never belonged to the organization.
type MembershipGetter interface {
	GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.OrganizationMembership, error)
}

type Gate struct {
	contexts ContextStore
	members  MembershipGetter
	logger   *slog.Logger
}

func NewGate(contexts ContextStore, members MembershipGetter, logger *slog.Logger) *Gate {
	return &Gate{
		contexts: contexts,
		members:  members,
		logger:   logger,
	}
}

// Authorize evaluates perm for userID against the live membership behind the
// user's selected organization. Denials are returned as a Decision; the error
// is reserved for unknown permissions and storage failures.
func (g *Gate) Authorize(ctx context.Context, userID uuid.UUID, perm rbac.Permission) (Decision, error) {
	d := Decision{Permission: perm}

	required, err := rbac.RequiredRole(perm)
	if err != nil {
		return d, err
	}

	oc, err := g.contexts.Get(ctx, userID)
	if err != nil {
		return d, err
	}
	if oc == nil {
		d.Reason = ReasonNoOrganizationContext
		return d, nil
	}
	d.OrganizationID = oc.OrganizationID

	m, err := g.members.GetMembership(ctx, userID, oc.OrganizationID)
	if err != nil {
		return d, err
	}
	if !m.Usable() {
		d.Reason = ReasonNotAMember
		if err := g.contexts.Invalidate(ctx, userID, oc.OrganizationID); err != nil {
			g.logger.Warn("failed to invalidate stale organization context",
				"user_id", userID, "org_id", oc.OrganizationID, "error", err)
		}
		return d, nil
	}

	live, err := rbac.ParseRole(string(m.Role))
	if err != nil {
		return d, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	d.Role = live

	if oc.Role != live {
		if err := g.contexts.RefreshRole(ctx, userID, oc.OrganizationID, live); err != nil {
			g.logger.Warn("failed to refresh cached role",
				"user_id", userID, "org_id", oc.OrganizationID, "error", err)
		}
	}

	if !rbac.AtLeast(live, required) {
		d.Reason = ReasonInsufficientRole
		return d, nil
	}

	d.Allowed = true
	return d, nil
}
