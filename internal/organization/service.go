package organization

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("organization not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrSelfModification = errors.New("members cannot change their own membership")
	ErrInvalidName      = errors.New("organization name is required")
)

// Authorizer is satisfied by *authz.Gate.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, perm rbac.Permission) (authz.Decision, error)
}

type Service struct {
	db       *gorm.DB
	gate     Authorizer
	contexts *orgcontext.Store
	logger   *slog.Logger
}

func NewService(db *gorm.DB, gate Authorizer, contexts *orgcontext.Store, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		gate:     gate,
		contexts: contexts,
		logger:   logger,
	}
}

// Membership pairs a membership with its organization for "my organizations" listings.
type Membership struct {
	Organization models.Organization `json:"organization"`
	Role         rbac.Role           `json:"role"`
	JoinedAt     time.Time           `json:"joined_at"`
	Current      bool                `json:"current"`
}

// Bootstrap creates an organization inside tx with userID as its ADMINISTRATOR
// and points the user's context at it. Registration and Create share it.
func Bootstrap(ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	org := &models.Organization{
		Name: name,
		Slug: util.Slugify(name),
		Plan: "free",
	}
	if err := tx.Create(org).Error; err != nil {
		return nil, database.Wrap("creating organization", err)
	}

	m := &models.OrganizationMembership{
		UserID:         userID,
		OrganizationID: org.ID,
		Role:           rbac.RoleAdministrator,
		IsActive:       true,
		IsVerified:     true,
	}
	if err := tx.Create(m).Error; err != nil {
		return nil, database.Wrap("creating membership", err)
	}

	if _, err := orgcontext.NewStore(tx).Set(ctx, userID, org.ID); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Organization, error) {
	var org *models.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		org, err = Bootstrap(ctx, tx, userID, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization created", "org_id", org.ID, "user_id", userID)
	return org, nil
}

// ListForUser returns the organizations the user can switch to.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	var rows []models.OrganizationMembership
	err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("user_id = ? AND is_active = ? AND is_deleted = ?", userID, true, false).
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, database.Wrap("listing memberships", err)
	}

	oc, err := s.contexts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Membership, 0, len(rows))
	for _, m := range rows {
		// Preload skips soft-deleted organizations
		if m.Organization == nil {
			continue
		}
		out = append(out, Membership{
			Organization: *m.Organization,
			Role:         m.Role,
			JoinedAt:     m.JoinedAt,
			Current:      oc != nil && oc.OrganizationID == m.OrganizationID,
		})
	}
	return out, nil
}

// Current returns the user's selected organization and live role, or
// ErrNotFound when nothing usable is selected.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*models.Organization, rbac.Role, error) {
	// viewEquipment is held by every role, so this only validates the context.
	d, err := s.gate.Authorize(ctx, userID, rbac.PermViewEquipment)
	if err != nil {
		return nil, "", err
	}
	if d.OrganizationID == uuid.Nil || d.Reason == authz.ReasonNotAMember {
		return nil, "", ErrNotFound
	}

	org, err := s.get(ctx, d.OrganizationID)
	if err != nil {
		return nil, "", err
	}
	return org, d.Role, nil
}

// Switch selects orgID for the user. The previous selection survives a failed switch.
func (s *Service) Switch(ctx context.Context, userID, orgID uuid.UUID) (*models.OrganizationContext, error) {
	if _, err := s.get(ctx, orgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, orgcontext.ErrNotAMember
		}
		return nil, err
	}
	oc, err := s.contexts.Set(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("organization context switched", "user_id", userID, "org_id", orgID)
	return oc, nil
}

type UpdateInput struct {
	Name *string
}

func (s *Service) Update(ctx context.Context, actingUserID uuid.UUID, in UpdateInput) (*models.Organization, error) {
	d, err := s.authorize(ctx, actingUserID, rbac.PermEditOrganization)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		updates["name"] = name
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Organization{}).
			Where("id = ?", d.OrganizationID).
			Updates(updates).Error; err != nil {
			return nil, database.Wrap("updating organization", err)
		}
	}
	return s.get(ctx, d.OrganizationID)
}

// Delete soft-deletes the acting user's selected organization, removes every
// membership, clears every context pointing at it and cancels open invitations.
func (s *Service) Delete(ctx context.Context, actingUserID uuid.UUID) error {
	d, err := s.authorize(ctx, actingUserID, rbac.PermDeleteOrganization)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", d.OrganizationID).Delete(&models.Organization{}).Error; err != nil {
			return database.Wrap("deleting organization", err)
		}
		if err := tx.Model(&models.OrganizationMembership{}).
			Where("organization_id = ?", d.OrganizationID).
			Updates(map[string]interface{}{"is_deleted": true, "is_active": false, "updated_at": now}).Error; err != nil {
			return database.Wrap("removing memberships", err)
		}
		if err := tx.Model(&models.Invitation{}).
			Where("organization_id = ? AND status = ?", d.OrganizationID, models.InvitationPending).
			Updates(map[string]interface{}{"status": models.InvitationCanceled, "responded_at": now, "updated_at": now}).Error; err != nil {
			return database.Wrap("canceling invitations", err)
		}
		return orgcontext.NewStore(tx).InvalidateOrganization(ctx, d.OrganizationID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("organization deleted", "org_id", d.OrganizationID, "user_id", actingUserID)
	return nil
}

// Member is a membership row with the user's public fields.
type Member struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       rbac.Role `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	JoinedAt   time.Time `json:"joined_at"`
}

func (s *Service) ListMembers(ctx context.Context, actingUserID uuid.UUID) ([]Member, error) {
	d, err := s.authorize(ctx, actingUserID, rbac.PermViewUsers)
	if err != nil {
		return nil, err
	}

	var rows []models.OrganizationMembership
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ? AND is_deleted = ?", d.OrganizationID, false).
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, database.Wrap("listing members", err)
	}

	members := make([]Member, 0, len(rows))
	for _, m := range rows {
		member := Member{
			UserID:     m.UserID,
			Role:       m.Role,
			IsActive:   m.IsActive,
			IsVerified: m.IsVerified,
			JoinedAt:   m.JoinedAt,
		}
		if m.User != nil {
			member.Email = m.User.Email
			member.Name = m.User.Name
		}
		members = append(members, member)
	}
	return members, nil
}

// UpdateMemberRole changes another member's role. The actor can neither grant a
// role above their own nor modify a member who outranks them. Since acting on
// members requires ADMINISTRATOR and nobody acts on themselves, an
// organization always keeps at least the actor as administrator.
func (s *Service) UpdateMemberRole(ctx context.Context, actingUserID, targetUserID uuid.UUID, role rbac.Role) (*models.OrganizationMembership, error) {
	role, err := rbac.ParseRole(string(role))
	if err != nil {
		return nil, err
	}

	d, target, err := s.authorizeOnMember(ctx, actingUserID, targetUserID)
	if err != nil {
		return nil, err
	}
	if !rbac.AtLeast(d.Role, role) {
		s.logger.Info("role change denied", "user_id", actingUserID, "target", targetUserID, "role", role)
		return nil, ErrForbidden
	}

	err = s.db.WithContext(ctx).Model(&models.OrganizationMembership{}).
		Where("id = ?", target.ID).
		Updates(map[string]interface{}{"role": role, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return nil, database.Wrap("updating member role", err)
	}

	s.logger.Info("member role changed",
		"org_id", d.OrganizationID,
		"user_id", actingUserID,
		"target", targetUserID,
		"from", target.Role,
		"to", role,
	)
	target.Role = role
	return target, nil
}

// DeactivateMember suspends a membership without removing it.
func (s *Service) DeactivateMember(ctx context.Context, actingUserID, targetUserID uuid.UUID) error {
	return s.disable(ctx, actingUserID, targetUserID, map[string]interface{}{"is_active": false}, "member deactivated")
}

// RemoveMember soft-deletes a membership.
func (s *Service) RemoveMember(ctx context.Context, actingUserID, targetUserID uuid.UUID) error {
	return s.disable(ctx, actingUserID, targetUserID, map[string]interface{}{"is_deleted": true, "is_active": false}, "member removed")
}

func (s *Service) disable(ctx context.Context, actingUserID, targetUserID uuid.UUID, updates map[string]interface{}, msg string) error {
	d, target, err := s.authorizeOnMember(ctx, actingUserID, targetUserID)
	if err != nil {
		return err
	}
	updates["updated_at"] = time.Now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OrganizationMembership{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
			return database.Wrap("updating membership", err)
		}
		return orgcontext.NewStore(tx).Invalidate(ctx, targetUserID, d.OrganizationID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(msg, "org_id", d.OrganizationID, "user_id", actingUserID, "target", targetUserID)
	return nil
}

func (s *Service) authorize(ctx context.Context, userID uuid.UUID, perm rbac.Permission) (authz.Decision, error) {
	d, err := s.gate.Authorize(ctx, userID, perm)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		s.logger.Info("organization action denied", "user_id", userID, "permission", perm, "reason", d.Reason)
		return d, ErrForbidden
	}
	return d, nil
}

func (s *Service) authorizeOnMember(ctx context.Context, actingUserID, targetUserID uuid.UUID) (authz.Decision, *models.OrganizationMembership, error) {
	if actingUserID == targetUserID {
		return authz.Decision{}, nil, ErrSelfModification
	}

	d, err := s.authorize(ctx, actingUserID, rbac.PermManageMembers)
	if err != nil {
		return d, nil, err
	}

	target, err := s.contexts.GetMembership(ctx, targetUserID, d.OrganizationID)
	if err != nil {
		return d, nil, err
	}
	if target == nil || target.IsDeleted {
		return d, nil, ErrMemberNotFound
	}

	targetRole, err := rbac.ParseRole(string(target.Role))
	if err == nil && !rbac.AtLeast(d.Role, targetRole) {
		s.logger.Info("member change denied", "user_id", actingUserID, "target", targetUserID, "reason", "target outranks actor")
		return d, nil, ErrForbidden
	}
	return d, target, nil
}

func (s *Service) get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).Where("id = ?", orgID).First(&org).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, database.Wrap("loading organization", err)
	}
	return &org, nil
}
