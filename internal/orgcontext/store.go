// Package orgcontext persists each user's currently selected organization.
//
// A context row is a convenience pointer, not a grant: the cached role is
// refreshed from the live membership whenever the two disagree, and a row whose
// membership has gone away is removed by the authorization gate.
package orgcontext

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/rbac"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotAMember = errors.New("user is not an active member of the organization")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to tx so context writes join an outer transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Get returns the user's context, or nil when none is selected.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*models.OrganizationContext, error) {
	var oc models.OrganizationContext
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&oc).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap("loading organization context", err)
	}
	return &oc, nil
}

// GetMembership returns the membership row for the pair regardless of its flags,
// or nil when the user was never a member.
func (s *Store) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.OrganizationMembership, error) {
	var m models.OrganizationMembership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ?", userID, orgID).
		First(&m).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap("loading membership", err)
	}
	return &m, nil
}

// Set points the user's context at orgID. The prior context is left untouched
// unless the user holds an active, non-deleted membership there.
func (s *Store) Set(ctx context.Context, userID, orgID uuid.UUID) (*models.OrganizationContext, error) {
	m, err := s.GetMembership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if !m.Usable() {
		return nil, ErrNotAMember
	}

	oc := &models.OrganizationContext{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           m.Role,
		UpdatedAt:      time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"organization_id", "role", "updated_at"}),
	}).Create(oc).Error
	if err != nil {
		return nil, database.Wrap("saving organization context", err)
	}
	return oc, nil
}

// Invalidate removes the user's context if it still points at orgID. The
// organization guard keeps a concurrent switch to another organization intact.
func (s *Store) Invalidate(ctx context.Context, userID, orgID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ?", userID, orgID).
		Delete(&models.OrganizationContext{}).Error
	return database.Wrap("invalidating organization context", err)
}

// InvalidateOrganization removes every context pointing at orgID.
func (s *Store) InvalidateOrganization(ctx context.Context, orgID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Delete(&models.OrganizationContext{}).Error
	return database.Wrap("invalidating organization contexts", err)
}

// RefreshRole overwrites the cached role while the context still points at orgID.
func (s *Store) RefreshRole(ctx context.Context, userID, orgID uuid.UUID, role rbac.Role) error {
	err := s.db.WithContext(ctx).
		Model(&models.OrganizationContext{}).
		Where("user_id = ? AND organization_id = ?", userID, orgID).
		Updates(map[string]interface{}{
			"role":       role,
			"updated_at": time.Now().UTC(),
		}).Error
	return database.Wrap("refreshing cached role", err)
}
