// Package invitation implements the invitation lifecycle: an authorized member
// offers a role in their organization to an email address, and the holder of
// the token accepts or declines it before it lapses.
//
// Every transition out of PENDING is a single conditional UPDATE whose
// RowsAffected decides the winner, so concurrent redemptions of one token
// produce exactly one success.
package invitation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/api/validation"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/notify"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/internal/tasks"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultTTL = 7 * 24 * time.Hour

// errLostRace rolls back an accept whose conditional update matched nothing.
var errLostRace = errors.New("invitation no longer pending")

// Authorizer is satisfied by *authz.Gate.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, perm rbac.Permission) (authz.Decision, error)
}

type Service struct {
	db            *gorm.DB
	gate          Authorizer
	notifier      notify.Dispatcher
	logger        *slog.Logger
	ttl           time.Duration
	acceptURLBase string
	now           func() time.Time
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(d notify.Dispatcher) Option {
	return func(s *Service) { s.notifier = d }
}

// WithAcceptURLBase sets the link mailed to invitees; the token is appended as a path segment.
func WithAcceptURLBase(base string) Option {
	return func(s *Service) { s.acceptURLBase = strings.TrimRight(base, "/") }
}

func NewService(db *gorm.DB, gate Authorizer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		gate:     gate,
		notifier: notify.NoopDispatcher{},
		logger:   logger,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

type CreateInput struct {
	// OrganizationID defaults to the inviter's selected organization when zero.
	OrganizationID  uuid.UUID
	Email           string
	Role            rbac.Role
	InvitedByUserID uuid.UUID
	Message         string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Invitation, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, err := rbac.ParseRole(string(in.Role))
	if err != nil {
		return nil, err
	}

	d, err := s.gate.Authorize(ctx, in.InvitedByUserID, rbac.PermManageInvitations)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		s.logger.Info("invitation create denied", "user_id", in.InvitedByUserID, "reason", d.Reason)
		return nil, ErrForbidden
	}
	orgID := in.OrganizationID
	if orgID == uuid.Nil {
		orgID = d.OrganizationID
	}
	if orgID != d.OrganizationID {
		s.logger.Info("invitation create denied", "user_id", in.InvitedByUserID, "org_id", orgID, "reason", "organization mismatch")
		return nil, ErrForbidden
	}
	if !rbac.AtLeast(d.Role, role) {
		s.logger.Info("invitation create denied", "user_id", in.InvitedByUserID, "role", role, "inviter_role", d.Role)
		return nil, ErrForbidden
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	now := s.clock()
	inv := &models.Invitation{
		Token:           token,
		Email:           email,
		Role:            role,
		OrganizationID:  orgID,
		InvitedByUserID: in.InvitedByUserID,
		Message:         strings.TrimSpace(in.Message),
		Status:          models.InvitationPending,
		ExpiresAt:       now.Add(s.ttl),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A lapsed invitation must not block a fresh one for the same address.
		if _, err := expirePending(tx, now, "organization_id = ? AND email = ?", orgID, email); err != nil {
			return err
		}

		member, err := isActiveMember(tx, orgID, email)
		if err != nil {
			return err
		}
		if member {
			return ErrAlreadyMember
		}

		var pending int64
		if err := tx.Model(&models.Invitation{}).
			Where("organization_id = ? AND email = ? AND status = ?", orgID, email, models.InvitationPending).
			Count(&pending).Error; err != nil {
			return database.Wrap("counting pending invitations", err)
		}
		if pending > 0 {
			return ErrDuplicateInvitation
		}

		if err := tx.Create(inv).Error; err != nil {
			if database.IsDuplicate(err) {
				return ErrDuplicateInvitation
			}
			return database.Wrap("creating invitation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation created",
		"invitation_id", inv.ID,
		"org_id", orgID,
		"role", role,
		"invited_by", in.InvitedByUserID,
	)

	msg := s.emailPayload(ctx, inv)
	s.dispatch(ctx, s.notifier.InvitationCreated, msg)

	return inv, nil
}

// Resolve returns a redeemable invitation. A PENDING row found past its
// deadline is flipped to EXPIRED before ErrExpired is returned.
func (s *Service) Resolve(ctx context.Context, token string) (*models.Invitation, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	now := s.clock()

	var inv models.Invitation
	err := s.db.WithContext(ctx).Preload("Organization").Where("token = ?", token).First(&inv).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, database.Wrap("loading invitation", err)
	}

	if inv.Status != models.InvitationPending {
		return nil, ErrNotFound
	}
	if inv.IsExpired(now) {
		if _, err := expirePending(s.db.WithContext(ctx), now, "id = ?", inv.ID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return &inv, nil
}

// Accept redeems token for userID. The status change, the membership upsert and
// the user's new organization context commit together or not at all.
func (s *Service) Accept(ctx context.Context, token string, userID uuid.UUID) (*models.OrganizationMembership, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	now := s.clock()

	var (
		inv        models.Invitation
		membership *models.OrganizationMembership
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := transition(tx, now, models.InvitationAccepted,
			map[string]interface{}{"accepted_by_user_id": userID},
			"token = ?", token)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}

		if err := tx.Where("token = ?", token).First(&inv).Error; err != nil {
			return database.Wrap("loading accepted invitation", err)
		}

		membership, err = upsertMembership(tx, userID, inv.OrganizationID, inv.Role, now)
		if err != nil {
			return err
		}

		_, err = orgcontext.NewStore(tx).Set(ctx, userID, inv.OrganizationID)
		return err
	})
	if errors.Is(err, errLostRace) {
		return nil, s.classify(ctx, now, "token = ?", token)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation accepted",
		"invitation_id", inv.ID,
		"org_id", inv.OrganizationID,
		"user_id", userID,
		"role", membership.Role,
	)

	msg := s.emailPayload(ctx, &inv)
	if inviter, err := s.loadUser(ctx, inv.InvitedByUserID); err == nil {
		msg.To = inviter.Email
	}
	s.dispatch(ctx, s.notifier.InvitationAccepted, msg)

	return membership, nil
}

func (s *Service) Decline(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotFound
	}
	now := s.clock()

	won, err := transition(s.db.WithContext(ctx), now, models.InvitationDeclined, nil, "token = ?", token)
	if err != nil {
		return err
	}
	if !won {
		return s.classify(ctx, now, "token = ?", token)
	}

	s.logger.Info("invitation declined", "token_prefix", tokenPrefix(token))
	return nil
}

// Cancel withdraws a PENDING invitation. The acting user must be allowed to
// manage invitations in the invitation's own organization.
func (s *Service) Cancel(ctx context.Context, invitationID, actingUserID uuid.UUID) error {
	d, err := s.gate.Authorize(ctx, actingUserID, rbac.PermManageInvitations)
	if err != nil {
		return err
	}
	if !d.Allowed {
		s.logger.Info("invitation cancel denied", "user_id", actingUserID, "reason", d.Reason)
		return ErrForbidden
	}

	var inv models.Invitation
	err = s.db.WithContext(ctx).Where("id = ?", invitationID).First(&inv).Error
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return database.Wrap("loading invitation", err)
	}
	if inv.OrganizationID != d.OrganizationID {
		s.logger.Info("invitation cancel denied", "user_id", actingUserID, "invitation_id", invitationID, "reason", "organization mismatch")
		return ErrForbidden
	}

	now := s.clock()
	won, err := transition(s.db.WithContext(ctx), now, models.InvitationCanceled, nil, "id = ?", invitationID)
	if err != nil {
		return err
	}
	if !won {
		return s.classify(ctx, now, "id = ?", invitationID)
	}

	s.logger.Info("invitation canceled", "invitation_id", invitationID, "org_id", inv.OrganizationID, "user_id", actingUserID)

	s.dispatch(ctx, s.notifier.InvitationCanceled, s.emailPayload(ctx, &inv))
	return nil
}

// ListForOrganization returns the organization's invitations, newest first,
// optionally filtered by status. Stale PENDING rows are expired first.
func (s *Service) ListForOrganization(ctx context.Context, orgID uuid.UUID, status models.InvitationStatus) ([]models.Invitation, error) {
	now := s.clock()
	db := s.db.WithContext(ctx)

	if _, err := expirePending(db, now, "organization_id = ?", orgID); err != nil {
		return nil, err
	}

	q := db.Where("organization_id = ?", orgID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var invitations []models.Invitation
	if err := q.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, database.Wrap("listing invitations", err)
	}
	return invitations, nil
}

// ListForEmail returns the redeemable invitations addressed to email.
func (s *Service) ListForEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	db := s.db.WithContext(ctx)

	if _, err := expirePending(db, now, "email = ?", email); err != nil {
		return nil, err
	}

	var invitations []models.Invitation
	if err := db.Preload("Organization").
		Where("email = ? AND status = ?", email, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, database.Wrap("listing invitations", err)
	}
	return invitations, nil
}

// ExpireStale flips every PENDING invitation past its deadline at now.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return expirePending(s.db.WithContext(ctx), now.UTC(), "")
}

// classify explains why a conditional transition matched no row.
func (s *Service) classify(ctx context.Context, now time.Time, query string, args ...interface{}) error {
	var inv models.Invitation
	err := s.db.WithContext(ctx).Where(query, args...).First(&inv).Error
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return database.Wrap("loading invitation", err)
	}

	switch inv.Status {
	case models.InvitationPending:
		if inv.IsExpired(now) {
			if _, err := expirePending(s.db.WithContext(ctx), now, "id = ?", inv.ID); err != nil {
				return err
			}
			return ErrExpired
		}
		return ErrAlreadyProcessed
	case models.InvitationExpired:
		return ErrExpired
	default:
		return ErrAlreadyProcessed
	}
}

func (s *Service) emailPayload(ctx context.Context, inv *models.Invitation) tasks.InvitationEmailPayload {
	msg := tasks.InvitationEmailPayload{
		InvitationID:   inv.ID,
		OrganizationID: inv.OrganizationID,
		To:             inv.Email,
		Role:           string(inv.Role),
		Message:        inv.Message,
		ExpiresAt:      inv.ExpiresAt.Unix(),
	}
	if s.acceptURLBase != "" {
		msg.AcceptURL = s.acceptURLBase + "/" + inv.Token
	}

	var org models.Organization
	if err := s.db.WithContext(ctx).Select("name").Where("id = ?", inv.OrganizationID).First(&org).Error; err == nil {
		msg.OrganizationName = org.Name
	}
	if inviter, err := s.loadUser(ctx, inv.InvitedByUserID); err == nil {
		msg.InviterName = inviter.Name
	}
	return msg
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) dispatch(ctx context.Context, send func(context.Context, tasks.InvitationEmailPayload) error, msg tasks.InvitationEmailPayload) {
	if err := send(ctx, msg); err != nil {
		s.logger.Warn("invitation notification failed", "invitation_id", msg.InvitationID, "error", err)
	}
}

// transition moves the single PENDING, unexpired invitation matching query to
// status and reports whether this call made the change.
func transition(db *gorm.DB, now time.Time, status models.InvitationStatus, extra map[string]interface{}, query string, args ...interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":       status,
		"responded_at": now,
		"updated_at":   now,
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := db.Model(&models.Invitation{}).
		Where(query, args...).
		Where("status = ? AND expires_at > ?", models.InvitationPending, now).
		Updates(updates)
	if res.Error != nil {
		return false, database.Wrap("updating invitation status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// expirePending flips PENDING rows past their deadline to EXPIRED, narrowed by
// query when it is non-empty.
func expirePending(db *gorm.DB, now time.Time, query string, args ...interface{}) (int64, error) {
	q := db.Model(&models.Invitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationPending, now)
	if query != "" {
		q = q.Where(query, args...)
	}
	res := q.Updates(map[string]interface{}{
		"status":     models.InvitationExpired,
		"updated_at": now,
	})
	if res.Error != nil {
		return 0, database.Wrap("expiring invitations", res.Error)
	}
	return res.RowsAffected, nil
}

func isActiveMember(tx *gorm.DB, orgID uuid.UUID, email string) (bool, error) {
	var count int64
	err := tx.Model(&models.OrganizationMembership{}).
		Joins("JOIN users ON users.id = organization_memberships.user_id").
		Where("organization_memberships.organization_id = ?", orgID).
		Where("LOWER(users.email) = ?", email).
		Where("organization_memberships.is_active = ? AND organization_memberships.is_deleted = ?", true, false).
		Count(&count).Error
	if err != nil {
		return false, database.Wrap("checking membership", err)
	}
	return count > 0, nil
}

// upsertMembership grants role to the user in orgID. A removed or deactivated
// row is revived with role; an active row is only ever promoted.
func upsertMembership(tx *gorm.DB, userID, orgID uuid.UUID, role rbac.Role, now time.Time) (*models.OrganizationMembership, error) {
	var existing models.OrganizationMembership
	err := tx.Where("user_id = ? AND organization_id = ?", userID, orgID).First(&existing).Error
	if database.IsNotFound(err) {
		m := &models.OrganizationMembership{
			UserID:         userID,
			OrganizationID: orgID,
			Role:           role,
			IsActive:       true,
			IsVerified:     true,
			JoinedAt:       now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "is_active", "is_verified", "is_deleted", "updated_at"}),
		}).Create(m).Error
		if err != nil {
			return nil, database.Wrap("creating membership", err)
		}
		return m, nil
	}
	if err != nil {
		return nil, database.Wrap("loading membership", err)
	}

	updates := map[string]interface{}{
		"is_active":   true,
		"is_verified": true,
		"updated_at":  now,
	}
	current, parseErr := rbac.ParseRole(string(existing.Role))
	switch {
	case !existing.Usable():
		updates["is_deleted"] = false
		updates["role"] = role
		updates["joined_at"] = now
	case parseErr != nil || !rbac.AtLeast(current, role):
		updates["role"] = role
	}

	if err := tx.Model(&models.OrganizationMembership{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return nil, database.Wrap("updating membership", err)
	}
	if err := tx.Where("id = ?", existing.ID).First(&existing).Error; err != nil {
		return nil, database.Wrap("reloading membership", err)
	}
	return &existing, nil
}

// NormalizeEmail lower-cases and trims email and rejects malformed addresses.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validation.IsValidEmail(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func tokenPrefix(token string) string {
	if len(token) > 6 {
		return token[:6]
	}
	return token
}
