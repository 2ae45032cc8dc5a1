package orgcontext_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetWithoutContext(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := orgcontext.NewStore(db)

	oc, err := store.Get(testutil.TestContext(t), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, oc)
}

func TestStore_SetAndSwitch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	user := testutil.CreateTestUser(t, db)
	orgA := testutil.CreateTestOrg(t, db)
	orgB := testutil.CreateTestOrg(t, db)
	testutil.CreateTestMembership(t, db, user, orgA, rbac.RoleTechnician)
	testutil.CreateTestMembership(t, db, user, orgB, rbac.RoleManager)

	oc, err := store.Set(ctx, user.ID, orgA.ID)
	require.NoError(t, err)
	assert.Equal(t, orgA.ID, oc.OrganizationID)
	assert.Equal(t, rbac.RoleTechnician, oc.Role)

	_, err = store.Set(ctx, user.ID, orgB.ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, orgB.ID, got.OrganizationID)
	assert.Equal(t, rbac.RoleManager, got.Role)

	// One row per user regardless of how often it is switched
	var count int64
	db.Model(&models.OrganizationContext{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestStore_SetRejectsNonMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	user := testutil.CreateTestUser(t, db)
	home := testutil.CreateTestOrg(t, db)
	other := testutil.CreateTestOrg(t, db)
	testutil.CreateTestMembership(t, db, user, home, rbac.RoleUser)

	_, err := store.Set(ctx, user.ID, home.ID)
	require.NoError(t, err)

	_, err = store.Set(ctx, user.ID, other.ID)
	assert.ErrorIs(t, err, orgcontext.ErrNotAMember)

	// Prior context untouched
	oc, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, home.ID, oc.OrganizationID)
}

func TestStore_SetRejectsRemovedMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	user := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db)
	m := testutil.CreateTestMembership(t, db, user, org, rbac.RoleUser)

	require.NoError(t, db.Model(m).Update("is_active", false).Error)
	_, err := store.Set(ctx, user.ID, org.ID)
	assert.ErrorIs(t, err, orgcontext.ErrNotAMember)

	require.NoError(t, db.Model(m).Updates(map[string]interface{}{"is_active": true, "is_deleted": true}).Error)
	_, err = store.Set(ctx, user.ID, org.ID)
	assert.ErrorIs(t, err, orgcontext.ErrNotAMember)
}

func TestStore_InvalidateIsGuardedByOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestMember(t, db, org, rbac.RoleUser)

	// A stale invalidation for another organization is a no-op
	require.NoError(t, store.Invalidate(ctx, user.ID, uuid.New()))
	oc, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, oc)

	require.NoError(t, store.Invalidate(ctx, user.ID, org.ID))
	oc, err = store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, oc)
}

func TestStore_RefreshRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestMember(t, db, org, rbac.RoleUser)

	require.NoError(t, store.RefreshRole(ctx, user.ID, org.ID, rbac.RoleSupervisor))

	oc, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSupervisor, oc.Role)
}

func TestStore_InvalidateOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	org := testutil.CreateTestOrg(t, db)
	a := testutil.CreateTestMember(t, db, org, rbac.RoleUser)
	b := testutil.CreateTestMember(t, db, org, rbac.RoleManager)

	require.NoError(t, store.InvalidateOrganization(ctx, org.ID))

	for _, u := range []*models.User{a, b} {
		oc, err := store.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, oc)
	}
}

func TestStore_GetMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := orgcontext.NewStore(db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)

	m, err := store.GetMembership(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, m)

	testutil.CreateTestMembership(t, db, user, org, rbac.RoleDispatcher)
	m, err = store.GetMembership(ctx, user.ID, org.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, rbac.RoleDispatcher, m.Role)
	assert.False(t, m.JoinedAt.IsZero())
}
