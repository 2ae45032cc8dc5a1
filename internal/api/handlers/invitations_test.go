package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/handlers"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInvitationTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	gate := newGate(tc.DB)
	svc := invitation.NewService(tc.DB, gate, quietLogger())
	handler := handlers.NewInvitationHandler(svc, quietLogger())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/invitations/token/{token}", handler.Resolve)
		r.Post("/invitations/token/{token}/decline", handler.Decline)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tc.JWTService))
			r.With(middleware.RequirePermission(gate, rbac.PermManageInvitations, quietLogger())).
				Get("/invitations", handler.List)
			r.Post("/invitations", handler.Create)
			r.Get("/invitations/mine", handler.Mine)
			r.Delete("/invitations/{id}", handler.Cancel)
			r.Post("/invitations/token/{token}/accept", handler.Accept)
		})
	})

	return r, tc
}

func TestInvitationHandler_Lifecycle(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	invitee := testutil.CreateTestUser(t, tc.DB)
	inviteeToken := testutil.GenerateTestToken(t, tc.JWTService, invitee)

	body := map[string]string{"email": invitee.Email, "role": "TECHNICIAN", "message": "Welcome aboard"}
	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations", body, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)

	var created dto.InvitationDTO
	testutil.ParseJSONResponse(t, rr, &created)
	require.NotEmpty(t, created.Token)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, tc.Org.ID.String(), created.OrganizationID)

	t.Run("duplicate pending invitation", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("resolve is public and hides the token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/token/"+created.Token, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var got dto.InvitationDTO
		testutil.ParseJSONResponse(t, rr, &got)
		assert.Equal(t, created.ID, got.ID)
		assert.Empty(t, got.Token)
	})

	t.Run("invitee sees it in mine", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations/mine", nil, inviteeToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var mine []dto.InvitationDTO
		testutil.ParseJSONResponse(t, rr, &mine)
		require.Len(t, mine, 1)
		assert.Equal(t, created.ID, mine[0].ID)
	})

	t.Run("accept requires a session", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/token/"+created.Token+"/accept", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("accept", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/token/"+created.Token+"/accept", nil, inviteeToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var m models.OrganizationMembership
		testutil.ParseJSONResponse(t, rr, &m)
		assert.Equal(t, invitee.ID, m.UserID)
		assert.Equal(t, rbac.RoleTechnician, m.Role)

		var oc models.OrganizationContext
		require.NoError(t, tc.DB.First(&oc, "user_id = ?", invitee.ID).Error)
		assert.Equal(t, tc.Org.ID, oc.OrganizationID)
	})

	t.Run("second accept conflicts", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/token/"+created.Token+"/accept", nil, inviteeToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("decline after accept conflicts", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/token/"+created.Token+"/decline", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("list with status filter", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations?status=accepted", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var list []dto.InvitationDTO
		testutil.ParseJSONResponse(t, rr, &list)
		require.Len(t, list, 1)
		assert.Equal(t, "ACCEPTED", list[0].Status)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations?status=maybe", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInvitationHandler_Permissions(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	_, techToken := tc.Member(t, rbac.RoleTechnician)
	_, managerToken := tc.Member(t, rbac.RoleManager)

	t.Run("technician cannot invite", func(t *testing.T) {
		body := map[string]string{"email": "someone@example.com", "role": "USER"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations", body, techToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("technician cannot list", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations", nil, techToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("manager cannot invite above own role", func(t *testing.T) {
		body := map[string]string{"email": "boss@example.com", "role": "ADMINISTRATOR"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations", body, managerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid role", func(t *testing.T) {
		body := map[string]string{"email": "x@example.com", "role": "OVERLORD"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInvitationHandler_ExpiredAndCanceled(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	expired := testutil.CreateTestInvitation(t, tc.DB, tc.Org, tc.User, "late@example.com", rbac.RoleUser, time.Now().Add(-time.Minute))
	pending := testutil.CreateTestInvitation(t, tc.DB, tc.Org, tc.User, "soon@example.com", rbac.RoleUser, time.Now().Add(time.Hour))

	t.Run("expired token is gone", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/token/"+expired.Token, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusGone, rr.Code)

		var stored models.Invitation
		require.NoError(t, tc.DB.First(&stored, "id = ?", expired.ID).Error)
		assert.Equal(t, models.InvitationExpired, stored.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/invitations/"+pending.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("canceled token no longer resolves", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/token/"+pending.Token, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/token/does-not-exist/decline", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
