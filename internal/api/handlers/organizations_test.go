package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/handlers"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/organization"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrganizationTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	store := orgcontext.NewStore(tc.DB)
	svc := organization.NewService(tc.DB, newGate(tc.DB), store, quietLogger())
	handler := handlers.NewOrganizationHandler(svc, quietLogger())

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Route("/api/v1/organizations", func(r chi.Router) {
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/current", handler.Current)
		r.Put("/current", handler.Switch)
		r.Patch("/current", handler.Update)
		r.Delete("/current", handler.Delete)
	})
	r.Route("/api/v1/members", func(r chi.Router) {
		r.Get("/", handler.ListMembers)
		r.Put("/{userID}/role", handler.UpdateMemberRole)
		r.Post("/{userID}/deactivate", handler.Deactivate)
		r.Delete("/{userID}", handler.Remove)
	})

	return r, tc
}

func TestOrganizationHandler_CreateListSwitch(t *testing.T) {
	router, tc := setupOrganizationTestRouter(t)
	defer tc.Cleanup()

	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/organizations", map[string]string{"name": "North Depot"}, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)

	var created dto.OrganizationDTO
	testutil.ParseJSONResponse(t, rr, &created)
	assert.Equal(t, "North Depot", created.Name)
	assert.Equal(t, "ADMINISTRATOR", created.Role)
	assert.True(t, created.Current)

	t.Run("list marks the current organization", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var list []dto.OrganizationDTO
		testutil.ParseJSONResponse(t, rr, &list)
		require.Len(t, list, 2)
		for _, org := range list {
			assert.Equal(t, org.ID == created.ID, org.Current, org.Name)
		}
	})

	t.Run("switch back", func(t *testing.T) {
		body := map[string]string{"organization_id": tc.Org.ID.String()}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organizations/current", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var current dto.OrganizationDTO
		testutil.ParseJSONResponse(t, rr, &current)
		assert.Equal(t, tc.Org.ID.String(), current.ID)
	})

	t.Run("switch to a foreign organization", func(t *testing.T) {
		foreign := testutil.CreateTestOrg(t, tc.DB)
		body := map[string]string{"organization_id": foreign.ID.String()}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organizations/current", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("switch with a malformed id", func(t *testing.T) {
		body := map[string]string{"organization_id": "nope"}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organizations/current", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create requires a name", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/organizations", map[string]string{"name": " "}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOrganizationHandler_UpdateAndDelete(t *testing.T) {
	router, tc := setupOrganizationTestRouter(t)
	defer tc.Cleanup()

	_, managerToken := tc.Member(t, rbac.RoleManager)
	_, rootToken := tc.Member(t, rbac.RoleRoot)

	t.Run("administrator renames", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/organizations/current", map[string]string{"name": "Renamed Co"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var org dto.OrganizationDTO
		testutil.ParseJSONResponse(t, rr, &org)
		assert.Equal(t, "Renamed Co", org.Name)
	})

	t.Run("manager cannot rename", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/organizations/current", map[string]string{"name": "Mine Now"}, managerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("administrator cannot delete", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/organizations/current", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("root deletes", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/organizations/current", nil, rootToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		req = testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/current", nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestOrganizationHandler_Members(t *testing.T) {
	router, tc := setupOrganizationTestRouter(t)
	defer tc.Cleanup()

	tech, techToken := tc.Member(t, rbac.RoleTechnician)
	other, _ := tc.Member(t, rbac.RoleUser)

	t.Run("list members", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/members", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var members []organization.Member
		testutil.ParseJSONResponse(t, rr, &members)
		assert.Len(t, members, 3)
	})

	t.Run("technician cannot list members", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/members", nil, techToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("promote", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/members/"+tech.ID.String()+"/role", map[string]string{"role": "SUPERVISOR"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var m models.OrganizationMembership
		testutil.ParseJSONResponse(t, rr, &m)
		assert.Equal(t, rbac.RoleSupervisor, m.Role)
	})

	t.Run("cannot grant above own role", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/members/"+tech.ID.String()+"/role", map[string]string{"role": "ROOT"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid role", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/members/"+tech.ID.String()+"/role", map[string]string{"role": "KING"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("cannot change self", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/members/"+tc.User.ID.String()+"/role", map[string]string{"role": "USER"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("deactivate", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/members/"+other.ID.String()+"/deactivate", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("remove", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/members/"+tech.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("unknown member", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/members/"+uuid.NewString(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
