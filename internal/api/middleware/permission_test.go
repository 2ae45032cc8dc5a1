package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/stretchr/testify/assert"
)

type stubGate struct {
	decision authz.Decision
	err      error
	calls    []rbac.Permission
}

func (g *stubGate) Authorize(_ context.Context, _ uuid.UUID, perm rbac.Permission) (authz.Decision, error) {
	g.calls = append(g.calls, perm)
	d := g.decision
	d.Permission = perm
	return d, g.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserIDKey, userID))
}

func TestRequirePermission_Allowed(t *testing.T) {
	orgID := uuid.New()
	gate := &stubGate{decision: authz.Decision{Allowed: true, OrganizationID: orgID, Role: rbac.RoleTechnician}}

	handler := RequirePermission(gate, rbac.PermCreateLog, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, orgID, GetOrganizationID(r.Context()))
		assert.Equal(t, rbac.RoleTechnician, GetRole(r.Context()))
		d, ok := GetDecision(r.Context())
		assert.True(t, ok)
		assert.Equal(t, rbac.PermCreateLog, d.Permission)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest("POST", "/api/v1/equipment/x/logs", nil), uuid.New()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []rbac.Permission{rbac.PermCreateLog}, gate.calls)
}

func TestRequirePermission_DeniedReasonsLookAlike(t *testing.T) {
	for _, reason := range []authz.Reason{
		authz.ReasonNoOrganizationContext,
		authz.ReasonNotAMember,
		authz.ReasonInsufficientRole,
	} {
		t.Run(string(reason), func(t *testing.T) {
			gate := &stubGate{decision: authz.Decision{Allowed: false, Reason: reason}}
			handler := RequirePermission(gate, rbac.PermDeleteEquipment, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("Handler should not be called")
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, withUser(httptest.NewRequest("DELETE", "/api/v1/equipment/x", nil), uuid.New()))

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "Forbidden\n", rec.Body.String())
		})
	}
}

func TestRequirePermission_NoSession(t *testing.T) {
	gate := &stubGate{}
	handler := RequirePermission(gate, rbac.PermViewEquipment, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/equipment", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, gate.calls)
}

func TestRequirePermission_StorageError(t *testing.T) {
	gate := &stubGate{err: errors.New("connection reset")}
	handler := RequirePermission(gate, rbac.PermViewEquipment, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest("GET", "/api/v1/equipment", nil), uuid.New()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetOrganizationID_NotInContext(t *testing.T) {
	assert.Equal(t, uuid.Nil, GetOrganizationID(context.Background()))
	assert.Equal(t, rbac.Role(""), GetRole(context.Background()))
}

func TestRecovery(t *testing.T) {
	handler := Recovery(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/me", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
