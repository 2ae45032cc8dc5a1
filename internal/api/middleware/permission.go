package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/rbac"
)

// Authorizer is satisfied by *authz.Gate.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, perm rbac.Permission) (authz.Decision, error)
}

// RequirePermission runs the gate for perm and stores the allowing decision in
// the request context. Every denial reason gets the same 403 body; the reason
// is only logged.
func RequirePermission(gate Authorizer, perm rbac.Permission, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == uuid.Nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			d, err := gate.Authorize(r.Context(), userID, perm)
			if err != nil {
				logger.Error("authorization failed",
					"user_id", userID,
					"permission", perm,
					"error", err,
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !d.Allowed {
				logger.Info("permission denied",
					"user_id", userID,
					"permission", perm,
					"org_id", d.OrganizationID,
					"reason", d.Reason,
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), DecisionKey, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetDecision(ctx context.Context) (authz.Decision, bool) {
	d, ok := ctx.Value(DecisionKey).(authz.Decision)
	return d, ok
}

// GetOrganizationID returns the organization the current request was
// authorized against, or uuid.Nil outside a RequirePermission route.
func GetOrganizationID(ctx context.Context) uuid.UUID {
	if d, ok := GetDecision(ctx); ok {
		return d.OrganizationID
	}
	return uuid.Nil
}

func GetRole(ctx context.Context) rbac.Role {
	if d, ok := GetDecision(ctx); ok {
		return d.Role
	}
	return ""
}
