package rbac

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRole = errors.New("invalid role")

// Role is an actor's rank within an organization.
type Role string

const (
	RoleCustomer      Role = "CUSTOMER"
	RoleUser          Role = "USER"
	RoleEstimator     Role = "ESTIMATOR"
	RoleDispatcher    Role = "DISPATCHER"
	RoleTechnician    Role = "TECHNICIAN"
	RoleSupervisor    Role = "SUPERVISOR"
	RoleManager       Role = "MANAGER"
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleRoot          Role = "ROOT"
)

// Roles lists every role from lowest to highest privilege.
var Roles = []Role{
	RoleCustomer,
	RoleUser,
	RoleEstimator,
	RoleDispatcher,
	RoleTechnician,
	RoleSupervisor,
	RoleManager,
	RoleAdministrator,
	RoleRoot,
}

// Rank returns the position of r in the hierarchy. Higher values carry more privilege.
// Rank panics on a value outside the enumeration; use ParseRole on untrusted input.
func Rank(r Role) int {
	switch r {
	case RoleCustomer:
		return 1
	case RoleUser:
		return 2
	case RoleEstimator:
		return 3
	case RoleDispatcher:
		return 4
	case RoleTechnician:
		return 5
	case RoleSupervisor:
		return 6
	case RoleManager:
		return 7
	case RoleAdministrator:
		return 8
	case RoleRoot:
		return 9
	}
	panic(fmt.Sprintf("rbac: unknown role %q", string(r)))
}

// AtLeast reports whether role a matches or exceeds the privilege of role b.
func AtLeast(a, b Role) bool {
	return Rank(a) >= Rank(b)
}

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts user or database input to a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}
