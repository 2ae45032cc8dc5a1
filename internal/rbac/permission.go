package rbac

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownPermission = errors.New("unknown permission")

// Permission names a capability gated by a minimum role.
type Permission string

const (
	PermViewEquipment      Permission = "viewEquipment"
	PermCreateEquipment    Permission = "createEquipment"
	PermEditEquipment      Permission = "editEquipment"
	PermDeleteEquipment    Permission = "deleteEquipment"
	PermViewLogs           Permission = "viewLogs"
	PermCreateLog          Permission = "createLog"
	PermViewAlerts         Permission = "viewAlerts"
	PermCreateAlert        Permission = "createAlert"
	PermResolveAlert       Permission = "resolveAlert"
	PermViewUploads        Permission = "viewUploads"
	PermCreateUpload       Permission = "createUpload"
	PermDeleteUpload       Permission = "deleteUpload"
	PermViewDemos          Permission = "viewDemos"
	PermScheduleDemos      Permission = "scheduleDemos"
	PermViewOrganization   Permission = "viewOrganization"
	PermEditOrganization   Permission = "editOrganization"
	PermDeleteOrganization Permission = "deleteOrganization"
	PermViewUsers          Permission = "viewUsers"
	PermCreateUser         Permission = "createUser"
	PermEditUser           Permission = "editUser"
	PermDeleteUser         Permission = "deleteUser"
	PermManageMembers      Permission = "manageMembers"
	PermManageInvitations  Permission = "manageInvitations"
	PermViewBilling        Permission = "viewBilling"
	PermManagePlans        Permission = "managePlans"
)

var permissionTable = map[Permission]Role{
	PermViewEquipment:      RoleCustomer,
	PermViewAlerts:         RoleUser,
	PermViewLogs:           RoleUser,
	PermViewUploads:        RoleUser,
	PermViewOrganization:   RoleUser,
	PermViewDemos:          RoleEstimator,
	PermScheduleDemos:      RoleDispatcher,
	PermCreateLog:          RoleTechnician,
	PermCreateEquipment:    RoleTechnician,
	PermEditEquipment:      RoleTechnician,
	PermCreateAlert:        RoleTechnician,
	PermCreateUpload:       RoleTechnician,
	PermResolveAlert:       RoleSupervisor,
	PermViewUsers:          RoleSupervisor,
	PermDeleteEquipment:    RoleManager,
	PermDeleteUpload:       RoleManager,
	PermManageInvitations:  RoleManager,
	PermCreateUser:         RoleAdministrator,
	PermEditUser:           RoleAdministrator,
	PermDeleteUser:         RoleAdministrator,
	PermManageMembers:      RoleAdministrator,
	PermEditOrganization:   RoleAdministrator,
	PermViewBilling:        RoleAdministrator,
	PermDeleteOrganization: RoleRoot,
	PermManagePlans:        RoleRoot,
}

// RequiredRole returns the minimum role for p. Unknown names return ErrUnknownPermission
// so a misspelled permission surfaces as an error instead of a silent allow or deny.
func RequiredRole(p Permission) (Role, error) {
	role, ok := permissionTable[p]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, string(p))
	}
	return role, nil
}

// Permissions returns all known permission names, sorted.
func Permissions() []Permission {
	out := make([]Permission, 0, len(permissionTable))
	for p := range permissionTable {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Can reports whether role satisfies permission p.
func Can(role Role, p Permission) (bool, error) {
	required, err := RequiredRole(p)
	if err != nil {
		return false, err
	}
	return AtLeast(role, required), nil
}
