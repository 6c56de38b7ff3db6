package domain

import (
	"slices"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

// Role constants define the allowed user roles. Roles are flat: no role
// inherits the capabilities of another.
const (
	RoleAdmin            = "Admin"
	RoleInventoryManager = "inventory_manager"
	RoleUser             = "user"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []string {
	return []string{RoleAdmin, RoleInventoryManager, RoleUser}
}

// IsValidRole checks whether the given role string is a valid user role.
func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles(), role)
}

var roleRank = map[string]int{
	RoleUser:             1,
	RoleInventoryManager: 2,
	RoleAdmin:            3,
}

// IsEscalation reports whether moving from one role to another is a strict
// promotion (user < inventory_manager < Admin). Roles only ever escalate.
func IsEscalation(from, to string) bool {
	fromRank, ok := roleRank[from]
	if !ok {
		return false
	}
	return roleRank[to] > fromRank
}

// Capability names an operation guarded by the access control gate.
type Capability string

const (
	CapAssignRole          Capability = "assign_role"
	CapViewUsers           Capability = "view_users"
	CapManageProducts      Capability = "manage_products"
	CapViewProducts        Capability = "view_products"
	CapManageCart          Capability = "manage_cart"
	CapCheckout            Capability = "checkout"
	CapViewPurchaseHistory Capability = "view_purchase_history"
)

var capabilityRoles = map[Capability][]string{
	CapAssignRole:          {RoleAdmin},
	CapViewUsers:           {RoleAdmin},
	CapManageProducts:      {RoleInventoryManager},
	CapViewProducts:        {RoleInventoryManager},
	CapManageCart:          {RoleUser},
	CapCheckout:            {RoleUser},
	CapViewPurchaseHistory: {RoleUser, RoleInventoryManager, RoleAdmin},
}

// ErrPermissionDenied is returned for every denied capability. The message
// is fixed so a denial never reveals anything about the target resource.
var ErrPermissionDenied = apperrors.Forbidden("you do not have permission to perform this action")

// Authorize reports whether role may exercise capability. The match is exact;
// unknown roles and unknown capabilities are denied.
func Authorize(role string, capability Capability) error {
	if slices.Contains(capabilityRoles[capability], role) {
		return nil
	}
	return ErrPermissionDenied
}

// CanActForOthers reports whether role may read another user's purchase
// history.
func CanActForOthers(role string) bool {
	return role == RoleAdmin || role == RoleInventoryManager
}
