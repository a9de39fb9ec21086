// Package rbac implements the role-based permission model that gates data
// visibility. Lookups are pure and fail closed: a role the gate does not
// know about holds no permissions at all.
package rbac

type (
	Role       string
	Permission string

	// Policy maps each role to the set of permissions it holds.
	Policy map[Role][]Permission
)

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

const (
	PermViewCategories  Permission = "view_categories"
	PermAddCategory     Permission = "add_category"
	PermEditCategory    Permission = "edit_category"
	PermDeleteCategory  Permission = "delete_category"
	PermViewPerson      Permission = "view_person"
	PermAddPerson       Permission = "add_person"
	PermEditPerson      Permission = "edit_person"
	PermDeletePerson    Permission = "delete_person"
	PermViewAllTxns     Permission = "view_all_transactions"
	PermViewOwnTxns     Permission = "view_own_transactions"
	PermAddTransaction  Permission = "add_transaction"
	PermViewAllReports  Permission = "view_all_analytics"
	PermViewOwnReports  Permission = "view_own_analytics"
)

// Gate answers allow/deny questions against an immutable policy. The policy
// is copied at construction so later mutation of the caller's map cannot
// change grant decisions. Gates are read-only and safe for concurrent use.
type Gate struct {
	grants map[Role]map[Permission]struct{}
}

// NewGate builds a gate from the given policy.
func NewGate(policy Policy) *Gate {
	grants := make(map[Role]map[Permission]struct{}, len(policy))
	for role, perms := range policy {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		grants[role] = set
	}
	return &Gate{grants: grants}
}

// DefaultPolicy returns the stock role mapping: admins hold every
// permission, employees record their own data and read the shared taxonomy.
func DefaultPolicy() Policy {
	return Policy{
		RoleAdmin: {
			PermViewCategories, PermAddCategory, PermEditCategory, PermDeleteCategory,
			PermViewPerson, PermAddPerson, PermEditPerson, PermDeletePerson,
			PermViewAllTxns, PermViewOwnTxns, PermAddTransaction,
			PermViewAllReports, PermViewOwnReports,
		},
		RoleEmployee: {
			PermViewCategories,
			PermViewPerson,
			PermViewOwnTxns, PermAddTransaction,
			PermViewOwnReports,
		},
	}
}

// HasPermission reports whether role holds permission. It never errors:
// an unmapped role, or a role with an empty permission set, denies
// everything.
func (g *Gate) HasPermission(role Role, permission Permission) bool {
	set, ok := g.grants[role]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}
