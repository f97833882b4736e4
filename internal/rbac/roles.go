package rbac

// Role is one of the fixed platform roles. Permission implication is a
// precomputed table; adding a role means extending these maps, not adding
// conditionals elsewhere.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleDeveloper  Role = "developer"
	RoleReadOnly   Role = "read_only"
	RoleSupport    Role = "support"
	RoleAuditor    Role = "auditor"
)

var allRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleDeveloper, RoleReadOnly, RoleSupport, RoleAuditor}

// inheritedRoles lists every role a role inherits permissions from.
var inheritedRoles = map[Role][]Role{
	RoleSuperAdmin: {RoleAdmin, RoleDeveloper, RoleReadOnly, RoleSupport, RoleAuditor},
	RoleAdmin:      {RoleDeveloper, RoleReadOnly, RoleSupport},
	RoleDeveloper:  {RoleReadOnly},
	RoleSupport:    {RoleReadOnly},
	RoleAuditor:    {RoleReadOnly},
	RoleReadOnly:   {},
}

// directPermissions holds the permissions assigned to a role before
// inheritance.
var directPermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		NewPermission("system", "manage"),
		NewPermission("users", "delete"),
		NewPermission("developers", "suspend"),
		NewPermission("audit", "configure"),
	},
	RoleAdmin: {
		NewPermission("developers", "create"),
		NewPermission("developers", "update"),
		NewPermission("developers", "read"),
		NewPermission("projects", "manage"),
		NewPermission("audit", "read"),
		NewPermission("system", "monitor"),
	},
	RoleDeveloper: {
		NewPermission("projects", "create"),
		NewPermission("projects", "update_own"),
		NewPermission("projects", "delete_own"),
		NewPermission("tokens", "generate"),
		NewPermission("tokens", "refresh"),
		NewPermission("api", "access"),
		NewPermission("profile", "update_own"),
	},
	RoleSupport: {
		NewPermission("developers", "read"),
		NewPermission("projects", "read"),
		NewPermission("tokens", "read"),
		NewPermission("support", "assist"),
	},
	RoleAuditor: {
		NewPermission("audit", "read"),
		NewPermission("compliance", "report"),
		NewPermission("logs", "read"),
		NewPermission("security", "monitor"),
	},
	RoleReadOnly: {
		NewPermission("profile", "read_own"),
		NewPermission("projects", "read_own"),
		NewPermission("documentation", "read"),
	},
}

// rolePermissions is the flattened implication table, built once.
var rolePermissions = map[Role]PermissionSet{}

func init() {
	for _, role := range allRoles {
		var set PermissionSet
		set = append(set, directPermissions[role]...)
		for _, inherited := range inheritedRoles[role] {
			set = append(set, directPermissions[inherited]...)
		}
		rolePermissions[role] = set
	}
}

func (r Role) Valid() bool {
	_, ok := directPermissions[r]
	return ok
}

// Permissions returns the role's full permission set including inheritance.
// The returned slice is shared; callers must not mutate it.
func (r Role) Permissions() PermissionSet {
	return rolePermissions[r]
}
