package rbac

// Permission names one (resource, action) capability, optionally narrowed by
// conditions. Grants are additive only: there are no deny records, so any
// matching grant allows and the least restrictive condition wins.
type Permission struct {
	Resource   string            `json:"resource"`
	Action     string            `json:"action"`
	Conditions map[string]string `json:"conditions,omitempty"`
}

func NewPermission(resource, action string) Permission {
	return Permission{Resource: resource, Action: action}
}

// Context carries the request facts conditions are evaluated against.
type Context struct {
	DeveloperID     uint
	ResourceOwnerID uint
	ProjectOwnerID  uint
	Environment     string
}

// Matches reports whether this grant covers the required (resource, action)
// under the given context. An unknown condition key fails this grant only;
// other grants may still allow.
func (p Permission) Matches(resource, action string, pctx *Context) bool {
	if p.Resource != resource || p.Action != action {
		return false
	}
	for key, value := range p.Conditions {
		switch key {
		case "owner":
			if value == "self" && (pctx == nil || pctx.ResourceOwnerID != pctx.DeveloperID) {
				return false
			}
		case "project_owner":
			if value == "self" && (pctx == nil || pctx.ProjectOwnerID != pctx.DeveloperID) {
				return false
			}
		case "environment":
			if pctx == nil || pctx.Environment != value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// PermissionSet is the union of a principal's grants.
type PermissionSet []Permission

// Allows reports whether any grant in the set matches.
func (s PermissionSet) Allows(resource, action string, pctx *Context) bool {
	for _, p := range s {
		if p.Matches(resource, action, pctx) {
			return true
		}
	}
	return false
}

// Contains reports whether the set holds an unconditional grant for the
// pair.
func (s PermissionSet) Contains(resource, action string) bool {
	for _, p := range s {
		if p.Resource == resource && p.Action == action && len(p.Conditions) == 0 {
			return true
		}
	}
	return false
}
