package gateway

// Access is the role threshold a route declares at composition time.
type Access int

const (
	// AccessAnyAuthenticated admits every verified identity.
	AccessAnyAuthenticated Access = iota
	// AccessAdminOrAbove admits ADMIN and SUPER_ADMIN.
	AccessAdminOrAbove
	// AccessSuperAdminOnly admits the platform operator role alone.
	AccessSuperAdminOnly
)

// Requirement is the declarative capability tag baked into a wrapped handler.
type Requirement struct {
	Access Access

	// NeedsTenant marks routes whose data is organization-scoped. Platform
	// routes opt out and run with no resolved organization.
	NeedsTenant bool
}

var (
	AnyAuthenticated = Requirement{Access: AccessAnyAuthenticated, NeedsTenant: true}
	AdminOrAbove     = Requirement{Access: AccessAdminOrAbove, NeedsTenant: true}
	SuperAdminOnly   = Requirement{Access: AccessSuperAdminOnly, NeedsTenant: false}
)

// Platform returns a copy of the requirement with tenant resolution disabled.
func (r Requirement) Platform() Requirement {
	r.NeedsTenant = false
	return r
}
