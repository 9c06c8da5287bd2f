package tenant

import "context"

type organizationContextKey struct{}

// ContextWithOrganization attaches the resolved organization to the context.
// The value is shared read-only by every downstream handler in the request.
func ContextWithOrganization(ctx context.Context, org *Organization) context.Context {
	if org == nil {
		return ctx
	}
	return context.WithValue(ctx, organizationContextKey{}, org)
}

// OrganizationFromContext extracts the resolved organization, if any.
func OrganizationFromContext(ctx context.Context) (*Organization, bool) {
	if ctx == nil {
		return nil, false
	}
	org, ok := ctx.Value(organizationContextKey{}).(*Organization)
	if !ok || org == nil {
		return nil, false
	}
	return org, true
}
