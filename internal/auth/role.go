package auth

import (
	"fmt"
	"strings"
)

// Role identifies the stored role of a user. RESIDENT < BOARD_MEMBER < ADMIN
// form a linear hierarchy; SUPER_ADMIN sits outside it as the platform
// operator role and satisfies every comparison.
type Role string

const (
	RoleResident    Role = "RESIDENT"
	RoleBoardMember Role = "BOARD_MEMBER"
	RoleAdmin       Role = "ADMIN"
	RoleSuperAdmin  Role = "SUPER_ADMIN"
)

var roleRank = map[Role]int{
	RoleResident:    1,
	RoleBoardMember: 2,
	RoleAdmin:       3,
}

// ParseRole normalizes a wire/database role value.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleResident, RoleBoardMember, RoleAdmin, RoleSuperAdmin:
		return role, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

// Valid reports whether the role is one of the four known values.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// IsSuperAdmin reports whether the role is the platform operator role.
func (r Role) IsSuperAdmin() bool { return r == RoleSuperAdmin }

// AtLeast reports whether the role grants at least the authority of min.
// SUPER_ADMIN passes every threshold; only SUPER_ADMIN passes a
// SUPER_ADMIN threshold.
func (r Role) AtLeast(min Role) bool {
	if r == RoleSuperAdmin {
		return true
	}
	if min == RoleSuperAdmin {
		return false
	}
	return roleRank[r] >= roleRank[min]
}
