package authz

// Role is an organization- or instance-scoped role grantable via
// addOrgMember/changeOrgMember (spec §8.2 S3). Adapted from the
// teacher's internal/auth/roles.go role/permission catalog, replacing
// its case-management roles with the IAM roles spec.md's scenarios
// name.
type Role string

const (
	RoleOrgOwner       Role = "ORG_OWNER"
	RoleOrgUserManager Role = "ORG_USER_MANAGER"
	RoleOrgViewer      Role = "ORG_VIEWER"

	RoleInstanceOwner Role = "IAM_OWNER"
)

// Permission is a specific action on a resource, used by the
// authorization Checker's `action` field.
type Permission string

const (
	PermOrgRead           Permission = "org.read"
	PermOrgWrite          Permission = "org.write"
	PermOrgMemberWrite    Permission = "org.member.write"
	PermUserRead          Permission = "user.read"
	PermUserWrite         Permission = "user.write"
	PermPolicyRead        Permission = "policy.read"
	PermPolicyWrite       Permission = "policy.write"
	PermPersonalTokenWrite Permission = "pat.write"
)

// RolePermissions maps each role to its default permission set, used by
// Checker implementations (or tests) that resolve permissions locally
// instead of round-tripping to an external policy engine.
var RolePermissions = map[Role][]Permission{
	RoleInstanceOwner: {
		PermOrgRead, PermOrgWrite, PermOrgMemberWrite,
		PermUserRead, PermUserWrite,
		PermPolicyRead, PermPolicyWrite,
		PermPersonalTokenWrite,
	},
	RoleOrgOwner: {
		PermOrgRead, PermOrgWrite, PermOrgMemberWrite,
		PermUserRead, PermUserWrite,
		PermPolicyRead, PermPolicyWrite,
		PermPersonalTokenWrite,
	},
	RoleOrgUserManager: {
		PermOrgRead, PermUserRead, PermUserWrite, PermOrgMemberWrite,
	},
	RoleOrgViewer: {
		PermOrgRead, PermUserRead, PermPolicyRead,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether userRoles contains any of requiredRoles.
func HasAnyRole(userRoles []Role, requiredRoles ...Role) bool {
	for _, ur := range userRoles {
		for _, rr := range requiredRoles {
			if ur == rr {
				return true
			}
		}
	}
	return false
}
