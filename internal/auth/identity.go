// ABOUTME: Identity model for authenticated actors: id, role, and granted scopes
// ABOUTME: Includes the role-to-default-scope mapping used when a token carries no scopes

package auth

// Role identifies the kind of actor making a request.
type Role string

// Known roles. Unknown role strings are accepted by the verifier but
// receive no default scopes.
const (
	RoleSuperAdmin        Role = "super_admin"
	RoleAdmin             Role = "admin"
	RoleAdminDOS          Role = "admin_dos"
	RoleAdminReception    Role = "admin_reception"
	RoleAdminStudentOps   Role = "admin_student_operations"
	RoleAdminSales        Role = "admin_sales"
	RoleTeacher           Role = "teacher"
	RoleTeacherDOS        Role = "teacher_dos"
	RoleStudent           Role = "student"
	RoleGuest             Role = "guest"
)

// Identity is the verified identity for one request. It is constructed by
// the verifier, never mutated afterwards, and discarded when the response
// has been produced.
type Identity struct {
	Actor      string   // subject claim: user/service id
	Role       Role     // actor role
	Scopes     []string // granted capability scopes
	Credential string   // raw credential, for downstream re-authentication
}

// roleScopes maps each role to its default scope set. Applied only when a
// verified token carries no explicit scopes claim.
var roleScopes = map[Role][]string{
	RoleSuperAdmin: {
		"identity:*", "finance:*", "academic:*", "attendance:*",
		"compliance:*", "student_services:*", "ops:*", "quality:*",
		"teacher:*", "student:*",
	},
	RoleAdmin: {
		"finance:*", "academic:*", "attendance:*", "compliance:*",
		"student_services:*", "quality:*",
	},
	RoleAdminDOS:        {"academic:*", "teacher:*", "quality:*"},
	RoleAdminReception:  {"student_services:*", "attendance:*"},
	RoleAdminStudentOps: {"student_services:*", "compliance:*"},
	RoleAdminSales:      {"finance:*"},
	RoleTeacher:         {"teacher:*", "academic:courses", "attendance:*"},
	RoleTeacherDOS:      {"teacher:*", "academic:*", "attendance:*"},
	RoleStudent:         {"student:*", "academic:courses"},
	RoleGuest:           {},
}

// DefaultScopes returns a copy of the default scope set for a role.
// Unknown roles get an empty set.
func DefaultScopes(role Role) []string {
	defaults := roleScopes[role]
	scopes := make([]string, len(defaults))
	copy(scopes, defaults)
	return scopes
}

// Anonymous returns the minimal identity used for the auth-exempt liveness
// method when no credential is supplied. It holds no scopes.
func Anonymous() *Identity {
	return &Identity{Actor: "anonymous", Role: RoleGuest, Scopes: nil}
}
