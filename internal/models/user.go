package models

// UserRole is the role claim carried by access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// StaffRoles lists the roles allowed to review enrollments and manage courses.
func StaffRoles() []UserRole {
	return []UserRole{RoleSuperAdmin, RoleAdmin, RoleTeacher}
}

// IsStaff reports whether the role may act on other students' enrollments.
func (r UserRole) IsStaff() bool {
	for _, staff := range StaffRoles() {
		if r == staff {
			return true
		}
	}
	return false
}
