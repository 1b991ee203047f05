package enums

// UserRole is the platform-wide role carried in access tokens.
type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleAdmin   UserRole = "admin"
)

var userRoles = newSet("user role", UserRoleStudent, UserRoleAdmin)

func (u UserRole) String() string { return string(u) }

func (u UserRole) IsValid() bool { return userRoles.contains(u) }

func ParseUserRole(value string) (UserRole, error) {
	return userRoles.parse(value)
}
