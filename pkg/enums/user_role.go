package enums

// UserRole is the coarse role carried in access tokens.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) IsValid() bool { return known(r, []UserRole{UserRoleUser, UserRoleAdmin}) }
