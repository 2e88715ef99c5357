package auth

// Principal is the authenticated caller attached to a request context: the
// account identity plus the role snapshot taken from its token.
type Principal struct {
	AccountID int64
	Username  string
	Roles     []RoleID
}

// HasAnyRole reports whether the principal holds at least one of the
// required roles (OR semantics). An empty required set authorizes nobody.
func (p Principal) HasAnyRole(required ...RoleID) bool {
	for _, want := range required {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
