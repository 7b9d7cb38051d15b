package engine

// Principal is the resolved identity of the caller. A nil *Principal means
// the request is anonymous. Credential verification happens upstream in the
// auth middleware; the engine only ever sees the resolved result.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"` // "admin", "staff" or "student"
	FullName string `json:"full_name"`
}

// IsAdmin reports whether the principal has the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == "admin"
}
