package entity

// RoleSystem grants broader read access to sensitive fields without
// being the owner.
const RoleSystem = "system"

// AuthPrincipal is built per request from a verified token. Never persisted.
type AuthPrincipal struct {
	ID       string
	Username string
	Email    string
	Roles    []string
}

func (a AuthPrincipal) IsOwner(userID string) bool {
	return a.ID != "" && a.ID == userID
}

func (a AuthPrincipal) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}

	return false
}

// UserIdentity is the identity-provider's view of a user.
type UserIdentity struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}
