package auth

import "strings"

// GuestPrefix marks a trusted guest token: "guest:{id}:{name}". Guest tokens
// carry no signature; the literal is accepted as-is.
const GuestPrefix = "guest:"

// Identity is the authenticated principal attached to a request or socket.
type Identity struct {
	UserID      string
	DisplayName string
	IsGuest     bool
}

// ParseGuestToken extracts the identity from a guest token, or ok=false.
func ParseGuestToken(token string) (Identity, bool) {
	if !strings.HasPrefix(token, GuestPrefix) {
		return Identity{}, false
	}
	rest := strings.TrimPrefix(token, GuestPrefix)
	id, name, found := strings.Cut(rest, ":")
	if !found || id == "" || name == "" {
		return Identity{}, false
	}
	return Identity{UserID: "guest:" + id, DisplayName: name, IsGuest: true}, true
}

// VerifyBearer resolves a bearer token of either accepted form: a signed JWT
// or a guest literal.
func (m *JWTManager) VerifyBearer(token string) (Identity, error) {
	if ident, ok := ParseGuestToken(token); ok {
		return ident, nil
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, DisplayName: claims.DisplayName}, nil
}
