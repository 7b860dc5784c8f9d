package auth

import "context"

// Identity is a normalized authenticated identity returned by a
// Provider. It contains facts only, no decisions.
type Identity struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}

// Provider validates bearer tokens. The implementation (local token,
// HS256 JWT, or remote auth service) is chosen at startup from config.
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}
