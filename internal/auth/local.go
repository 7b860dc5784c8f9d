package auth

import (
	"context"
	"errors"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// LocalProvider accepts a single static token. Development only.
type LocalProvider struct {
	Token  string
	logger internal.Logger
}

func NewLocalProvider(token string, logger internal.Logger) *LocalProvider {
	return &LocalProvider{Token: token, logger: logger}
}

func (a *LocalProvider) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	if token == a.Token {
		return &Identity{ID: "u1", Name: "Demo User", Email: "demo@focusroom.dev"}, nil
	}
	a.logger.Warnf("invalid token: %s", token)
	return nil, errors.New("invalid token")
}
