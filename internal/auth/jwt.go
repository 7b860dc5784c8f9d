package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kalviumcommunity/FocusRoom/internal"
)

// Claims is the token payload the identity service mints for us.
type Claims struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url,omitempty"`

	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 access tokens. The subject claim is the
// stable user id.
type JWTProvider struct {
	secret []byte
	logger internal.Logger
}

func NewJWTProvider(secret string, logger internal.Logger) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), logger: logger}
}

func (a *JWTProvider) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		a.logger.Warnf("jwt validation failed: %v", err)
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return &Identity{
		ID:       claims.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		PhotoURL: claims.PhotoURL,
	}, nil
}
