package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kalviumcommunity/FocusRoom/internal"
	"github.com/kalviumcommunity/FocusRoom/internal/storage"
)

// Middleware resolves the bearer token to a UserProfile and stores it
// in the gin context under "user". A profile record is created on
// first sight of a new identity.
func Middleware(provider Provider, profiles storage.ProfileRepository, logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			ident, err := provider.ValidateToken(c.Request.Context(), token)
			if err == nil {
				profile, err := ensureProfile(c.Request.Context(), profiles, ident)
				if err != nil {
					logger.Errorf("auth: failed to load profile for %s: %v", ident.ID, err)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
					return
				}
				c.Set("user", profile)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}

// ensureProfile mirrors the create-if-missing behavior of the signup
// flow: a fresh profile starts idle with zeroed daily counters.
func ensureProfile(ctx context.Context, profiles storage.ProfileRepository, ident *Identity) (*internal.UserProfile, error) {
	profile, err := profiles.GetProfile(ctx, ident.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	profile = &internal.UserProfile{
		ID:        ident.ID,
		Name:      ident.Name,
		Email:     ident.Email,
		PhotoURL:  ident.PhotoURL,
		Status:    internal.UserIdle,
		CreatedAt: time.Now(),
	}
	if err := profiles.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
