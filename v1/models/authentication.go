package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims represents the claims of a console access token
type UserClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// AuthenticatedUser represents the authenticated user context
type AuthenticatedUser struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewAuthenticatedUser creates an AuthenticatedUser from validated claims
func NewAuthenticatedUser(claims *UserClaims) *AuthenticatedUser {
	user := &AuthenticatedUser{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user
}

// HasAnyRole checks if the user has any of the specified roles
func (u *AuthenticatedUser) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user may perform administrative operations
func (u *AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}
