package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	sharedutils "github.com/itops-console/console-backend/shared/utils"
	"github.com/itops-console/console-backend/v1/models"
	authutils "github.com/itops-console/console-backend/v1/utils"
)

// JWTAuthConfig contains configuration for JWT authentication
type JWTAuthConfig struct {
	// Secret is the HS256 signing key shared with the token issuer
	Secret         string
	ExpectedIssuer string
	// Leeway tolerates clock skew on exp/nbf/iat
	Leeway    time.Duration
	SkipPaths []string
}

// Validate checks that the configuration can authenticate anything
func (c JWTAuthConfig) Validate() error {
	if c.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if len(c.Secret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	return nil
}

// JWTAuthMiddleware provides JWT authentication functionality
type JWTAuthMiddleware struct {
	secret    []byte
	parser    *jwt.Parser
	skipPaths []string
}

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config JWTAuthConfig) *JWTAuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.ExpectedIssuer != "" {
		opts = append(opts, jwt.WithIssuer(config.ExpectedIssuer))
	}

	skipPaths := config.SkipPaths
	if skipPaths == nil {
		skipPaths = []string{"/health", "/metrics"}
	}

	return &JWTAuthMiddleware{
		secret:    []byte(config.Secret),
		parser:    jwt.NewParser(opts...),
		skipPaths: skipPaths,
	}
}

// AuthenticateJWT returns a middleware function that validates JWT tokens
func (j *JWTAuthMiddleware) AuthenticateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || j.shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := authutils.ExtractBearerToken(r)
		if err != nil {
			slog.Warn("Failed to extract bearer token", "error", err, "path", r.URL.Path, "method", r.Method)
			sharedutils.RespondWithError(w, http.StatusUnauthorized, "Invalid or missing authorization header")
			return
		}

		user, err := j.validateToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				slog.Warn("Token is expired", "path", r.URL.Path)
				sharedutils.RespondWithError(w, http.StatusUnauthorized, "Access token has expired")
				return
			}
			slog.Warn("Token validation failed", "error", err, "path", r.URL.Path, "method", r.Method)
			sharedutils.RespondWithError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		slog.Debug("User authenticated",
			"user_id", user.UserID,
			"email", user.Email,
			"role", user.Role,
			"path", r.URL.Path,
			"method", r.Method)

		ctx := authutils.SetAuthenticatedUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken validates a JWT token and returns the authenticated user
func (j *JWTAuthMiddleware) validateToken(tokenString string) (*models.AuthenticatedUser, error) {
	claims := &models.UserClaims{}
	_, err := j.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleTechnician, models.RoleViewer:
	default:
		return nil, fmt.Errorf("unknown role: %q", claims.Role)
	}

	return models.NewAuthenticatedUser(claims), nil
}

// shouldSkipAuth determines if authentication should be skipped for this path
func (j *JWTAuthMiddleware) shouldSkipAuth(path string) bool {
	for _, skipPath := range j.skipPaths {
		if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
			return true
		}
	}
	return false
}

// RequireRoles rejects requests whose authenticated user holds none of roles
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := authutils.GetAuthenticatedUser(r.Context()); err != nil {
				sharedutils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, err := authutils.RequireAnyRole(r, roles...); err != nil {
				slog.Warn("Access denied", "error", err, "path", r.URL.Path, "method", r.Method)
				sharedutils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
