package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionCookie is the cookie Clerk stores the session token in.
const SessionCookie = "__session"

// AuthUser represents an authenticated user from a session token
type AuthUser struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

// contextKey is used for storing user in context
type contextKey string

const (
	userContextKey contextKey = "authenticated_user"
)

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	// Key is a PEM encoded RSA public key (RS256) or an HMAC secret (HS256).
	Key    string
	Logger *zap.Logger
	// AuthorizedParties, when set, must contain the token's azp claim.
	AuthorizedParties []string
	SkipPaths         []string // Paths to skip JWT validation
}

// keyFunc resolves the verification key once at startup.
func keyFunc(key string) (jwt.Keyfunc, []string, error) {
	if strings.HasPrefix(strings.TrimSpace(key), "-----BEGIN") {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(key))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid RSA public key: %w", err)
		}
		return func(*jwt.Token) (interface{}, error) { return pub, nil },
			[]string{jwt.SigningMethodRS256.Alg()}, nil
	}
	if key == "" {
		return nil, nil, fmt.Errorf("session verification key is empty")
	}
	secret := []byte(key)
	return func(*jwt.Token) (interface{}, error) { return secret, nil },
		[]string{jwt.SigningMethodHS256.Alg()}, nil
}

// JWTMiddleware creates a middleware that validates Clerk session tokens. The
// token is read from the Authorization header, then the session cookie.
func JWTMiddleware(config JWTConfig) (echo.MiddlewareFunc, error) {
	keys, methods, err := keyFunc(config.Key)
	if err != nil {
		return nil, err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Skip JWT validation for certain paths
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			tokenString, ok := extractToken(c)
			if !ok {
				config.Logger.Warn("Missing session token",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Unauthorized",
					"code":  "MISSING_SESSION",
				})
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, keys)
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Unauthorized",
					"code":  "INVALID_TOKEN",
				})
			}

			userID, _ := claims.GetSubject()
			if userID == "" {
				config.Logger.Warn("Session token has no subject", zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Unauthorized",
					"code":  "INVALID_CLAIMS",
				})
			}

			if len(config.AuthorizedParties) > 0 {
				azp, _ := claims["azp"].(string)
				if !contains(config.AuthorizedParties, azp) {
					config.Logger.Warn("Session token issued for another party",
						zap.String("azp", azp),
						zap.String("path", path))
					return c.JSON(http.StatusUnauthorized, echo.Map{
						"error": "Unauthorized",
						"code":  "INVALID_AUTHORIZED_PARTY",
					})
				}
			}

			sessionID, _ := claims["sid"].(string)
			email, _ := claims["email"].(string)
			authUser := &AuthUser{
				UserID:    userID,
				SessionID: sessionID,
				Email:     email,
			}

			// Store user in request context
			ctx := context.WithValue(c.Request().Context(), userContextKey, authUser)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", userID)

			config.Logger.Debug("User authenticated successfully",
				zap.String("user_id", userID),
				zap.String("path", path))

			return next(c)
		}
	}, nil
}

func extractToken(c echo.Context) (string, bool) {
	if header := c.Request().Header.Get("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		return token, token != header && token != ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(c echo.Context) (*AuthUser, error) {
	user, ok := c.Request().Context().Value(userContextKey).(*AuthUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("no authenticated user found in context")
	}
	return user, nil
}

// WithUser returns ctx carrying user, as the middleware stores it.
func WithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// RequireAuth returns the authenticated user or a 401 error for the echo
// error handler.
func RequireAuth(c echo.Context) (*AuthUser, error) {
	user, err := GetUserFromContext(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return user, nil
}
