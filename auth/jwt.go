package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Context keys for operator information
const (
	OperatorIDKey = "operator_id"
	OperatorKey   = "operator"
	ClaimsKey     = "claims"
)

// RoleOperator may drive the wheel and settle payouts.
const RoleOperator = "operator"

// Claims represents the JWT claims structure
type Claims struct {
	OperatorID string `json:"operator_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT middleware configuration
type JWTConfig struct {
	Secret      string
	TokenPrefix string // "Bearer"
	// QueryParam is accepted when the header is absent, for EventSource
	// and WebSocket clients that cannot set headers.
	QueryParam string
	SkipPaths  []string
}

// DefaultJWTConfig returns default JWT configuration
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:      secret,
		TokenPrefix: "Bearer",
		QueryParam:  "token",
		SkipPaths:   []string{"/health", "/api/health"},
	}
}

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string, logger zerolog.Logger) gin.HandlerFunc {
	return JWTMiddlewareWithConfig(DefaultJWTConfig(secret), logger)
}

// JWTMiddlewareWithConfig creates a JWT middleware with custom configuration
func JWTMiddlewareWithConfig(config JWTConfig, logger zerolog.Logger) gin.HandlerFunc {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		tokenString, err := extractToken(c, config)
		if err != nil {
			logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected request without a usable token")
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := ParseToken(config.Secret, tokenString)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to parse JWT token")
			abortUnauthorized(c, "Invalid or expired token")
			return
		}
		if claims.Role != RoleOperator {
			logger.Warn().Str("operator_id", claims.OperatorID).Str("role", claims.Role).Msg("Token lacks operator role")
			abortUnauthorized(c, "Token is not an operator token")
			return
		}

		c.Set(OperatorIDKey, claims.OperatorID)
		c.Set(OperatorKey, claims.Name)
		c.Set(ClaimsKey, claims)

		logger.Debug().
			Str("operator_id", claims.OperatorID).
			Msg("JWT authentication successful")

		c.Next()
	}
}

func extractToken(c *gin.Context, config JWTConfig) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if config.QueryParam != "" {
			if token := c.Query(config.QueryParam); token != "" {
				return token, nil
			}
		}
		return "", errors.New("Missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != config.TokenPrefix || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("Invalid Authorization header format. Expected: Bearer <token>")
	}
	return strings.TrimSpace(parts[1]), nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.NewErrorResponse(http.StatusUnauthorized, c.Request.URL.Path, types.ErrorDetail{
		ErrorMessage: message,
		ErrorCode:    apperrors.ErrUnauthorized,
		ErrorKind:    string(apperrors.KindRejection),
	}))
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// GetOperatorID extracts the operator ID from context
func GetOperatorID(c *gin.Context) (string, bool) {
	id, exists := c.Get(OperatorIDKey)
	if !exists {
		return "", false
	}
	idStr, ok := id.(string)
	return idStr, ok
}

// GetOperator extracts the operator name from context
func GetOperator(c *gin.Context) (string, bool) {
	name, exists := c.Get(OperatorKey)
	if !exists {
		return "", false
	}
	nameStr, ok := name.(string)
	return nameStr, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claimsObj, ok := claims.(*Claims)
	return claimsObj, ok
}

// GenerateToken mints an operator token.
func GenerateToken(secret string, operatorID, name string, expiration time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		OperatorID: operatorID,
		Name:       name,
		Role:       RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
