package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"praxihub/backend/pkg/jwt"
	"praxihub/backend/pkg/response"
)

// Context keys set by the auth middleware
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxEmail    = "email"
	CtxTokenID  = "jti"
	CtxTokenExp = "token_exp"
)

// Revocations answers whether a token id was revoked on logout
type Revocations interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTAuth requires a valid access token in Authorization: Bearer <token>.
// revoked may be nil, the blacklist check is then skipped.
func JWTAuth(jwtMgr *jwt.Manager, revoked Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, 10002, "missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(raw)
		if err != nil {
			response.Unauthorized(c, 10002, "token invalid or expired")
			c.Abort()
			return
		}

		if claims.TokenType != jwt.TokenTypeAccess {
			response.Unauthorized(c, 10002, "wrong token type")
			c.Abort()
			return
		}

		if revoked != nil {
			// Redis errors fail open, same as the rate limiter
			if hit, err := revoked.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && hit {
				response.Unauthorized(c, 10002, "token revoked")
				c.Abort()
				return
			}
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth sets the caller when a valid access token is present and
// lets anonymous requests through
func OptionalJWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			if claims, err := jwtMgr.ParseToken(raw); err == nil && claims.TokenType == jwt.TokenTypeAccess {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RoleAuth allows the request when the caller has one of allowedRoles
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(CtxRole)
		if userRole == "" {
			response.Unauthorized(c, 10002, "not authenticated")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "access denied")
		c.Abort()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxRole, claims.Role)
	c.Set(CtxEmail, claims.Email)
	c.Set(CtxTokenID, claims.ID)
	if claims.ExpiresAt != nil {
		c.Set(CtxTokenExp, claims.ExpiresAt.Time)
	}
}
