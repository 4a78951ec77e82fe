package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"astromissions/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID = "userID"
	CtxRole   = "role"
	CtxClaims = "claims"
)

// RevocationChecker 查询令牌是否已注销。
type RevocationChecker interface {
	Revoked(ctx context.Context, jti string) (bool, error)
}

// AuthMiddleware 校验 Bearer 令牌并将 userID、role 写入上下文。
func AuthMiddleware(issuer *token.Issuer, revoked RevocationChecker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := issuer.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.Revoked(c.Request.Context(), claims.ID)
			if err != nil {
				if logger != nil {
					logger.Error("revocation lookup failed", slog.String("error", err.Error()))
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if isRevoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		uid, _ := claims.UserID()
		role := strings.TrimSpace(strings.ToLower(claims.Role))
		if role == "" {
			role = "user"
		}
		c.Set(CtxUserID, uid)
		c.Set(CtxRole, role)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}

// RequireRole 只放行指定角色，需放在 AuthMiddleware 之后。
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User role '" + role + "' is not authorized to access this route"})
	}
}

// UserID returns the authenticated user id, or 0 outside AuthMiddleware.
func UserID(c *gin.Context) uint {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}

// Claims returns the parsed token claims set by AuthMiddleware.
func Claims(c *gin.Context) *token.Claims {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.Claims)
	return claims
}
