package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/auth"
	"github.com/shepherd-hub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextTenantID is the key for the caller's tenant ID in gin context.
	ContextTenantID = "tenant_id"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
// The token is read from the Authorization header, or from the token query parameter
// for WebSocket upgrades where browsers cannot set headers.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization header")
				c.Abort()
				return
			}
			raw = parts[1]
		} else if q := c.Query("token"); q != "" && c.IsWebsocket() {
			raw = q
		}
		if raw == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextTenantID, claims.TenantID)
		c.Next()
	}
}

// TenantID returns the tenant of the authenticated caller.
func TenantID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextTenantID).(uuid.UUID)
}

// UserID returns the authenticated caller's user ID.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}
