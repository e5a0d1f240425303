package middleware

import (
	"net/http"
	"strings"

	"foodwaste_ussd/internal/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set for operator routes
const (
	AuthPhoneKey = "authPhone"
	AuthRoleKey  = "authRole"
)

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuthMiddleware admits requests carrying a valid operator token and
// exposes the operator's phone and role to later handlers
func JWTAuthMiddleware(jwtUtil *utils.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Operator token required"})
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Expected a Bearer operator token"})
			return
		}

		claims, err := jwtUtil.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Operator token is invalid or expired"})
			return
		}

		c.Set(AuthPhoneKey, claims.Phone)
		c.Set(AuthRoleKey, claims.Role)
		c.Next()
	}
}
