package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ctxOperatorClaims is the gin context key for operator claims.
const ctxOperatorClaims = "aegis_operator_claims"

// RequireOperator returns a Gin middleware that enforces a valid operator
// Bearer token. On success it injects the *OperatorClaims into the context.
func RequireOperator(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer operator token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid operator token: " + err.Error(),
			})
			return
		}

		c.Set(ctxOperatorClaims, claims)
		c.Next()
	}
}

// RequireAdmin returns a Gin middleware that additionally enforces the admin
// role. Use on destructive management routes.
func RequireAdmin(tokens *TokenIssuer) gin.HandlerFunc {
	requireToken := RequireOperator(tokens)
	return func(c *gin.Context) {
		requireToken(c)
		if c.IsAborted() {
			return
		}
		if claims := ClaimsFromCtx(c); claims == nil || claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin role required",
			})
		}
	}
}

// ClaimsFromCtx retrieves the operator claims injected by RequireOperator.
// Returns nil if no operator token is present.
func ClaimsFromCtx(c *gin.Context) *OperatorClaims {
	v, _ := c.Get(ctxOperatorClaims)
	claims, _ := v.(*OperatorClaims)
	return claims
}
