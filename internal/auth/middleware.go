package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// EntryIDKey is the gin context key holding the entry ID from a verified decision token.
const EntryIDKey = "decisionEntryID"

// DecisionToken verifies the optional "token" query parameter on decision links.
// Links without a token pass through unchanged.
func DecisionToken(t *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.Next()
			return
		}
		claims, err := t.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid or expired decision link."})
			return
		}
		c.Set(EntryIDKey, claims.Subject)
		c.Next()
	}
}
