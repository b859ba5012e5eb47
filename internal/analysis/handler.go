package analysis

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recommendations returns the static hardening suggestions.
func Recommendations() []string {
	out := make([]string, len(defaultRecommendations))
	copy(out, defaultRecommendations)
	return out
}

// RegisterRoutes wires the read-only analysis endpoints.
func RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/recommendations", func(c *gin.Context) {
		recs := Recommendations()
		c.JSON(http.StatusOK, gin.H{"recommendations": recs, "count": len(recs)})
	})
}
