package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s Service) handleQuarters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"quarters": s.router.Quarters()})
}

// handleResolveQuarter answers which quarter form a date would route
// to, with the same user-facing message draft validation produces.
func (s Service) handleResolveQuarter(c *gin.Context) {
	date := c.Query("date")
	if message := s.router.ValidateAvailability(date); message != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return
	}

	quarter, _ := s.router.ResolveForDate(date)
	c.JSON(http.StatusOK, gin.H{"quarter": quarter})
}
