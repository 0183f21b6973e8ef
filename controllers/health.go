package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness plus enough configuration to spot a misdeployed
// instance at a glance.
func Health(version, timezone string, adminPhones int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":                  "healthy",
			"version":                 version,
			"timezone":                timezone,
			"admin_phones_configured": adminPhones,
		})
	}
}
