package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// MaintenanceKeyHeader carries the operator key for maintenance endpoints.
const MaintenanceKeyHeader = "X-Maintenance-Key"

// RequireMaintenanceKey checks the maintenance key header against the
// configured bcrypt hash. Mounted after AuthMiddleware and RequireAdmin,
// so only authenticated admins ever reach the comparison.
func RequireMaintenanceKey(keyHash string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// No hash configured means the endpoints stay closed.
		if keyHash == "" {
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).Error("Maintenance endpoint hit but MAINTENANCE_KEY_HASH is not configured")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "maintenance_disabled",
				"message": "Maintenance operations are not enabled on this server",
				"code":    "MAINTENANCE_DISABLED",
			})
			c.Abort()
			return
		}

		key := c.GetHeader(MaintenanceKeyHeader)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Maintenance key header is required",
				"code":    "MISSING_MAINTENANCE_KEY",
			})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).Warn("Maintenance key rejected")
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Invalid maintenance key",
				"code":    "INVALID_MAINTENANCE_KEY",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
