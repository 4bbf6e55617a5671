package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const ContextRequestIDKey = "request_id"

// RequestID echoes an inbound X-Request-Id or mints one, so log lines and
// error responses can be correlated with a client report.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			bytes := make([]byte, 8)
			_, _ = rand.Read(bytes)
			requestID = hex.EncodeToString(bytes)
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Writer.Header().Set("X-Request-Id", requestID)
		c.Next()
	}
}
