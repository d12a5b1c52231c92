package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pengels22/Shop-Controller/internal/shared/id"
)

// RequestIDHeader carries the request id on both directions.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key handlers can read the id from.
const RequestIDKey = "request_id"

// RequestID tags every request with a prefixed ULID, honoring an id the
// client already supplied, and echoes it in the response so log lines
// and UI error reports can be correlated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = id.NewRequestID().String()
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}
