package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/toxikmusic/traxx-current-sub001/pkg/utils"
)

// RequestIDHeader carries the id correlating a request across log lines.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns a request id when the caller did not send one
// and echoes it back on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = utils.GenerateRequestID()
		}
		c.Set(RequestIDHeader, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestID returns the id assigned to this request, if any.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDHeader)
}
