package middleware

import (
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"story-palace/internal/pkg/logger"
)

// SilentLogger logs requests but ignores "broken pipe" errors caused by
// client disconnects, which every closed snapshot stream produces.
func SilentLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		for _, e := range c.Errors {
			if isDisconnect(e.Err) {
				return
			}
		}

		if query != "" {
			path = path + "?" + query
		}
		log.Debug("[GIN]",
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		)
	}
}

func isDisconnect(err error) bool {
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
