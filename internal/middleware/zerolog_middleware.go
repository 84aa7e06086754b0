package middleware

import (
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

var (
	loggerSkipPathsPrefix = []string{
		"GET /api/health",
		"HEAD /api/health",
		"GET /favicon.ico",
	}
)

type ZerologMiddleware struct{}

func NewZerologMiddleware() *ZerologMiddleware {
	return &ZerologMiddleware{}
}

func (m *ZerologMiddleware) Init() error {
	return nil
}

func (m *ZerologMiddleware) logPath(path string) bool {
	for _, prefix := range loggerSkipPathsPrefix {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func (m *ZerologMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tStart := time.Now()

		c.Next()

		code := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		// Query strings can carry authorization codes, only the path is logged
		path := c.Request.URL.Path
		latency := time.Since(tStart).String()

		if !m.logPath(method + " " + path) {
			tlog.HTTP.Debug().Str("method", method).Str("path", path).Int("status", code).Str("latency", latency).Msg("Request")
			return
		}

		event := tlog.HTTP.Info()
		switch {
		case code >= 500:
			event = tlog.HTTP.Error()
		case code >= 400:
			event = tlog.HTTP.Warn()
		}

		event.Str("method", method).Str("path", path).Str("clientIp", clientIP).Str("userId", c.GetString("userId")).Int("status", code).Str("latency", latency).Msg("Request")
	}
}
