package middleware

import (
	"strings"

	"github.com/steveiliop56/adhub/internal/config"

	"github.com/gin-gonic/gin"
)

// UserResolver turns a request into the id of the signed in user, empty when there is none.
type UserResolver interface {
	ResolveUser(c *gin.Context) string
}

// HeaderUserResolver trusts the user header set by an authenticating reverse proxy.
type HeaderUserResolver struct {
	Header string
}

func (r HeaderUserResolver) ResolveUser(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(r.Header))
}

type ContextMiddleware struct {
	resolver UserResolver
}

func NewContextMiddleware(resolver UserResolver) *ContextMiddleware {
	return &ContextMiddleware{
		resolver: resolver,
	}
}

func (m *ContextMiddleware) Init() error {
	return nil
}

func (m *ContextMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := m.resolver.ResolveUser(c)

		c.Set("context", &config.UserContext{
			UserID:     userID,
			IsLoggedIn: userID != "",
		})

		if userID != "" {
			c.Set("userId", userID)
		}

		c.Next()
	}
}
