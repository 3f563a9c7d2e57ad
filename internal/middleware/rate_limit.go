package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatverse/internal/service"
	"chatverse/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Лимитируем по пользователю, для неаутентифицированных - по IP
		key := c.ClientIP()
		if userID, ok := UserIDFromContext(c); ok {
			key = "user:" + strconv.FormatInt(userID, 10)
		}

		allowed, err := m.rateLimitService.Allow(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			m.log.Warn("Rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
