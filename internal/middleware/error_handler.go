package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

// ErrorHandler превращает ошибки, накопленные обработчиками через c.Error,
// в единый JSON-ответ. Серверные ошибки уходят в лог, клиентские - нет.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperrors.HTTPStatusFromError(err)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
		}

		c.JSON(status, gin.H{"error": err.Error()})
	}
}
