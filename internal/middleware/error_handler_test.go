package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

func newErrorRouter(fail error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(logger.NewNop()))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(fail)
	})
	return router
}

func TestErrorHandler_MapsSentinelToStatus(t *testing.T) {
	router := newErrorRouter(apperrors.ErrAccessDenied)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), apperrors.ErrAccessDenied.Error())
}

func TestErrorHandler_UnknownErrorIsInternal(t *testing.T) {
	router := newErrorRouter(apperrors.ErrInternalServer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
