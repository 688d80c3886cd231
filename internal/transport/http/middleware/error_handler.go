package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sfucore/internal/platform/apperr"
	"sfucore/internal/platform/logging"
)

// ErrorHandler turns the last gin.Context error into a structured JSON
// response, using apperr.HTTPStatus when the error carries one.
func ErrorHandler(log *logging.Logger) gin.HandlerFunc {
	if log == nil {
		log = logging.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperr.As(err); ok {
			log.WithContext(c.Request.Context()).Errorw("admin api error",
				"code", appErr.Code,
				"message", appErr.Message,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.JSON(appErr.HTTPStatus(), gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		log.WithContext(c.Request.Context()).Errorw("unhandled admin api error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(apperr.CodeInternal),
			"message": "internal server error",
		})
	}
}

// Recovery turns a panic inside a handler into a 500 instead of crashing
// the admin HTTP server.
func Recovery(log *logging.Logger) gin.HandlerFunc {
	if log == nil {
		log = logging.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithContext(c.Request.Context()).Errorw("panic recovered",
					"error", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperr.CodeInternal),
					"message": "internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
