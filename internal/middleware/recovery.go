package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope. The panic value is
// logged with the stack but never echoed to the client. http.ErrAbortHandler
// is re-raised so net/http can drop the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			logger.WithModule("http").Error("handler panic",
				requestIDField(c),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			if !c.Writer.Written() {
				// Written directly: response.Error would log the failure a second time.
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Success: false,
					Error: &response.ErrorInfo{
						Code:    apperrors.ErrInternalServer.Code,
						Message: apperrors.ErrInternalServer.Message,
					},
				})
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler renders unknown routes with the standard error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrNotFound.WithMessage("Route "+c.Request.URL.Path+" not found"))
}
