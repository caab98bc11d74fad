package middleware

import (
	apiError "collaborative-docs/internal/errors"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			// if it's our custom APIError
			if !errors.As(err, &apiErr) {
				// If it's a raw error we didn't wrap, treat as Internal
				apiErr = apiError.Internal(err)
			}

			// LOGGING
			fields := []zap.Field{
				zap.Int("status", apiErr.Status),
				zap.String("path", c.FullPath()),
				zap.Error(apiErr.Internal),
			}
			if apiErr.Status >= 500 {
				logger.Error(apiErr.Message, fields...)
			} else {
				logger.Info(apiErr.Message, fields...)
			}

			if apiErr.Bare {
				c.AbortWithStatus(apiErr.Status)
				return
			}
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
