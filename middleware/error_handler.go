package middleware

import (
	"github.com/gin-gonic/gin"

	"vetclinic/utils"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Сначала выполняем все обработчики

		for _, ginErr := range c.Errors.ByType(gin.ErrorTypePrivate) {
			utils.CaptureError(ginErr.Err, map[string]interface{}{
				"endpoint": c.Request.URL.Path,
				"route":    c.FullPath(),
				"method":   c.Request.Method,
				"status":   c.Writer.Status(),
			})
		}
	}
}
