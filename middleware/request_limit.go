package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docs-answer-bot/utils"
)

// RequestSizeLimit rejects bodies larger than maxSize and caps reads at that size
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.RespondWithTooLarge(c, gin.H{
				"max_size": maxSize,
				"received": c.Request.ContentLength,
			})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
