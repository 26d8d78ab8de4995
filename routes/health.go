package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docs-answer-bot/internal/health"
	"docs-answer-bot/internal/telemetry"
)

func SetupHealthRoutes(router *gin.Engine, monitor *health.Monitor) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   telemetry.ServiceName,
			"timestamp": time.Now().UTC(),
			"search":    monitor.Last(),
		})
	})

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the API"})
	})

	router.POST("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "POST request received"})
	})
}
