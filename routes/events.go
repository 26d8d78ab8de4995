package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/slack"
	"docs-answer-bot/internal/telemetry"
	"docs-answer-bot/middleware"
	"docs-answer-bot/models"
	"docs-answer-bot/services"
	"docs-answer-bot/utils"
)

// MaxEventBodyBytes caps webhook payloads.
const MaxEventBodyBytes = 1 << 20

// Dispatcher hands an accepted question to background processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.AnswerJob) error
}

// EventDeps is what the webhook routes need.
type EventDeps struct {
	Verifier   *slack.Verifier
	Dispatcher Dispatcher
	Metrics    *telemetry.Metrics
	// RateLimit is applied to the webhook routes when set.
	RateLimit gin.HandlerFunc
}

func SetupEventRoutes(router *gin.Engine, deps EventDeps) {
	handlers := []gin.HandlerFunc{middleware.RequestSizeLimit(MaxEventBodyBytes)}
	if deps.RateLimit != nil {
		handlers = append(handlers, deps.RateLimit)
	}
	handlers = append(handlers, eventsHandler(deps))

	router.POST("/events", handlers...)
	router.POST("/slack/events", handlers...)
}

func eventsHandler(deps EventDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				utils.RespondWithTooLarge(c, gin.H{"max_size": MaxEventBodyBytes})
				return
			}
			utils.RespondWithBadRequest(c, "Could not read request body", nil)
			return
		}

		var env models.EventEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			deps.Metrics.RecordEvent("malformed")
			utils.RespondWithBadRequest(c, "Invalid JSON payload", nil)
			return
		}

		// handshake sent when the events URL is configured
		if env.Type == models.EnvelopeURLVerification || env.Challenge != "" {
			deps.Metrics.RecordEvent("challenge")
			c.JSON(http.StatusOK, gin.H{"challenge": env.Challenge})
			return
		}

		webhook := models.WebhookEvent{
			Timestamp: headerValue(c, "X-Request-Timestamp", "X-Slack-Request-Timestamp"),
			Signature: headerValue(c, "X-Request-Signature", "X-Slack-Signature"),
			RetryNum:  headerValue(c, "X-Retry-Num", "X-Slack-Retry-Num"),
			Body:      body,
			Envelope:  env,
		}
		requestID := middleware.GetRequestID(c)

		if !deps.Verifier.Verify(webhook.Timestamp, webhook.Signature, webhook.Body) {
			deps.Metrics.RecordEvent("rejected")
			utils.RespondWithForbidden(c, "Invalid request signature")
			return
		}

		if webhook.IsRetry() {
			deps.Metrics.RecordEvent("retry_ignored")
			logger.Info("Ignoring redelivered event", "request_id", requestID, "retry_num", webhook.RetryNum, "event_id", env.EventID)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		ev, ok := services.ExtractMessage(env)
		if !ok {
			deps.Metrics.RecordEvent("skipped")
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		job := models.AnswerJob{RequestID: requestID, EventID: env.EventID, Event: ev}
		if err := deps.Dispatcher.Dispatch(c.Request.Context(), job); err != nil {
			deps.Metrics.RecordEvent("dropped")
			logger.Warn("Dropping event, dispatch failed", "request_id", requestID, "event_id", env.EventID, "error", err)
		} else {
			deps.Metrics.RecordEvent("dispatched")
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// headerValue returns the first non-empty header among names.
func headerValue(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}
