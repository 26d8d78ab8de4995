package routes

import (
	"context"
	"io"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docs-answer-bot/internal/answer"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/middleware"
	"docs-answer-bot/models"
	"docs-answer-bot/utils"
)

// AskService answers questions posted directly over HTTP.
type AskService interface {
	Answer(ctx context.Context, question string) answer.Result
	AnswerStream(ctx context.Context, question string) iter.Seq2[string, error]
}

// AskDeps is what the direct question routes need.
type AskDeps struct {
	Service         AskService
	AnswerLog       *models.AnswerLogger
	PipelineTimeout time.Duration
}

func SetupAskRoutes(router *gin.Engine, deps AskDeps) {
	ask := router.Group("/ask")
	ask.Use(middleware.RequestSizeLimit(64 << 10))

	ask.POST("", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		ctx, cancel := utils.WithCustomTimeout(c.Request.Context(), deps.PipelineTimeout)
		defer cancel()

		res := deps.Service.Answer(ctx, req.Question)
		deps.AnswerLog.LogAsync(askLogEntry(c, "ask", req.Question, res, start))

		if res.Err != nil {
			c.JSON(http.StatusOK, models.AskResponse{Answer: res.Text(), Error: res.ErrorKind()})
			return
		}
		c.JSON(http.StatusOK, models.AskResponse{Answer: res.Answer})
	})

	ask.POST("/stream", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		ctx, cancel := utils.WithCustomTimeout(c.Request.Context(), deps.PipelineTimeout)
		defer cancel()

		next, stop := iter.Pull2(deps.Service.AnswerStream(ctx, req.Question))
		defer stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		var res answer.Result
		c.Stream(func(w io.Writer) bool {
			fragment, err, ok := next()
			if !ok {
				c.SSEvent("done", "")
				return false
			}
			if err != nil {
				res.Err = err
				c.SSEvent("error", answer.ErrorText(err))
				return false
			}
			res.Answer += fragment
			c.SSEvent("message", fragment)
			return true
		})

		deps.AnswerLog.LogAsync(askLogEntry(c, "ask_stream", req.Question, res, start))
	})

	ask.GET("/logs", func(c *gin.Context) {
		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		if err != nil || limit <= 0 || limit > 200 {
			utils.RespondWithBadRequest(c, "limit must be between 1 and 200", nil)
			return
		}
		failedOnly := c.Query("failed") == "true"

		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		logs, err := deps.AnswerLog.Recent(ctx, limit, failedOnly)
		if err != nil {
			logger.Error("Failed to read answer logs", "error", err)
			utils.RespondWithInternalError(c, "Failed to read answer logs", nil)
			return
		}
		if logs == nil {
			logs = []models.AnswerLog{}
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
	})
}

func askLogEntry(c *gin.Context, source, question string, res answer.Result, start time.Time) *models.AnswerLog {
	entry := &models.AnswerLog{
		RequestID:    middleware.GetRequestID(c),
		Source:       source,
		Question:     question,
		RefinedQuery: res.RefinedQuery,
		Documents:    res.Documents,
		Chunks:       res.Chunks,
		ErrorKind:    res.ErrorKind(),
		Delivered:    !c.IsAborted(),
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		entry.ErrorMessage = res.Err.Error()
	}
	return entry
}
