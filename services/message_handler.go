package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"docs-answer-bot/internal/answer"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/slack"
	"docs-answer-bot/models"
	"docs-answer-bot/utils"
)

// Answerer produces the answer for one question.
type Answerer interface {
	Answer(ctx context.Context, question string) answer.Result
}

// AnswerRecorder keeps a record of every answered question.
type AnswerRecorder interface {
	LogAsync(entry *models.AnswerLog)
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// ExtractMessage returns the message event inside env when the bot should
// answer it. Bot authored messages and edits, joins and other subtypes are
// skipped so the bot never answers itself.
func ExtractMessage(env models.EventEnvelope) (models.MessageEvent, bool) {
	if env.Type != models.EnvelopeEventCallback || len(env.Event) == 0 {
		return models.MessageEvent{}, false
	}

	var ev models.MessageEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		logger.Warn("Skipping undecodable event payload", "event_id", env.EventID, "error", err)
		return models.MessageEvent{}, false
	}

	switch ev.Type {
	case models.EventTypeMessage:
	case models.EventTypeAppMention:
		ev.Text = mentionPattern.ReplaceAllString(ev.Text, "")
	default:
		return models.MessageEvent{}, false
	}

	if ev.BotID != "" || ev.Subtype != "" || ev.Channel == "" {
		return models.MessageEvent{}, false
	}

	ev.Text = strings.TrimSpace(ev.Text)
	if ev.Text == "" {
		return models.MessageEvent{}, false
	}
	return ev, true
}

// MessageHandler answers a chat message and posts the answer into its thread.
type MessageHandler struct {
	answerer        Answerer
	replier         slack.Replier
	recorder        AnswerRecorder
	pipelineTimeout time.Duration
}

func NewMessageHandler(answerer Answerer, replier slack.Replier, recorder AnswerRecorder, pipelineTimeout time.Duration) *MessageHandler {
	return &MessageHandler{
		answerer:        answerer,
		replier:         replier,
		recorder:        recorder,
		pipelineTimeout: pipelineTimeout,
	}
}

// Handle runs the answer pipeline for job. Failures are reported to the user
// as the reply text; a failed reply is logged and dropped.
func (h *MessageHandler) Handle(ctx context.Context, job models.AnswerJob) {
	start := time.Now()
	ev := job.Event
	log := logger.L().With("request_id", job.RequestID, "channel", ev.Channel, "thread_ts", ev.ReplyThread())
	log.Info("Answering message", "user", ev.User)

	pipelineCtx, cancel := utils.WithCustomTimeout(ctx, h.pipelineTimeout)
	res := h.answerer.Answer(pipelineCtx, ev.Text)
	cancel()

	// the reply still goes out when the pipeline ran out of time
	replyCtx, cancelReply := context.WithTimeout(context.WithoutCancel(ctx), utils.DefaultTimeout)
	defer cancelReply()

	delivered := true
	if err := h.replier.Reply(replyCtx, ev.Channel, res.Text(), ev.ReplyThread()); err != nil {
		delivered = false
		log.Error("Failed to deliver answer", "error", err)
	}

	entry := &models.AnswerLog{
		RequestID:    job.RequestID,
		Source:       "slack",
		Channel:      ev.Channel,
		User:         ev.User,
		Question:     ev.Text,
		RefinedQuery: res.RefinedQuery,
		Documents:    res.Documents,
		Chunks:       res.Chunks,
		ErrorKind:    res.ErrorKind(),
		Delivered:    delivered,
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		entry.ErrorMessage = res.Err.Error()
	}
	if h.recorder != nil {
		h.recorder.LogAsync(entry)
	}

	log.Info("Message handled",
		"documents", res.Documents,
		"chunks", res.Chunks,
		"error_kind", entry.ErrorKind,
		"delivered", delivered,
		"duration_ms", entry.DurationMS,
	)
}
