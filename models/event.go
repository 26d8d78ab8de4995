package models

import "encoding/json"

const (
	EnvelopeURLVerification = "url_verification"
	EnvelopeEventCallback   = "event_callback"

	EventTypeMessage    = "message"
	EventTypeAppMention = "app_mention"
)

// EventEnvelope is the outer JSON body delivered to the events webhook.
type EventEnvelope struct {
	Type      string          `json:"type"`
	Token     string          `json:"token,omitempty"`
	Challenge string          `json:"challenge,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// MessageEvent is the subset of a chat message event the bot acts on.
type MessageEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Channel  string `json:"channel"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// ReplyThread returns the thread the answer should be posted into.
func (e MessageEvent) ReplyThread() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// WebhookEvent is one inbound webhook delivery as seen at the HTTP boundary.
type WebhookEvent struct {
	Timestamp string
	Signature string
	Body      []byte
	RetryNum  string
	Envelope  EventEnvelope
}

// IsRetry reports whether the platform flagged this delivery as a redelivery.
func (w WebhookEvent) IsRetry() bool {
	return w.RetryNum != "" && w.RetryNum != "0"
}

// AskRequest is the body of the direct question endpoints.
type AskRequest struct {
	Question string `json:"question" binding:"required,min=1,max=4000"`
}

// AskResponse is returned by the batch question endpoint.
type AskResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// AnswerJob is one question queued for answering.
type AnswerJob struct {
	RequestID string `json:"request_id"`

	// EventID is the platform's own delivery ID, unique per workspace event.
	EventID string       `json:"event_id,omitempty"`
	Event   MessageEvent `json:"event"`
}
