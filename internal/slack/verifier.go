// Package slack verifies inbound workspace webhooks and posts replies back
// into the originating thread.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"docs-answer-bot/internal/logger"
)

const (
	// MaxClockSkew bounds how far a request timestamp may drift from local time.
	MaxClockSkew = 5 * time.Minute

	signatureVersion = "v0"
)

// Verifier checks request signatures produced with the app signing secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(signingSecret string) *Verifier {
	return &Verifier{secret: []byte(signingSecret), now: time.Now}
}

// WithClock returns a copy of v that reads time from now.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	return &Verifier{secret: v.secret, now: now}
}

// Verify reports whether signature authenticates body at timestamp.
// Any malformed input is rejected.
func (v *Verifier) Verify(timestamp, signature string, body []byte) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		logger.Warn("Rejected webhook: malformed timestamp", "timestamp", timestamp)
		return false
	}

	now := v.now().Unix()
	window := int64(MaxClockSkew / time.Second)
	if ts < now-window || ts > now+window {
		logger.Warn("Rejected webhook: timestamp outside allowed window", "timestamp", timestamp, "now", now)
		return false
	}

	if len(signature) == 0 {
		logger.Warn("Rejected webhook: missing signature")
		return false
	}

	expected := v.Sign(timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		logger.Warn("Rejected webhook: signature mismatch", "timestamp", timestamp)
		return false
	}

	return true
}

// Sign computes the "v0=<hex>" signature for body at timestamp.
func (v *Verifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
