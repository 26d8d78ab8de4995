package slack

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestVerifier_RoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier("8f742231b10e8888abcd99yyyzzz85a5").WithClock(fixedClock(now))
	body := []byte(`{"type":"event_callback","event":{"type":"message","text":"안녕"}}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	sig := v.Sign(ts, body)

	assert.True(t, len(sig) > 3 && sig[:3] == "v0=")
	assert.True(t, v.Verify(ts, sig, body))
}

func TestVerifier_KnownVector(t *testing.T) {
	// Example request from the platform's signing documentation.
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	ts := "1531420618"
	body := []byte("token=xyzz0WbapA4vBCDEFasx0q6G&team_id=T1DC2JH3J&team_domain=testteamnow&channel_id=G8PSS9T3V&channel_name=foobar&user_id=U2CERLKJA&user_name=roadrunner&command=%2Fwebhook-collect&text=&response_url=https%3A%2F%2Fhooks.slack.com%2Fcommands%2FT1DC2JH3J%2F397700885554%2F96rGlfmibIGlgcZRskXaIFfN&trigger_id=398738663015.47445629121.803a0bc887a14d10d2c447fce8b6703c")
	v := NewVerifier(secret).WithClock(fixedClock(time.Unix(1531420618, 0)))

	assert.True(t, v.Verify(ts, "v0=a2114d57b48eac39b9ad189dd8316235a7b4a8d21a10bd27519666489c69b503", body))
}

func TestVerifier_BitFlipFails(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier("secret").WithClock(fixedClock(now))
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"type":"event_callback"}`)
	sig := v.Sign(ts, body)

	for i := range body {
		flipped := append([]byte(nil), body...)
		flipped[i] ^= 0x01
		assert.False(t, v.Verify(ts, sig, flipped), "byte %d", i)
	}

	tampered := []byte(sig)
	tampered[len(tampered)-1] ^= 0x01
	assert.False(t, v.Verify(ts, string(tampered), body))
}

func TestVerifier_TimestampWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier("secret").WithClock(fixedClock(now))
	body := []byte("{}")

	tests := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{-300 * time.Second, true},
		{300 * time.Second, true},
		{-301 * time.Second, false},
		{301 * time.Second, false},
		{-time.Hour, false},
	}

	for _, tt := range tests {
		ts := strconv.FormatInt(now.Add(tt.offset).Unix(), 10)
		assert.Equal(t, tt.want, v.Verify(ts, v.Sign(ts, body), body), "offset %s", tt.offset)
	}

	// now + MinInt64 wraps the subtraction back to MinInt64
	for _, ts := range []int64{now.Unix() + math.MinInt64, math.MinInt64, math.MaxInt64} {
		raw := strconv.FormatInt(ts, 10)
		assert.False(t, v.Verify(raw, v.Sign(raw, body), body), "ts %d", ts)
	}
}

func TestVerifier_MalformedInput(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier("secret").WithClock(fixedClock(now))
	ts := strconv.FormatInt(now.Unix(), 10)

	assert.False(t, v.Verify("", "v0=abc", nil))
	assert.False(t, v.Verify("not-a-number", "v0=abc", nil))
	assert.False(t, v.Verify(ts, "", nil))
	assert.False(t, v.Verify(ts, "garbage", []byte("{}")))
	assert.False(t, NewVerifier("other").WithClock(fixedClock(now)).Verify(ts, v.Sign(ts, []byte("{}")), []byte("{}")))
}
