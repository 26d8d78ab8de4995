package slack

import (
	"context"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"
)

// Replier posts a message into a channel thread.
type Replier interface {
	Reply(ctx context.Context, channel, text, threadTS string) error
}

// Client wraps the Web API client used for chat.postMessage.
type Client struct {
	api *slackapi.Client
}

var _ Replier = (*Client)(nil)

// NewClient builds a Web API client. apiURL may be empty for the public API.
func NewClient(botToken, apiURL string) *Client {
	var opts []slackapi.Option
	if apiURL != "" {
		opts = append(opts, slackapi.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return &Client{api: slackapi.New(botToken, opts...)}
}

func (c *Client) Reply(ctx context.Context, channel, text, threadTS string) error {
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(threadTS))
	}

	if _, _, err := c.api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("post message to %s: %w", channel, err)
	}
	return nil
}
