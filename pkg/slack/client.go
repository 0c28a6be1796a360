// Package slack delivers internal ops alerts (breaker OPEN, run FAILED)
// to a single Slack channel — the operational counterpart to the
// per-user notification email path in pkg/notify.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"
)

// alertDedupWindow bounds how far back FindMessageByFingerprint searches
// when deciding whether a breaker-open alert already has an open thread
// (§4.2: don't spam the channel for a flapping dependency).
const alertDedupWindow = 24 * time.Hour

// maxHistoryPages caps how many 200-message pages of channel history a
// fingerprint search pages through before giving up.
const maxHistoryPages = 5

var whitespaceRe = regexp.MustCompile(`\s+`)

// Client is a thin wrapper around the slack-go SDK scoped to one ops
// channel.
type Client struct {
	api       *goslack.Client
	channelID string
	logger    *slog.Logger
}

// NewClient creates a Slack API client bound to the ops-alert channel.
func NewClient(token, channelID string) *Client {
	return &Client{
		api:       goslack.New(token),
		channelID: channelID,
		logger:    slog.Default().With("component", "slack-client"),
	}
}

// NewClientWithAPIURL creates a Client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithAPIURL(token, channelID, apiURL string) *Client {
	return &Client{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
		logger:    slog.Default().With("component", "slack-client"),
	}
}

// PostMessage sends an ops-alert message to the configured channel. If
// threadTS is non-empty, the message is posted as a threaded reply so a
// recurring breaker-open alert stays in one thread instead of spamming
// the channel.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block, threadTS string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []goslack.MsgOption{
		goslack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, opts...)
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

// FindMessageByFingerprint searches recent channel history for a message
// whose text contains fingerprint (e.g. "breaker-open:llm"), so a
// breaker that flaps stays in a single thread instead of one alert per
// failure. Returns the message timestamp (ts) for threading, or empty
// string if no matching alert is still within alertDedupWindow.
func (c *Client) FindMessageByFingerprint(ctx context.Context, fingerprint string) (string, error) {
	oldest := fmt.Sprintf("%d", time.Now().Add(-alertDedupWindow).Unix())
	normalizedFingerprint := normalizeAlertText(fingerprint)

	params := &goslack.GetConversationHistoryParameters{
		ChannelID: c.channelID,
		Oldest:    oldest,
		Limit:     200,
	}

	for page := 0; page < maxHistoryPages; page++ {
		history, err := c.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("conversations.history failed: %w", err)
		}

		for _, msg := range history.Messages {
			text := collectAlertText(msg)
			if strings.Contains(normalizeAlertText(text), normalizedFingerprint) {
				return msg.Timestamp, nil
			}
		}

		if !history.HasMore || history.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = history.ResponseMetaData.NextCursor
	}

	return "", nil
}

// normalizeAlertText case-folds and collapses whitespace so a fingerprint
// match is resilient to Slack's own text reformatting of posted blocks.
func normalizeAlertText(s string) string {
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// collectAlertText flattens a history message's text plus any attachment
// fallback text, since Block Kit messages surface their content there
// rather than in msg.Text alone.
func collectAlertText(msg goslack.Message) string {
	var parts []string
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	for _, att := range msg.Attachments {
		if att.Text != "" {
			parts = append(parts, att.Text)
		}
		if att.Fallback != "" {
			parts = append(parts, att.Fallback)
		}
	}
	return strings.Join(parts, " ")
}
