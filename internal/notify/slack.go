package notify

import (
	"context"
	"fmt"
	"net/http"
)

// SlackSender posts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	client     *http.Client
}

// NewSlackSender creates a SlackSender for the given webhook URL.
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{webhookURL: webhookURL, client: defaultHTTPClient()}
}

// Send posts the message with the title in bold (Slack mrkdwn).
func (s *SlackSender) Send(ctx context.Context, title, message string) error {
	return postJSON(ctx, s.client, "slack", s.webhookURL, map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", title, message),
	})
}

// Name returns the sender identifier.
func (s *SlackSender) Name() string { return "slack" }
