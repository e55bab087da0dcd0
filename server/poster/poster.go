package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/formatter"
	"github.com/crisisdesk/alertdeck/server/hashtag"
)

// Poster posts alerts to a Mattermost incoming webhook.
// It only holds immutable configuration and is safe for concurrent use.
type Poster struct {
	webhookURL string
	channel    string
	username   string
	httpClient *http.Client
}

// New creates a new Poster instance. channel and username override the
// webhook defaults when set.
func New(webhookURL, channel, username string) *Poster {
	return &Poster{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PostAlert posts a formatted alert with its hashtags as a single message.
//
// Returns an error if the webhook rejects the post or cannot be reached.
func (p *Poster) PostAlert(ctx context.Context, alert backend.Alert) error {
	request := model.IncomingWebhookRequest{
		Text:        hashtag.Generate(alert),
		Username:    p.username,
		ChannelName: p.channel,
		Attachments: []*model.SlackAttachment{formatter.FormatAlert(alert)},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook rejected post (HTTP %d): %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}
