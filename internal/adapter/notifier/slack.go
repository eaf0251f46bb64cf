// Package notifier holds the outbound channel adapters. Each adapter speaks
// one wire protocol and reports Enabled() from its configuration; a channel
// without credentials is silently skipped by the hub.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hive-corporation/nightwatch/internal/config"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

type slackMessage struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	LinkName bool   `json:"link_names"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// SlackNotifier posts plain-text alerts with chat.postMessage.
type SlackNotifier struct {
	token      string
	channel    string
	httpClient *http.Client
}

func NewSlackNotifier(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		token:   cfg.APIToken,
		channel: cfg.Channel,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Enabled() bool {
	return s.token != "" && s.channel != ""
}

func (s *SlackNotifier) PostMessage(ctx context.Context, app, text string) error {
	payload := slackMessage{
		Channel:  s.channel,
		Text:     text,
		LinkName: true,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackPostMessageURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack message for %s: %w", app, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	var parsed slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("slack API rejected message: %s", parsed.Error)
	}
	return nil
}
