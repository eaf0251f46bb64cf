// Package summarizer generates the digest texts attached to trend
// notifications. Generation goes through an OpenAI-compatible inference
// endpoint; when the endpoint is absent or its output fails the guardrails,
// a deterministic extract of the source articles is used instead.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
	"github.com/hive-corporation/nightwatch/internal/config"
)

const maxArticleChars = 4000

// Summarizer condenses article bodies into a short digest for one keyword.
type Summarizer struct {
	apiURL string
	apiKey string
	model  string
	client *httpx.Client
}

func New(cfg config.SummaryConfig) *Summarizer {
	return &Summarizer{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: httpx.New("summarizer", 60*time.Second, httpx.DefaultConfig()),
	}
}

func (s *Summarizer) Enabled() bool {
	return s.apiURL != ""
}

// Summarize returns a digest of the articles covering keyword. The model
// output must pass the guardrails; otherwise the deterministic fallback is
// returned. An error only surfaces when no text at all can be produced.
func (s *Summarizer) Summarize(ctx context.Context, keyword string, articles []string) (string, error) {
	source := joinArticles(articles)
	if source == "" {
		return "", fmt.Errorf("no article text to summarize for %q", keyword)
	}

	if s.Enabled() {
		generated, err := s.callModel(ctx, s.buildPrompt(keyword, source))
		if err == nil {
			generated = stripCodeFences(generated)
			if AcceptSummary(generated, source) {
				return generated, nil
			}
		}
	}

	return FallbackSummary(keyword, articles), nil
}

func (s *Summarizer) buildPrompt(keyword, source string) string {
	var sb strings.Builder
	sb.WriteString("You are a threat intelligence analyst. Summarize the press coverage below ")
	sb.WriteString(fmt.Sprintf("about %q in 30 to 90 words. ", keyword))
	sb.WriteString("Write in your own words, do not quote the articles verbatim, ")
	sb.WriteString("and answer in English only with the summary text.\n\n")
	sb.WriteString(source)
	return sb.String()
}

func (s *Summarizer) callModel(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You summarize cybersecurity news into short factual digests.",
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": 0.3,
		"max_tokens":  256,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("summary API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in summary response")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func joinArticles(articles []string) string {
	var sb strings.Builder
	for _, a := range articles {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		if sb.Len()+len(a) > maxArticleChars {
			remaining := maxArticleChars - sb.Len()
			if remaining <= 0 {
				break
			}
			sb.WriteString(a[:remaining])
			break
		}
		sb.WriteString(a)
	}
	return sb.String()
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
