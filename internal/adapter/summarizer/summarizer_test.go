package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hive-corporation/nightwatch/internal/config"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestSummarizeNoArticlesFails(t *testing.T) {
	s := New(config.SummaryConfig{})
	if _, err := s.Summarize(context.Background(), "ransomware", nil); err == nil {
		t.Error("expected error without article text")
	}
	if _, err := s.Summarize(context.Background(), "ransomware", []string{"", "  "}); err == nil {
		t.Error("expected error with blank articles")
	}
}

func TestSummarizeDisabledFallsBack(t *testing.T) {
	s := New(config.SummaryConfig{})
	got, err := s.Summarize(context.Background(), "ransomware", []string{"An incident report. Details."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Recent coverage mentioning ransomware:") {
		t.Errorf("expected deterministic fallback, got %q", got)
	}
}

func TestSummarizeAcceptsModelOutput(t *testing.T) {
	generated := "Security researchers describe an ongoing extortion operation focused on " +
		"shipping and freight firms in Europe. Attackers break in through internet facing " +
		"remote access systems, stage additional tooling, and then lock data stores. " +
		"Multiple organisations have disclosed disruption to their delivery platforms, " +
		"and investigators expect further victims to surface soon."

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %q", req.Model)
		}
		json.NewEncoder(w).Encode(chatResponse(generated))
	}))
	defer srv.Close()

	s := New(config.SummaryConfig{APIURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	got, err := s.Summarize(context.Background(), "ransomware", []string{sourceArticle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != generated {
		t.Errorf("expected model output, got %q", got)
	}
}

func TestSummarizeRejectedOutputFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse("Too short."))
	}))
	defer srv.Close()

	s := New(config.SummaryConfig{APIURL: srv.URL, Model: "test-model"})
	got, err := s.Summarize(context.Background(), "ransomware", []string{sourceArticle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Recent coverage mentioning") {
		t.Errorf("guardrail-rejected output must fall back, got %q", got)
	}
}

func TestSummarizeAPIFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(config.SummaryConfig{APIURL: srv.URL, Model: "test-model"})
	got, err := s.Summarize(context.Background(), "ransomware", []string{sourceArticle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Recent coverage mentioning") {
		t.Errorf("API failure must fall back, got %q", got)
	}
}

func TestJoinArticlesCapsLength(t *testing.T) {
	long := strings.Repeat("a", maxArticleChars)
	joined := joinArticles([]string{long, "second article"})
	if len(joined) > maxArticleChars {
		t.Errorf("joined source exceeds cap: %d chars", len(joined))
	}
	if strings.Contains(joined, "second article") {
		t.Error("articles past the cap must be dropped")
	}
}

func TestJoinArticlesSeparator(t *testing.T) {
	joined := joinArticles([]string{"first", "second"})
	if joined != "first\n\n---\n\nsecond" {
		t.Errorf("unexpected join: %q", joined)
	}
}
