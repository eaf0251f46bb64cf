package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

const pasteScrapeURL = "https://scrape.pastebin.com/api_scraping.php"

// PastebinScraper pulls the public scraping API. The endpoint requires the
// caller's IP to be allow-listed; a non-JSON body means we are not.
type PastebinScraper struct {
	client *httpx.Client
}

func NewPastebinScraper() *PastebinScraper {
	return &PastebinScraper{
		client: httpx.New("pastebin", 10*time.Second, httpx.DefaultConfig()),
	}
}

func (p *PastebinScraper) ListRecent(ctx context.Context, limit int) ([]ports.Paste, error) {
	resp, err := p.client.Get(ctx, fmt.Sprintf("%s?limit=%d", pasteScrapeURL, limit))
	if err != nil {
		return nil, fmt.Errorf("paste listing failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paste listing returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read paste listing: %w", err)
	}

	// Only a body starting with '[' is the JSON listing; anything else is
	// the allow-listing error page.
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("paste endpoint refused: IP not allow-listed")
	}

	var pastes []ports.Paste
	if err := json.Unmarshal([]byte(trimmed), &pastes); err != nil {
		return nil, fmt.Errorf("failed to decode paste listing: %w", err)
	}
	return pastes, nil
}

func (p *PastebinScraper) FetchRaw(ctx context.Context, scrapeURL string) (string, error) {
	resp, err := p.client.Get(ctx, scrapeURL)
	if err != nil {
		return "", fmt.Errorf("raw paste fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("raw paste fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read raw paste: %w", err)
	}
	return string(body), nil
}
