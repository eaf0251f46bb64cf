package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
)

// searxEngines restricts metasearch to code-and-Q&A engines where leaked
// material shows up.
const searxEngines = "gitlab,github,bitbucket,apkmirror,gentoo,npm,stackoverflow,hoogle"

type searxResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// SearxClient queries the configured metasearch endpoint.
type SearxClient struct {
	baseURL string
	client  *httpx.Client
}

func NewSearxClient(baseURL string) *SearxClient {
	return &SearxClient{
		baseURL: baseURL,
		client:  httpx.New("searx", 10*time.Second, httpx.DefaultConfig()),
	}
}

func (c *SearxClient) Enabled() bool { return c.baseURL != "" }

// Search runs an exact-match ("quoted") query and returns result URLs.
func (c *SearxClient) Search(ctx context.Context, keyword string) ([]string, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("%q", keyword))
	q.Set("engines", searxEngines)
	q.Set("format", "json")

	resp, err := c.client.Get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("searx query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searx returned status %d", resp.StatusCode)
	}

	var parsed searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode searx response: %w", err)
	}

	urls := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}
