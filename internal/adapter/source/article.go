package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
)

const articleMaxBody = 2 << 20

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ArticleFetcher downloads a post and extracts its readable text for the
// summarizer. Boilerplate containers are stripped before paragraph
// collection.
type ArticleFetcher struct {
	client *httpx.Client
}

func NewArticleFetcher() *ArticleFetcher {
	return &ArticleFetcher{
		client: httpx.New("article", 15*time.Second, httpx.DefaultConfig()),
	}
}

func (a *ArticleFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build article request: %w", err)
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("article fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, articleMaxBody))
	if err != nil {
		return "", fmt.Errorf("failed to parse article html: %w", err)
	}

	return ExtractArticleText(doc), nil
}

// ExtractArticleText collects paragraph text, preferring <article> content
// when present.
func ExtractArticleText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form").Remove()

	root := doc.Selection
	if article := doc.Find("article"); article.Length() > 0 {
		root = article.First()
	}

	var parts []string
	root.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		// Single-word paragraphs are navigation crumbs, not prose.
		if len(strings.Fields(text)) < 4 {
			return
		}
		parts = append(parts, text)
	})

	if len(parts) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(parts, "\n\n")
}
