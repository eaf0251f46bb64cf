package threatswatcher

import (
	"context"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/hive-corporation/nightwatch/internal/adapter/summarizer"
	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

const (
	// summaryCooldown suppresses repeat digests for the same keyword.
	summaryCooldown = 24 * time.Hour

	breakingNewsArticleCap = 15
	weeklyArticleCap       = 30
	weeklyEntryCap         = 5
	weeklyCandidateCap     = 50

	minArticleChars      = 30
	minArticleEnglish    = 0.70
	duplicateSummaryRate = 0.70
)

// maybeBreakingNews fires a breaking-news digest when a word crosses the
// threshold and none was generated in the cooldown window.
func (p *Pipeline) maybeBreakingNews(ctx context.Context, word *domain.TrendyWord) {
	if word.Occurrences < p.cfg.BreakingNewsThreshold {
		return
	}
	exists, err := p.summaries.SummaryExistsSince(ctx, domain.SummaryBreakingNews, word.Name,
		time.Now().Add(-summaryCooldown))
	if err != nil {
		p.logger.Errorw("summary lookup failed", "word", word.Name, "error", err)
		return
	}
	if exists {
		return
	}

	text := p.generateSummary(ctx, word, breakingNewsArticleCap)
	if text == "" {
		return
	}
	if err := p.summaries.CreateSummary(ctx, &domain.Summary{
		Kind:     domain.SummaryBreakingNews,
		Keywords: word.Name,
		Text:     text,
	}); err != nil {
		p.logger.Errorw("failed to store breaking-news summary", "word", word.Name, "error", err)
		return
	}
	p.logger.Infow("breaking news", "word", word.Name, "occurrences", word.Occurrences)

	p.hub.Notify(ctx, notification.AppThreatsWatcherBreaking, word.Name, []notification.Item{
		{Word: word.Name, Summary: text},
	})
}

// maybeWordSummary stores a per-word digest once a word has three or more
// linked articles. Per-word digests are read through the alert log, not
// notified.
func (p *Pipeline) maybeWordSummary(ctx context.Context, word *domain.TrendyWord) {
	links, err := p.trendy.ListPostURLs(ctx, word.ID)
	if err != nil {
		p.logger.Errorw("failed to list post urls", "word", word.Name, "error", err)
		return
	}
	if len(links) < 3 {
		return
	}
	exists, err := p.summaries.SummaryExistsSince(ctx, domain.SummaryTrendyWord, word.Name,
		time.Now().Add(-summaryCooldown))
	if err != nil || exists {
		return
	}

	text := p.generateSummary(ctx, word, breakingNewsArticleCap)
	if text == "" {
		return
	}
	if err := p.summaries.CreateSummary(ctx, &domain.Summary{
		Kind:     domain.SummaryTrendyWord,
		Keywords: word.Name,
		Text:     text,
	}); err != nil {
		p.logger.Errorw("failed to store word summary", "word", word.Name, "error", err)
	}
}

// WeeklySummary walks trendy words newest-first, generates digests until
// five are accepted, persists the batch and notifies.
func (p *Pipeline) WeeklySummary(ctx context.Context) {
	words, err := p.trendy.ListTrendyWords(ctx, weeklyCandidateCap)
	if err != nil {
		p.logger.Errorw("failed to list trendy words for weekly summary", "error", err)
		return
	}

	var accepted []string
	var keywords []string
	for i := range words {
		word := &words[i]
		text := p.generateSummary(ctx, word, weeklyArticleCap)
		if text == "" {
			continue
		}
		if isDuplicateSummary(text, accepted) {
			p.logger.Debugw("near-duplicate summary rejected", "word", word.Name)
			continue
		}
		accepted = append(accepted, text)
		keywords = append(keywords, word.Name)
		if len(accepted) == weeklyEntryCap {
			break
		}
	}
	if len(accepted) == 0 {
		p.logger.Infow("weekly summary skipped, nothing to report")
		return
	}

	full := strings.Join(accepted, "\n\n")
	if err := p.summaries.CreateSummary(ctx, &domain.Summary{
		Kind:     domain.SummaryWeekly,
		Keywords: strings.Join(keywords, ","),
		Text:     full,
	}); err != nil {
		p.logger.Errorw("failed to store weekly summary", "error", err)
		return
	}

	p.hub.Notify(ctx, notification.AppThreatsWatcherWeekly, "", []notification.Item{
		{Word: strings.Join(keywords, ", "), Summary: full},
	})
}

// generateSummary collects article bodies for the word's linked URLs and
// hands them to the summarizer. Bodies must be non-trivial, English and not
// already collected.
func (p *Pipeline) generateSummary(ctx context.Context, word *domain.TrendyWord, articleCap int) string {
	links, err := p.trendy.ListPostURLs(ctx, word.ID)
	if err != nil {
		p.logger.Errorw("failed to list post urls", "word", word.Name, "error", err)
		return ""
	}

	seen := make(map[string]bool)
	var bodies []string
	for _, link := range links {
		if len(bodies) == articleCap {
			break
		}
		text, err := p.articles.FetchText(ctx, link.URL)
		if err != nil {
			p.logger.Debugw("article fetch failed", "url", link.URL, "error", err)
			continue
		}
		if !usableArticle(text, seen) {
			continue
		}
		bodies = append(bodies, text)
	}
	if len(bodies) == 0 {
		return ""
	}

	text, err := p.summarizer.Summarize(ctx, word.Name, bodies)
	if err != nil {
		p.logger.Warnw("summary generation failed", "word", word.Name, "error", err)
		return ""
	}
	return text
}

func usableArticle(text string, seen map[string]bool) bool {
	text = strings.TrimSpace(text)
	if len(text) < minArticleChars {
		return false
	}
	info := whatlanggo.Detect(text)
	if info.Lang != whatlanggo.Eng || info.Confidence < minArticleEnglish {
		return false
	}
	key := text
	if len(key) > 200 {
		key = key[:200]
	}
	if seen[key] {
		return false
	}
	seen[key] = true
	return true
}

func isDuplicateSummary(text string, accepted []string) bool {
	for _, prior := range accepted {
		if summarizer.BigramOverlap(text, prior) >= duplicateSummaryRate {
			return true
		}
	}
	return false
}
