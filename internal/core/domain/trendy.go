package domain

import "time"

// TrendyWord is a token extracted from recent news that crossed the
// occurrence threshold. Score is the mean confidence percentage of the
// sources whose pre-redirect host matches a linked post URL; 0 means no
// confidence data has been computed yet.
type TrendyWord struct {
	ID          int64
	Name        string
	Occurrences int
	Score       float64
	FirstSeen   time.Time
	LastUpdated time.Time
}

// PostURL is an article URL linked to one or more trendy words. Rows are
// removed when the last referencing word is deleted.
type PostURL struct {
	ID        int64
	URL       string
	FirstSeen time.Time
}

// Post is a single feed entry as seen by the threats_watcher pipeline.
// Posts without a published date carry a zero PublishedAt and are filtered
// out of the 30-day window.
type Post struct {
	Title       string
	URL         string
	PublishedAt time.Time
}

// SummaryKind discriminates the stored summary variants.
type SummaryKind string

const (
	SummaryWeekly       SummaryKind = "weekly_summary"
	SummaryBreakingNews SummaryKind = "breaking_news"
	SummaryTrendyWord   SummaryKind = "trendy_word"
)

// Summary is a generated digest tied to one or more keywords.
type Summary struct {
	ID        int64
	Kind      SummaryKind
	Keywords  string
	Text      string
	CreatedAt time.Time
}

// PasteID marks a paste as already scanned. Rows expire after two hours.
type PasteID struct {
	ID        string
	CreatedAt time.Time
}
