package notification

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// Item is one finding inside a notification batch.
type Item struct {
	Word    string // trendy word, leak keyword or twisted-DNS parent
	Domain  string // affected or discovered domain
	URL     string // leak location
	Summary string // digest text for the summary variants

	// SiteID is set for site_monitoring items so a freshly minted ticket
	// reference can be persisted on the site row.
	SiteID int64

	// Object backs ticketing observables and case updates. Nil for
	// pipelines without a domain object.
	Object domain.DomainObject

	// Tags are extra observable tags (fuzzer:*, corporate_keyword:*, ...).
	Tags []string

	// Extra holds pipeline-supplied observables, typically old/new value
	// pairs with role tags.
	Extra []domain.Observable
}

// Subject of the message for app.
func Subject(app App) string {
	return ConfigFor(app).Subject
}

// Render substitutes the item fields into the app's template and appends the
// details link.
func Render(app App, item Item, watcherURL string) string {
	return substitute(ConfigFor(app).Template, item) + detailsLink(app, watcherURL)
}

// RenderGroup renders the grouped variant for count items sharing parent.
func RenderGroup(app App, parent string, count int, watcherURL string) string {
	body := substitute(ConfigFor(app).Template, Item{Word: parent, Domain: parent})
	body = strings.ReplaceAll(body, "<COUNT>", strconv.Itoa(count))
	return body + detailsLink(app, watcherURL)
}

// RenderHTML is the room/mail variant of Render: escaped body with the
// details link as an anchor.
func RenderHTML(app App, item Item, watcherURL string) string {
	return htmlBody(app, substitute(ConfigFor(app).Template, item), watcherURL)
}

// RenderGroupHTML is the room/mail variant of RenderGroup.
func RenderGroupHTML(app App, parent string, count int, watcherURL string) string {
	body := substitute(ConfigFor(app).Template, Item{Word: parent, Domain: parent})
	body = strings.ReplaceAll(body, "<COUNT>", strconv.Itoa(count))
	return htmlBody(app, body, watcherURL)
}

func substitute(template string, item Item) string {
	out := strings.ReplaceAll(template, "<WORD>", item.Word)
	out = strings.ReplaceAll(out, "<DOMAIN>", item.Domain)
	out = strings.ReplaceAll(out, "<URL>", item.URL)
	out = strings.ReplaceAll(out, "<SUMMARY>", item.Summary)
	return out
}

func detailsLink(app App, watcherURL string) string {
	if watcherURL == "" {
		return ""
	}
	return "\n\nDetails: " + strings.TrimSuffix(watcherURL, "/") + "/" + ConfigFor(app).URLSuffix
}

func htmlBody(app App, body, watcherURL string) string {
	escaped := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
	if watcherURL == "" {
		return escaped
	}
	link := strings.TrimSuffix(watcherURL, "/") + "/" + ConfigFor(app).URLSuffix
	return fmt.Sprintf("%s<br><br><a href=%q>Details</a>", escaped, link)
}
