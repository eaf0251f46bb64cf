// Package notification is the fan-out hub: every pipeline hands its findings
// to the hub, which renders one payload per channel and dispatches it.
// Channel failures are logged and swallowed so a broken sink never takes a
// pipeline down.
package notification

// App identifies the notification variant. The base names double as the
// subscriber source keys; group and summary variants share their base app's
// subscribers.
type App string

const (
	AppThreatsWatcher         App = "threats_watcher"
	AppThreatsWatcherWeekly   App = "threats_watcher_weeklysummary"
	AppThreatsWatcherBreaking App = "threats_watcher_breakingnews"
	AppDataLeak               App = "data_leak"
	AppDataLeakGroup          App = "data_leak_group"
	AppSiteMonitoring         App = "site_monitoring"
	AppDNSFinder              App = "dns_finder"
	AppDNSFinderCertStream    App = "dns_finder_cert_transparency"
	AppDNSFinderGroup         App = "dns_finder_group"
)

// GroupThreshold is the per-parent batch size at which chat, room and mail
// channels switch to the grouped variant. Ticketing stays per-item.
const GroupThreshold = 6

// AppConfig is the static per-variant notification shape. Templates are
// name-substitution only; adapters own their own markup.
type AppConfig struct {
	Subject   string
	Template  string
	URLSuffix string // appended to the public base URL for the details link

	Severity int
	TLP      int
	PAP      int
}

var appConfigs = map[App]AppConfig{
	AppThreatsWatcher: {
		Subject:   "[WARNING] Threats Watcher: new trendy word",
		Template:  "Dear team,\n\nNew trendy word detected: <WORD>.",
		URLSuffix: "#/threats_watcher",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppThreatsWatcherWeekly: {
		Subject:   "[INFO] Threats Watcher: weekly summary",
		Template:  "Dear team,\n\nWeekly threat summary:\n\n<SUMMARY>",
		URLSuffix: "#/threats_watcher",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppThreatsWatcherBreaking: {
		Subject:   "[ALERT] Threats Watcher: breaking news",
		Template:  "Dear team,\n\nBreaking news around <WORD>:\n\n<SUMMARY>",
		URLSuffix: "#/threats_watcher",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppDataLeak: {
		Subject:   "[ALERT] Data Leak: new leak detected",
		Template:  "Dear team,\n\nNew data leak detected for keyword <WORD>: <URL>",
		URLSuffix: "#/data_leak",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppDataLeakGroup: {
		Subject:   "[ALERT] Data Leak: new leaks detected",
		Template:  "Dear team,\n\n<COUNT> new data leaks detected for keyword <WORD>.",
		URLSuffix: "#/data_leak",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppSiteMonitoring: {
		Subject:   "[ALERT] Website Monitoring: suspicious activity",
		Template:  "Dear team,\n\nSuspicious activity detected on the website <DOMAIN>.",
		URLSuffix: "#/website_monitoring",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppDNSFinder: {
		Subject:   "[ALERT] DNS Finder: new twisted domain",
		Template:  "Dear team,\n\nNew twisted domain found: <DOMAIN>.",
		URLSuffix: "#/dns_finder",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppDNSFinderCertStream: {
		Subject:   "[ALERT] DNS Finder: certificate transparency match",
		Template:  "Dear team,\n\nNew domain matching a monitored keyword seen on certificate transparency: <DOMAIN>.",
		URLSuffix: "#/dns_finder",
		Severity:  1, TLP: 1, PAP: 1,
	},
	AppDNSFinderGroup: {
		Subject:   "[ALERT] DNS Finder: new twisted domains",
		Template:  "Dear team,\n\n<COUNT> new twisted domains found for <WORD>.",
		URLSuffix: "#/dns_finder",
		Severity:  1, TLP: 1, PAP: 1,
	},
}

// ConfigFor returns the static configuration for app. Callers only pass the
// declared constants; an unknown app yields the zero config.
func ConfigFor(app App) AppConfig {
	return appConfigs[app]
}

// GroupVariant returns the grouped app name for a base app, when one exists.
func GroupVariant(app App) (App, bool) {
	switch app {
	case AppDataLeak:
		return AppDataLeakGroup, true
	case AppDNSFinder, AppDNSFinderCertStream:
		return AppDNSFinderGroup, true
	}
	return "", false
}

// SubscriberSource maps a variant back to the base source key subscribers
// register under.
func SubscriberSource(app App) string {
	switch app {
	case AppThreatsWatcherWeekly, AppThreatsWatcherBreaking:
		return string(AppThreatsWatcher)
	case AppDataLeakGroup:
		return string(AppDataLeak)
	case AppDNSFinderCertStream, AppDNSFinderGroup:
		return string(AppDNSFinder)
	}
	return string(app)
}
