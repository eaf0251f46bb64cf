package notification

import (
	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// BuildObservables assembles the typed IOCs attached to a ticketing record
// for one item. Pipeline-supplied extras (old/new value pairs with role
// tags) come in through item.Extra; null-ish values are dropped and
// duplicates collapsed.
func BuildObservables(app App, item Item) []domain.Observable {
	var obs []domain.Observable

	add := func(value string, tags ...string) {
		if o, ok := domain.NewObservable(value, tags...); ok {
			obs = append(obs, o)
		}
	}

	switch app {
	case AppSiteMonitoring:
		add(item.Domain, "domain_name:"+item.Domain)
		if item.Object != nil {
			for _, ip := range item.Object.IPs() {
				add(ip, "current_ip")
			}
			add(item.Object.MailIP(), "current_mail_ip")
			for _, mx := range item.Object.MX() {
				add(mxHost(mx), "mx_record")
			}
		}
	case AppDNSFinder, AppDNSFinderCertStream, AppDNSFinderGroup:
		add(item.Domain, item.Tags...)
		if parent := ParentDomain(item.Domain); parent != "" && parent != item.Domain {
			add(parent, "parent_domain:"+parent)
		}
	case AppDataLeak, AppDataLeakGroup:
		add(item.URL, "keyword:"+item.Word)
	default:
		add(item.Word)
	}

	obs = append(obs, item.Extra...)
	return domain.DedupeObservables(obs)
}

// mxHost strips the "pref host" priority prefix of a normalised MX record.
func mxHost(mx string) string {
	for i := 0; i < len(mx); i++ {
		if mx[i] == ' ' {
			return mx[i+1:]
		}
	}
	return mx
}
