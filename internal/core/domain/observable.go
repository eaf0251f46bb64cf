package domain

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ObservableType is the typed-IOC class the ticketing system distinguishes.
type ObservableType string

const (
	ObservableDomain ObservableType = "domain"
	ObservableIP     ObservableType = "ip"
	ObservableURL    ObservableType = "url"
	ObservableOther  ObservableType = "other"
)

// Observable is a typed IOC attached to a ticketing record.
type Observable struct {
	DataType ObservableType
	Data     string
	Tags     []string
}

// Key identifies an observable for (type, value) deduplication.
func (o Observable) Key() string {
	return string(o.DataType) + "|" + o.Data
}

var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ClassifyObservable types a raw emitted value. Words that look like domains
// become domain observables, IPs and URLs are recognised directly, anything
// else is "other".
func ClassifyObservable(value string) ObservableType {
	if net.ParseIP(value) != nil {
		return ObservableIP
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if _, err := url.Parse(value); err == nil {
			return ObservableURL
		}
	}
	if domainPattern.MatchString(value) {
		return ObservableDomain
	}
	return ObservableOther
}

// NewObservable builds an observable for value, dropping null-ish data.
// It returns false when value must not be attached.
func NewObservable(value string, tags ...string) (Observable, bool) {
	if value == "" || value == "None" {
		return Observable{}, false
	}
	return Observable{
		DataType: ClassifyObservable(value),
		Data:     value,
		Tags:     tags,
	}, true
}

// DedupeObservables removes duplicates by (type, value), keeping first
// occurrence order.
func DedupeObservables(obs []Observable) []Observable {
	seen := make(map[string]bool, len(obs))
	out := obs[:0]
	for _, o := range obs {
		if seen[o.Key()] {
			continue
		}
		seen[o.Key()] = true
		out = append(out, o)
	}
	return out
}
