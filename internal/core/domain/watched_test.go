package domain

import (
	"testing"
	"time"
)

func TestConfidencePercent(t *testing.T) {
	tests := []struct {
		confidence int
		want       float64
	}{
		{1, 100},
		{2, 50},
		{3, 20},
		{0, 0},
		{7, 0},
	}

	for _, tt := range tests {
		src := RSSSource{Confidence: tt.confidence}
		if got := src.ConfidencePercent(); got != tt.want {
			t.Errorf("ConfidencePercent(level %d) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestWatchedSiteActive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	site := WatchedSite{}
	if !site.Active(now) {
		t.Error("site without expiry should be active")
	}

	site.Expiry = &future
	if !site.Active(now) {
		t.Error("site expiring in the future should be active")
	}

	site.Expiry = &past
	if site.Active(now) {
		t.Error("expired site should be inactive")
	}
}

func TestWatchedSiteIPs(t *testing.T) {
	site := WatchedSite{LastIP: "192.0.2.10"}
	if got := site.IPs(); len(got) != 1 || got[0] != "192.0.2.10" {
		t.Errorf("IPs() = %v", got)
	}

	site.LastIPSecond = "192.0.2.11"
	if got := site.IPs(); len(got) != 2 {
		t.Errorf("IPs() = %v, want both addresses", got)
	}

	empty := WatchedSite{}
	if got := empty.IPs(); len(got) != 0 {
		t.Errorf("IPs() = %v, want empty", got)
	}
}
