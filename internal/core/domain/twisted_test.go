package domain

import "testing"

func TestTwistedDNSValid(t *testing.T) {
	dns := &WatchedDNS{ID: 1, Domain: "example.org"}
	kw := &WatchedKeyword{ID: 1, Name: "examplecorp"}

	tests := []struct {
		name string
		tw   TwistedDNS
		want bool
	}{
		{"fuzzer source", TwistedDNS{Domain: "examp1e.org", SourceWatchedDNS: dns}, true},
		{"keyword source", TwistedDNS{Domain: "examplecorp-login.com", SourceKeyword: kw}, true},
		{"no source", TwistedDNS{Domain: "examp1e.org"}, false},
		{"both sources", TwistedDNS{Domain: "examp1e.org", SourceWatchedDNS: dns, SourceKeyword: kw}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tw.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTwistedDNSParentName(t *testing.T) {
	tw := TwistedDNS{SourceWatchedDNS: &WatchedDNS{Domain: "example.org"}}
	if got := tw.ParentName(); got != "example.org" {
		t.Errorf("ParentName() = %q", got)
	}

	tw = TwistedDNS{SourceKeyword: &WatchedKeyword{Name: "examplecorp"}}
	if got := tw.ParentName(); got != "examplecorp" {
		t.Errorf("ParentName() = %q", got)
	}

	tw = TwistedDNS{}
	if got := tw.ParentName(); got != "" {
		t.Errorf("ParentName() = %q, want empty", got)
	}
}

func TestFuzzResultRegistered(t *testing.T) {
	tests := []struct {
		name string
		res  FuzzResult
		want bool
	}{
		{"a record", FuzzResult{DNSA: []string{"192.0.2.10"}}, true},
		{"mx only", FuzzResult{DNSMX: []string{"mx1.examp1e.org"}}, true},
		{"no records", FuzzResult{}, false},
		{"servfail only", FuzzResult{DNSA: []string{"!ServFail"}, DNSNS: []string{"!ServFail"}}, false},
		{"servfail plus ns", FuzzResult{DNSA: []string{"!ServFail"}, DNSNS: []string{"ns1.examp1e.org"}}, true},
		{"empty strings", FuzzResult{DNSAAAA: []string{""}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Registered(); got != tt.want {
				t.Errorf("Registered() = %v, want %v", got, tt.want)
			}
		})
	}
}
