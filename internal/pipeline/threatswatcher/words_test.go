package threatswatcher

import "testing"

func TestKeepWord(t *testing.T) {
	banned := map[string]bool{"acme1": true}

	tests := []struct {
		word string
		want bool
	}{
		{"APT", false},           // below minimum length
		{"#infosec", false},      // hashtag
		{"ACME1", false},         // banned, case-folded
		{"attack", false},        // english stopword
		{"Security", false},      // english stopword, case-folded
		{"securite", false},      // french stopword
		{"attaque", false},       // french stopword
		{"1.2.3", false},         // version string
		{"v2.0.1", false},        // version string with prefix
		{"10.14.2.8", false},     // long version string
		{"evil.com", false},      // bare domain
		{"login.corp.io", false}, // bare domain, multi-label
		{"Emotet", true},
		{"Lazarus", true},
		{"CVE-2026-1234", true},
		{"OpenSSL", true},
	}
	for _, tt := range tests {
		if got := KeepWord(tt.word, banned); got != tt.want {
			t.Errorf("KeepWord(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}
