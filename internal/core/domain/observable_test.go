package domain

import "testing"

func TestClassifyObservable(t *testing.T) {
	tests := []struct {
		value string
		want  ObservableType
	}{
		{"192.0.2.10", ObservableIP},
		{"2001:db8::1", ObservableIP},
		{"https://paste.example.org/abc", ObservableURL},
		{"http://example.org/x", ObservableURL},
		{"example.org", ObservableDomain},
		{"sub.examp1e.co.uk", ObservableDomain},
		{"ransomware", ObservableOther},
		{"10 mx1", ObservableOther},
	}

	for _, tt := range tests {
		if got := ClassifyObservable(tt.value); got != tt.want {
			t.Errorf("ClassifyObservable(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestNewObservableDropsNullish(t *testing.T) {
	if _, ok := NewObservable(""); ok {
		t.Error("empty value should be dropped")
	}
	if _, ok := NewObservable("None"); ok {
		t.Error("literal None should be dropped")
	}

	o, ok := NewObservable("example.org", "domain_name:example.org")
	if !ok {
		t.Fatal("valid value should be accepted")
	}
	if o.DataType != ObservableDomain || len(o.Tags) != 1 {
		t.Errorf("unexpected observable: %+v", o)
	}
}

func TestDedupeObservables(t *testing.T) {
	obs := []Observable{
		{DataType: ObservableDomain, Data: "example.org", Tags: []string{"first"}},
		{DataType: ObservableIP, Data: "192.0.2.10"},
		{DataType: ObservableDomain, Data: "example.org", Tags: []string{"second"}},
		{DataType: ObservableOther, Data: "example.org"},
	}

	out := DedupeObservables(obs)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique observables, got %d", len(out))
	}
	// First occurrence wins.
	if out[0].Tags[0] != "first" {
		t.Errorf("expected first occurrence kept, got tags %v", out[0].Tags)
	}
	// Same value under a different type is distinct.
	if out[2].DataType != ObservableOther {
		t.Errorf("expected type-qualified dedup, got %+v", out[2])
	}
}
