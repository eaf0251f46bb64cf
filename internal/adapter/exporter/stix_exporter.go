package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

// STIXExporter renders discovered look-alike domains as a STIX 2.1 bundle of
// domain-name indicators.
type STIXExporter struct {
	twisted ports.TwistedDNSRepository
}

func NewSTIXExporter(twisted ports.TwistedDNSRepository) *STIXExporter {
	return &STIXExporter{twisted: twisted}
}

type stixBundle struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type           string   `json:"type"`
	SpecVersion    string   `json:"spec_version"`
	ID             string   `json:"id"`
	Created        string   `json:"created"`
	Modified       string   `json:"modified"`
	Name           string   `json:"name"`
	Pattern        string   `json:"pattern"`
	PatternType    string   `json:"pattern_type"`
	ValidFrom      string   `json:"valid_from"`
	Labels         []string `json:"labels"`
	IndicatorTypes []string `json:"indicator_types"`
}

// Export builds the bundle for look-alikes discovered since the given time
// (defaulting to the last 24 hours).
func (e *STIXExporter) Export(ctx context.Context, since time.Time) (string, error) {
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	entries, err := e.twisted.ListTwistedSince(ctx, since, feedLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch twisted dns: %w", err)
	}

	bundle := stixBundle{
		Type:    "bundle",
		ID:      "bundle--" + uuid.NewString(),
		Objects: make([]stixObject, 0, len(entries)),
	}
	for i := range entries {
		bundle.Objects = append(bundle.Objects, indicatorFor(&entries[i]))
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal stix bundle: %w", err)
	}
	return string(data), nil
}

func indicatorFor(tw *domain.TwistedDNS) stixObject {
	created := tw.CreatedAt.UTC().Format(time.RFC3339)
	labels := []string{"look-alike-domain"}
	if tw.Fuzzer != "" {
		labels = append(labels, "fuzzer:"+tw.Fuzzer)
	}
	if parent := tw.ParentName(); parent != "" {
		labels = append(labels, "parent:"+parent)
	}

	return stixObject{
		Type:           "indicator",
		SpecVersion:    "2.1",
		ID:             "indicator--" + uuid.NewString(),
		Created:        created,
		Modified:       created,
		Name:           fmt.Sprintf("Look-alike domain %s", tw.Domain),
		Pattern:        fmt.Sprintf("[domain-name:value = '%s']", tw.Domain),
		PatternType:    "stix",
		ValidFrom:      created,
		Labels:         labels,
		IndicatorTypes: []string{"anomalous-activity"},
	}
}
