package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
	"github.com/hive-corporation/nightwatch/internal/config"
	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

// TheHiveNotifier drives the ticketing REST API. Case lookups run before
// alert lookups so follow-up observables land on the promoted case rather
// than a stale alert.
type TheHiveNotifier struct {
	baseURL     string
	apiKey      string
	customField string
	extraTags   []string
	client      *httpx.Client
}

func NewTheHiveNotifier(cfg config.TheHiveConfig) *TheHiveNotifier {
	return &TheHiveNotifier{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		apiKey:      cfg.Key,
		customField: cfg.CustomField,
		extraTags:   cfg.Tags,
		client:      httpx.New("thehive", 30*time.Second, httpx.DefaultConfig()),
	}
}

func (t *TheHiveNotifier) Enabled() bool {
	return t.baseURL != "" && t.apiKey != ""
}

type hiveQuery struct {
	Query []map[string]any `json:"query"`
}

type hiveRecord struct {
	ID   string `json:"_id"`
	Type string `json:"_type"`
}

// FindByCustomField looks for a case, then an alert, carrying the ticket
// reference in the configured custom field.
func (t *TheHiveNotifier) FindByCustomField(ctx context.Context, ticketID string) (*ports.TicketRecord, error) {
	for _, listing := range []string{"listCase", "listAlert"} {
		q := hiveQuery{Query: []map[string]any{
			{"_name": listing},
			{"_name": "filter", "_field": "customFields." + t.customField, "_value": ticketID},
		}}
		rec, err := t.queryOne(ctx, q)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// FindByObservable resolves the record holding the given observable value,
// preferring cases over alerts.
func (t *TheHiveNotifier) FindByObservable(ctx context.Context, value string) (*ports.TicketRecord, error) {
	for _, listing := range []string{"listCase", "listAlert"} {
		q := hiveQuery{Query: []map[string]any{
			{"_name": listing},
			{"_name": "containsObservable", "_value": value},
		}}
		rec, err := t.queryOne(ctx, q)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (t *TheHiveNotifier) queryOne(ctx context.Context, q hiveQuery) (*ports.TicketRecord, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := t.do(ctx, http.MethodPost, "/api/v1/query", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticketing query returned status %d", resp.StatusCode)
	}

	var records []hiveRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	first := records[0]
	return &ports.TicketRecord{
		ID:     first.ID,
		IsCase: strings.EqualFold(first.Type, "case") || strings.HasPrefix(first.ID, "~"),
	}, nil
}

type hiveObservable struct {
	DataType string   `json:"dataType"`
	Data     string   `json:"data"`
	Tags     []string `json:"tags,omitempty"`
	TLP      int      `json:"tlp"`
	IOC      bool     `json:"ioc"`
}

type hiveAlert struct {
	Type         string           `json:"type"`
	Source       string           `json:"source"`
	SourceRef    string           `json:"sourceRef"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Severity     int              `json:"severity"`
	TLP          int              `json:"tlp"`
	PAP          int              `json:"pap"`
	Tags         []string         `json:"tags,omitempty"`
	CustomFields map[string]any   `json:"customFields,omitempty"`
	Observables  []hiveObservable `json:"observables,omitempty"`
}

func (t *TheHiveNotifier) CreateAlert(ctx context.Context, alert ports.TicketAlert) error {
	payload := hiveAlert{
		Type:        "external",
		Source:      "nightwatch",
		SourceRef:   alert.TicketID,
		Title:       alert.Title,
		Description: alert.Description,
		Severity:    alert.Severity,
		TLP:         alert.TLP,
		PAP:         alert.PAP,
		Tags:        append(append([]string{}, t.extraTags...), alert.Tags...),
		Observables: toHiveObservables(alert.Observables, alert.TLP),
	}
	if alert.TicketID != "" {
		payload.CustomFields = map[string]any{t.customField: alert.TicketID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	resp, err := t.do(ctx, http.MethodPost, "/api/v1/alert", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("alert creation returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *TheHiveNotifier) AddObservables(ctx context.Context, rec ports.TicketRecord, obs []domain.Observable, tlp int) error {
	parent := "alert"
	if rec.IsCase {
		parent = "case"
	}
	for _, o := range toHiveObservables(obs, tlp) {
		body, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to marshal observable: %w", err)
		}
		resp, err := t.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/%s/%s/observable", parent, rec.ID), body)
		if err != nil {
			return err
		}
		resp.Body.Close()
		// 400 here means the observable already exists on the record.
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("observable creation returned status %d", resp.StatusCode)
		}
	}
	return nil
}

func (t *TheHiveNotifier) AddComment(ctx context.Context, rec ports.TicketRecord, message string) error {
	parent := "alert"
	if rec.IsCase {
		parent = "case"
	}
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}

	resp, err := t.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/%s/%s/comment", parent, rec.ID), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("comment creation returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *TheHiveNotifier) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticketing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticketing request failed: %w", err)
	}
	return resp, nil
}

func toHiveObservables(obs []domain.Observable, tlp int) []hiveObservable {
	out := make([]hiveObservable, 0, len(obs))
	for _, o := range obs {
		out = append(out, hiveObservable{
			DataType: string(o.DataType),
			Data:     o.Data,
			Tags:     o.Tags,
			TLP:      tlp,
			IOC:      true,
		})
	}
	return out
}
