package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/config"
	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

const (
	// Event defaults: organisation-only distribution, medium threat level,
	// initial analysis.
	mispEventDistribution = 0
	mispThreatLevel       = 2
	mispAnalysisInitial   = 0

	// Objects inherit the event distribution.
	mispObjectDistribution = 5
)

// MISPNotifier maintains one event per monitored domain. The event UUID is
// what the case registry stores.
type MISPNotifier struct {
	baseURL    string
	apiKey     string
	tags       []string
	httpClient *http.Client
}

func NewMISPNotifier(cfg config.MISPConfig) *MISPNotifier {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &MISPNotifier{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.Key,
		tags:    cfg.Tags,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (m *MISPNotifier) Enabled() bool {
	return m.baseURL != "" && m.apiKey != ""
}

func (m *MISPNotifier) EventExists(ctx context.Context, uuid string) (bool, error) {
	resp, err := m.do(ctx, http.MethodGet, "/events/view/"+uuid, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("event lookup returned status %d", resp.StatusCode)
	}
}

type mispTag struct {
	Name string `json:"name"`
}

type mispEventEnvelope struct {
	Event mispEvent `json:"Event"`
}

type mispEvent struct {
	ID            string    `json:"id,omitempty"`
	UUID          string    `json:"uuid,omitempty"`
	Info          string    `json:"info"`
	Distribution  int       `json:"distribution"`
	ThreatLevelID int       `json:"threat_level_id"`
	Analysis      int       `json:"analysis"`
	Tag           []mispTag `json:"Tag,omitempty"`
}

// CreateEvent opens a new event and attaches a domain-ip object for obj.
func (m *MISPNotifier) CreateEvent(ctx context.Context, info string, obj domain.DomainObject) (string, error) {
	event := mispEvent{
		Info:          info,
		Distribution:  mispEventDistribution,
		ThreatLevelID: mispThreatLevel,
		Analysis:      mispAnalysisInitial,
	}
	for _, t := range m.tags {
		event.Tag = append(event.Tag, mispTag{Name: t})
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	resp, err := m.do(ctx, http.MethodPost, "/events/add", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("event creation returned status %d", resp.StatusCode)
	}

	var created mispEventEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode created event: %w", err)
	}
	if created.Event.UUID == "" {
		return "", fmt.Errorf("event creation returned no uuid")
	}

	if err := m.addDomainIPObject(ctx, created.Event.ID, obj); err != nil {
		return "", err
	}
	return created.Event.UUID, nil
}

// UpdateEvent appends the current resolution of obj to an existing event.
func (m *MISPNotifier) UpdateEvent(ctx context.Context, uuid string, obj domain.DomainObject) error {
	resp, err := m.do(ctx, http.MethodGet, "/events/view/"+uuid, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event lookup returned status %d", resp.StatusCode)
	}
	var envelope mispEventEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	return m.addDomainIPObject(ctx, envelope.Event.ID, obj)
}

type mispAttribute struct {
	ObjectRelation string `json:"object_relation"`
	Type           string `json:"type"`
	Value          string `json:"value"`
}

type mispObject struct {
	Name         string          `json:"name"`
	Distribution int             `json:"distribution"`
	Attribute    []mispAttribute `json:"Attribute"`
}

func (m *MISPNotifier) addDomainIPObject(ctx context.Context, eventID string, obj domain.DomainObject) error {
	object := mispObject{
		Name:         "domain-ip",
		Distribution: mispObjectDistribution,
		Attribute: []mispAttribute{
			{ObjectRelation: "domain", Type: "domain", Value: obj.DomainName()},
		},
	}
	for _, ip := range obj.IPs() {
		object.Attribute = append(object.Attribute, mispAttribute{
			ObjectRelation: "ip", Type: "ip-dst", Value: ip,
		})
	}
	if mail := obj.MailIP(); mail != "" {
		object.Attribute = append(object.Attribute, mispAttribute{
			ObjectRelation: "ip", Type: "ip-dst", Value: mail,
		})
	}

	body, err := json.Marshal(object)
	if err != nil {
		return fmt.Errorf("failed to marshal object: %w", err)
	}

	resp, err := m.do(ctx, http.MethodPost, "/objects/add/"+eventID, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("object creation returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *MISPNotifier) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create misp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("misp request failed: %w", err)
	}
	return resp, nil
}
