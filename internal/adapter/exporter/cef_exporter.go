// Package exporter renders the alert history in SIEM-consumable feed
// formats.
package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

const feedLimit = 10000

// CEFExporter renders site alerts as Common Event Format lines.
type CEFExporter struct {
	alerts ports.SiteAlertRepository
}

func NewCEFExporter(alerts ports.SiteAlertRepository) *CEFExporter {
	return &CEFExporter{alerts: alerts}
}

// Export generates one CEF line per site alert created since the given time
// (defaulting to the last 24 hours).
func (e *CEFExporter) Export(ctx context.Context, since time.Time) (string, error) {
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	alerts, err := e.alerts.ListSiteAlertsSince(ctx, since, feedLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch site alerts: %w", err)
	}

	var output strings.Builder
	for i := range alerts {
		output.WriteString(formatCEF(&alerts[i]))
		output.WriteString("\n")
	}
	return output.String(), nil
}

// formatCEF builds one line:
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func formatCEF(alert *domain.SiteAlert) string {
	extensions := []string{
		fmt.Sprintf("dhost=%s", escapeField(alert.SiteDomain)),
		fmt.Sprintf("cn1=%d", alert.Code),
		"cn1Label=AlertCode",
		fmt.Sprintf("rt=%d", alert.CreatedAt.Unix()*1000),
	}
	if alert.NewIP != "" {
		extensions = append(extensions, fmt.Sprintf("dst=%s", escapeField(alert.NewIP)))
	}
	if alert.OldIP != "" {
		extensions = append(extensions,
			"cs1Label=PreviousIP", fmt.Sprintf("cs1=%s", escapeField(alert.OldIP)))
	}
	if alert.DifferenceScore > 0 {
		extensions = append(extensions,
			"cn2Label=ContentDistance", fmt.Sprintf("cn2=%d", alert.DifferenceScore))
	}
	if alert.NewRegistrar != "" {
		extensions = append(extensions,
			"cs2Label=Registrar", fmt.Sprintf("cs2=%s", escapeField(alert.NewRegistrar)))
	}

	return fmt.Sprintf("CEF:0|Nightwatch|SiteMonitoring|1.0|%d|%s|%d|%s",
		alert.Code, alertName(alert.Code), cefSeverity(alert.Code),
		strings.Join(extensions, " "))
}

func alertName(code int) string {
	switch code {
	case domain.CodeRegistrarChange:
		return "Registrar Change"
	case domain.CodeExpiryChange:
		return "Domain Expiry Change"
	case domain.CodeRDAPBackfill:
		return "Registration Discovered"
	}
	var parts []string
	if code&8 != 0 {
		parts = append(parts, "Mail")
	}
	if code == domain.CodeMailContentAllIPs || code&4 != 0 {
		parts = append(parts, "Content")
	}
	if code == domain.CodeMailContentAllIPs || code&3 != 0 {
		parts = append(parts, "IP")
	}
	if len(parts) == 0 {
		return "Site Change"
	}
	return strings.Join(parts, "/") + " Change"
}

// cefSeverity maps alert codes to the 0-10 CEF scale. Content changes and
// combined changes rank highest.
func cefSeverity(code int) int {
	switch {
	case code == domain.CodeMailContentAllIPs:
		return 9
	case code >= domain.CodeRegistrarChange:
		return 5
	case code >= domain.CodeMail:
		return 7
	case code >= domain.CodeContent:
		return 6
	default:
		return 4
	}
}

func escapeField(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
