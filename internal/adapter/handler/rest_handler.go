// Package handler is the operational HTTP surface: health, recent alert
// listings and SIEM feed export. The admin API proper lives in a separate
// service.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/adapter/exporter"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

type RestHandler struct {
	alerts ports.SiteAlertRepository
	trendy ports.TrendyWordRepository
	cef    *exporter.CEFExporter
	stix   *exporter.STIXExporter
	logger *zap.SugaredLogger
}

func NewRestHandler(
	alerts ports.SiteAlertRepository,
	trendy ports.TrendyWordRepository,
	twisted ports.TwistedDNSRepository,
	logger *zap.SugaredLogger,
) *RestHandler {
	return &RestHandler{
		alerts: alerts,
		trendy: trendy,
		cef:    exporter.NewCEFExporter(alerts),
		stix:   exporter.NewSTIXExporter(twisted),
		logger: logger.Named("http"),
	}
}

// Router wires the operational routes.
func (h *RestHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/alerts/recent", h.RecentAlerts).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/trendy", h.TrendyWords).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/feed", h.Feed).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "nightwatch",
	})
}

// RecentAlerts lists site alerts of the last 24 hours (configurable via
// ?since=24h).
func (h *RestHandler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(w, r, 24*time.Hour)
	if !ok {
		return
	}

	alerts, err := h.alerts.ListSiteAlertsSince(r.Context(), since, 500)
	if err != nil {
		h.logger.Errorw("failed to list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, map[string]any{
			"id":               a.ID,
			"domain":           a.SiteDomain,
			"code":             a.Code,
			"new_ip":           a.NewIP,
			"old_ip":           a.OldIP,
			"difference_score": a.DifferenceScore,
			"new_registrar":    a.NewRegistrar,
			"created_at":       a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "alerts": out})
}

// TrendyWords lists the current trend table, newest first.
func (h *RestHandler) TrendyWords(w http.ResponseWriter, r *http.Request) {
	words, err := h.trendy.ListTrendyWords(r.Context(), 100)
	if err != nil {
		h.logger.Errorw("failed to list trendy words", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list trendy words")
		return
	}

	out := make([]map[string]any, 0, len(words))
	for _, word := range words {
		out = append(out, map[string]any{
			"name":        word.Name,
			"occurrences": word.Occurrences,
			"score":       word.Score,
			"first_seen":  word.FirstSeen.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "words": out})
}

// Feed exports alert history for SIEM ingestion, ?format=cef|stix.
func (h *RestHandler) Feed(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(w, r, 24*time.Hour)
	if !ok {
		return
	}

	switch r.URL.Query().Get("format") {
	case "cef", "":
		data, err := h.cef.Export(r.Context(), since)
		if err != nil {
			h.logger.Errorw("cef export failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to export feed")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(data))

	case "stix":
		data, err := h.stix.Export(r.Context(), since)
		if err != nil {
			h.logger.Errorw("stix export failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to export feed")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(data))

	default:
		writeError(w, http.StatusBadRequest, "unsupported format (use 'cef' or 'stix')")
	}
}

func sinceParam(w http.ResponseWriter, r *http.Request, fallback time.Duration) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Now().Add(-fallback), true
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'since' parameter (use a duration like '24h')")
		return time.Time{}, false
	}
	return time.Now().Add(-d), true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
