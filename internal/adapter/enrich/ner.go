package enrich

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

var (
	cvePattern      = regexp.MustCompile(`\bCVE-(\d{4})-(\d{4,7})\b`)
	attackerPattern = regexp.MustCompile(`\b(?:APT|FIN|HFG)\d+\b`)
)

// nerStopList drops generic tokens the model keeps tagging as entities.
var nerStopList = map[string]bool{
	"new":      true,
	"update":   true,
	"security": true,
	"cyber":    true,
	"hackers":  true,
	"attack":   true,
	"malware":  true,
	"week":     true,
	"report":   true,
	"the":      true,
	"this":     true,
}

// NERExtractor tags headlines with the pre-trained model and applies the
// CVE / threat-actor regexes. A failed model load degrades to regex-only
// extraction: Names comes back empty, per the error taxonomy.
type NERExtractor struct {
	enabled bool
	logger  *zap.SugaredLogger
}

func NewNERExtractor(logger *zap.SugaredLogger) *NERExtractor {
	l := logger.Named("ner")
	// Probe the model once; prose loads its data lazily on first document.
	if _, err := prose.NewDocument("probe", prose.WithSegmentation(false)); err != nil {
		l.Errorw("NER model unavailable, falling back to regex-only extraction", "error", err)
		return &NERExtractor{enabled: false, logger: l}
	}
	return &NERExtractor{enabled: true, logger: l}
}

func (e *NERExtractor) Extract(title string) ports.Entities {
	out := ports.Entities{
		CVEs:      extractCVEs(title),
		Attackers: attackerPattern.FindAllString(title, -1),
	}
	if !e.enabled {
		return out
	}

	doc, err := prose.NewDocument(title, prose.WithSegmentation(false))
	if err != nil {
		e.logger.Warnw("NER tagging failed", "error", err)
		return out
	}

	seen := make(map[string]bool)
	for _, ent := range doc.Entities() {
		for _, token := range filterEntity(ent.Text, ent.Label) {
			if !seen[token] {
				seen[token] = true
				out.Names = append(out.Names, token)
			}
		}
	}
	return out
}

// filterEntity applies the keep/drop rules of the extraction spec: no
// subword fragments, no short tokens, no pure digits, no stop-listed words.
// Organisation-like labels additionally keep only capitalised tokens longer
// than two characters.
func filterEntity(text, label string) []string {
	splitAll := label == "ORG" || label == "ORGANIZATION" || label == "MISC"

	var out []string
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ".,:;!?\"'()[]")
		if token == "" || strings.HasPrefix(token, "##") {
			continue
		}
		if len(token) <= 2 {
			continue
		}
		if isDigits(token) {
			continue
		}
		if nerStopList[strings.ToLower(token)] {
			continue
		}
		if splitAll && !startsUpper(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func extractCVEs(title string) []string {
	var out []string
	for _, m := range cvePattern.FindAllStringSubmatch(title, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil || year < 1999 || year > 2030 {
			continue
		}
		out = append(out, m[0])
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
