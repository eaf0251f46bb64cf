package summarizer

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Acceptance gates for generated digests. A summary outside these bounds is
// discarded in favour of the deterministic fallback.
const (
	minSummaryWords = 30
	maxSummaryWords = 90

	// A summary whose bigrams mostly appear in the source is an extract,
	// not a summary.
	maxSourceOverlap = 0.70

	minEnglishConfidence = 0.70
)

// AcceptSummary validates a generated digest against the source text.
func AcceptSummary(summary, source string) bool {
	words := strings.Fields(summary)
	if len(words) < minSummaryWords || len(words) > maxSummaryWords {
		return false
	}

	info := whatlanggo.Detect(summary)
	if info.Lang != whatlanggo.Eng || info.Confidence < minEnglishConfidence {
		return false
	}

	return BigramOverlap(summary, source) < maxSourceOverlap
}

// BigramOverlap returns the fraction of word bigrams of text that also occur
// in source. 1.0 means every bigram is copied.
func BigramOverlap(text, source string) float64 {
	textBigrams := bigrams(text)
	if len(textBigrams) == 0 {
		return 0
	}
	sourceBigrams := make(map[string]struct{}, len(source))
	for _, b := range bigrams(source) {
		sourceBigrams[b] = struct{}{}
	}

	matched := 0
	for _, b := range textBigrams {
		if _, ok := sourceBigrams[b]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(textBigrams))
}

func bigrams(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 2 {
		return nil
	}
	out := make([]string, 0, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}

// FallbackSummary builds a deterministic digest from the article openings
// when generation is unavailable or rejected.
func FallbackSummary(keyword string, articles []string) string {
	var sb strings.Builder
	sb.WriteString("Recent coverage mentioning ")
	sb.WriteString(keyword)
	sb.WriteString(":")

	count := 0
	for _, a := range articles {
		sentence := firstSentence(a)
		if sentence == "" {
			continue
		}
		sb.WriteString("\n- ")
		sb.WriteString(sentence)
		count++
		if count == 3 {
			break
		}
	}
	if count == 0 {
		return "Recent coverage mentioning " + keyword + " (no article text available)."
	}
	return sb.String()
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return strings.TrimSpace(text[:i+1])
		}
		if i > 300 {
			return strings.TrimSpace(text[:i]) + "..."
		}
	}
	if len(text) > 300 {
		return text[:300] + "..."
	}
	return text
}
