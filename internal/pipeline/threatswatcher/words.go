package threatswatcher

import (
	"regexp"
	"strings"
)

// Token filters applied after entity extraction. Order matters only for
// cost: cheap length checks run before the regexes.

const minWordLength = 5

var (
	versionPattern = regexp.MustCompile(`^v?\d+(\.\d+){2,}$`)
	tldPattern     = regexp.MustCompile(`\.[a-zA-Z]{2,}$`)
)

// englishStopwords and frenchStopwords weed high-frequency prose words out
// of the trend counter. Both lists only need to cover words that survive the
// minimum-length filter.
var englishStopwords = wordSet(
	"about", "above", "after", "again", "against", "because", "been",
	"before", "being", "below", "between", "cannot", "could", "doing",
	"down", "during", "each", "further", "having", "here", "itself",
	"more", "most", "myself", "other", "ought", "ourselves", "same",
	"shall", "should", "since", "some", "such", "than", "that", "their",
	"theirs", "themselves", "there", "these", "they", "this", "those",
	"through", "under", "until", "very", "were", "what", "when", "where",
	"which", "while", "whom", "whose", "with", "within", "without",
	"would", "your", "yours", "yourself", "yourselves", "attack",
	"attacks", "hackers", "security", "malware", "vulnerability",
	"vulnerabilities", "breach", "threat", "threats", "warns", "using",
	"million", "billion", "update", "patch", "critical", "report",
	"researchers", "exploit", "exploited", "targets", "targeted",
	"campaign", "phishing", "ransomware", "data", "users", "flaws",
	"flaw", "weekly", "news", "cyber", "cybersecurity",
)

var frenchStopwords = wordSet(
	"alors", "aucun", "aussi", "autre", "avant", "avec", "avoir",
	"bonjour", "cela", "celle", "celui", "cependant", "cette", "ceux",
	"chaque", "comme", "comment", "dans", "depuis", "donc", "elle",
	"elles", "encore", "entre", "etaient", "etait", "etre", "faire",
	"fois", "hors", "ici", "leur", "leurs", "maintenant", "mais",
	"meme", "moins", "notre", "nous", "parce", "parole", "peut",
	"peuvent", "pour", "pourquoi", "quand", "quel", "quelle", "quelles",
	"quels", "sans", "selon", "seulement", "sont", "sous", "tandis",
	"tellement", "tous", "tout", "toute", "toutes", "votre", "vous",
	"attaque", "attaques", "pirates", "securite", "faille", "failles",
	"donnees", "millions",
)

// KeepWord decides whether an extracted token enters the trend counter.
func KeepWord(word string, banned map[string]bool) bool {
	if len(word) < minWordLength {
		return false
	}
	if strings.HasPrefix(word, "#") {
		return false
	}
	folded := strings.ToLower(word)
	if banned[folded] {
		return false
	}
	if englishStopwords[folded] || frenchStopwords[folded] {
		return false
	}
	if versionPattern.MatchString(folded) {
		return false
	}
	// Bare domains show up as MISC entities; they are assets, not trends.
	if tldPattern.MatchString(folded) && strings.Contains(folded, ".") {
		return false
	}
	return true
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
