package understanding

import (
	"strings"
	"unicode"

	"github.com/quantumflow/cognicore/internal/textproc"
)

// Part-of-speech tags
const (
	POSVerb        = "verb"
	POSNoun        = "noun"
	POSAdjective   = "adjective"
	POSDeterminer  = "determiner"
	POSPronoun     = "pronoun"
	POSNumber      = "number"
	POSPreposition = "preposition"
	POSOther       = "other"
)

var determiners = textproc.Set([]string{"a", "an", "the", "this", "that", "these", "those", "each", "every", "some", "any", "no", "all"})

var pronouns = textproc.Set([]string{"i", "me", "my", "we", "us", "our", "you", "your", "he", "him", "his",
	"she", "her", "it", "its", "they", "them", "their"})

var prepositions = textproc.Set([]string{"in", "on", "at", "by", "for", "with", "from", "to", "into", "of", "about",
	"before", "after", "until", "during", "between", "over", "under", "using", "via", "within", "without"})

// verbs is keyed by lemma
var verbs = textproc.Set([]string{
	"plan", "schedule", "organize", "launch", "decide", "choose", "select", "pick", "compare", "prefer",
	"create", "invent", "imagine", "brainstorm", "design", "innovate", "learn", "remember", "memorize",
	"study", "teach", "train", "practice", "explain", "reason", "infer", "analyze", "deduce", "cause",
	"solve", "achieve", "accomplish", "handle", "build", "make", "need", "want", "go", "get", "buy", "sell",
	"invest", "grow", "increase", "decrease", "reduce", "improve", "help", "develop", "release", "market",
	"hire", "test", "review", "evaluate", "finish", "start", "complete", "write", "read", "run", "use",
	"find", "think", "know", "show", "give", "take", "lead", "result", "affect", "prepare", "deliver",
	"recover", "treat", "assess", "predict", "suggest", "rain", "fall", "rise", "drop", "save", "spend",
	"is", "are", "was", "were", "be", "do", "does", "did", "have", "has", "had", "will", "should", "would",
	"can", "could", "must", "may", "might",
})

var adjectives = textproc.Set([]string{
	"new", "old", "big", "small", "good", "bad", "high", "low", "fast", "slow", "urgent", "important",
	"critical", "key", "vital", "crucial", "essential", "optional", "risky", "safe", "cheap", "expensive",
	"short", "long", "better", "best", "worse", "worst", "large", "major", "minor", "creative", "quick",
	"wet", "dry", "hot", "cold", "strong", "weak", "simple", "complex", "easy", "hard",
	"late", "early", "ready", "more", "less", "actual", "actually",
})

var adjectiveSuffixes = []string{"ful", "ous", "ive", "able", "ible", "al", "less", "ic"}

// posTag assigns a part of speech from the closed lexicons, then suffix rules
func posTag(token, lemma string) string {
	switch {
	case isNumeric(token):
		return POSNumber
	case determiners[token]:
		return POSDeterminer
	case pronouns[token]:
		return POSPronoun
	case prepositions[token]:
		return POSPreposition
	case verbs[lemma] || verbs[token]:
		return POSVerb
	case adjectives[token]:
		return POSAdjective
	case textproc.IsStopword(token) || textproc.IsNegation(token):
		return POSOther
	}
	for _, suf := range adjectiveSuffixes {
		if len(token) > len(suf)+3 && strings.HasSuffix(token, suf) {
			return POSAdjective
		}
	}
	if strings.HasSuffix(token, "ize") || strings.HasSuffix(token, "ise") || strings.HasSuffix(token, "ify") {
		return POSVerb
	}
	return POSNoun
}

func isNumeric(token string) bool {
	digits := 0
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',' || r == '$' || r == '%' || r == '-' || r == '€':
		default:
			return false
		}
	}
	return digits > 0
}

type sense struct {
	name string
	cues []string
}

// senseInventory lists ambiguous words and the cue words that select each sense.
// The first sense is the default.
var senseInventory = map[string][]sense{
	"bank": {
		{"finance", []string{"money", "loan", "account", "deposit", "invest", "interest", "credit"}},
		{"river", []string{"river", "water", "shore", "fish", "flood", "boat"}},
	},
	"launch": {
		{"product_release", []string{"product", "market", "release", "customer", "brand", "campaign"}},
		{"rocket", []string{"rocket", "space", "orbit", "satellite", "pad"}},
	},
	"program": {
		{"software", []string{"code", "software", "computer", "bug", "compile"}},
		{"rehabilitation", []string{"therapy", "session", "beneficiary", "rehab", "patient", "exercise"}},
		{"schedule", []string{"event", "agenda", "conference", "broadcast"}},
	},
	"interest": {
		{"attention", []string{"hobby", "curious", "topic", "passion"}},
		{"finance", []string{"rate", "loan", "bank", "debt", "mortgage"}},
	},
	"market": {
		{"commerce", []string{"customer", "product", "sale", "demand", "price"}},
		{"stock_market", []string{"stock", "share", "index", "trading", "bond"}},
	},
	"return": {
		{"finance", []string{"investment", "stock", "bond", "profit", "risk", "portfolio"}},
		{"go_back", []string{"home", "trip", "come", "office"}},
	},
	"model": {
		{"representation", []string{"data", "predict", "train", "statistic"}},
		{"product_variant", []string{"car", "phone", "version", "edition"}},
	},
	"session": {
		{"therapy", []string{"therapy", "patient", "beneficiary", "rehab", "exercise"}},
		{"meeting", []string{"meeting", "team", "workshop", "call"}},
	},
}

// resolveSense picks the sense of word whose cues overlap most with the lemmas
func resolveSense(word string, lemmas map[string]bool) (string, bool) {
	senses, ok := senseInventory[word]
	if !ok {
		return "", false
	}
	best, bestScore := senses[0].name, 0
	for _, s := range senses {
		score := 0
		for _, c := range s.cues {
			if lemmas[c] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s.name, score
		}
	}
	return best, true
}
