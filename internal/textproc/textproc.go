// Package textproc holds the small lexical helpers shared by the engines:
// tokenisation, lemmatisation, stopwords, negation and set similarity.
package textproc

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
	"for": true, "with": true, "from": true, "into": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "we": true, "you": true, "he": true,
	"she": true, "they": true, "them": true, "our": true, "your": true, "their": true, "my": true,
	"me": true, "us": true, "do": true, "does": true, "did": true, "so": true, "as": true,
	"can": true, "could": true, "should": true, "would": true, "will": true, "shall": true,
	"may": true, "might": true, "must": true, "have": true, "has": true, "had": true, "what": true,
	"which": true, "who": true, "whom": true, "how": true, "when": true, "where": true, "there": true,
	"here": true, "about": true, "some": true, "any": true, "all": true, "each": true, "very": true,
	"just": true, "also": true, "than": true, "too": true, "up": true, "out": true, "over": true,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "cannot": true, "without": true,
	"isn't": true, "aren't": true, "wasn't": true, "weren't": true, "don't": true,
	"doesn't": true, "didn't": true, "won't": true, "can't": true, "shouldn't": true,
}

// Tokenize splits text into lowercase word tokens, keeping digits, '$', '%' and
// inner apostrophes, hyphens and periods.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' || r == '$' || r == '%' || r == '.' || r == ',')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'-.,")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// IsStopword reports whether w carries no content
func IsStopword(w string) bool {
	return stopwords[w]
}

// IsNegation reports whether w flips polarity
func IsNegation(w string) bool {
	return negations[w]
}

// Lemma reduces a lowercase word to a crude stem by stripping common suffixes.
func Lemma(w string) string {
	if len(w) <= 3 {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		return trimDouble(w[:len(w)-3])
	case strings.HasSuffix(w, "ed") && len(w) > 4:
		return trimDouble(w[:len(w)-2])
	case strings.HasSuffix(w, "es") && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "sses")):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:len(w)-1]
	}
	return w
}

func trimDouble(w string) string {
	n := len(w)
	if n >= 2 && w[n-1] == w[n-2] && !strings.ContainsRune("lsz", rune(w[n-1])) {
		return w[:n-1]
	}
	return w
}

// ContentWords returns lemmatised tokens with stopwords and negations removed.
func ContentWords(text string) []string {
	tokens := Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if IsStopword(t) || IsNegation(t) {
			continue
		}
		out = append(out, Lemma(t))
	}
	return out
}

// Set builds a membership set from words
func Set(words []string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// Jaccard returns |a∩b| / |a∪b| over the content words of two texts.
func Jaccard(a, b string) float64 {
	return JaccardSets(Set(ContentWords(a)), Set(ContentWords(b)))
}

// JaccardSets returns the Jaccard index of two sets
func JaccardSets(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Polarity splits a statement into its sorted content key and whether it is negated.
// "sales will not grow" and "sales grow" share a key with opposite polarity.
func Polarity(statement string) (key string, negated bool) {
	tokens := Tokenize(statement)
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if IsNegation(t) {
			negated = !negated
			continue
		}
		if IsStopword(t) {
			continue
		}
		words = append(words, Lemma(t))
	}
	sort.Strings(words)
	return strings.Join(words, " "), negated
}

// ContainsAny reports whether any of the phrases occurs in lowercase text
func ContainsAny(text string, phrases ...string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// HasWord reports whether text contains w as a whole token or lemma
func HasWord(text, w string) bool {
	for _, t := range Tokenize(text) {
		if t == w || Lemma(t) == w {
			return true
		}
	}
	return false
}

// MatchesKeyword reports whether a lowercase token is an inflection of kw.
// "planning" matches "plan", "scheduled" matches "schedule".
func MatchesKeyword(token, kw string) bool {
	if token == kw {
		return true
	}
	lt, lk := Lemma(token), Lemma(kw)
	if lt == lk {
		return true
	}
	return len(lt) >= 4 && len(lt) >= len(lk)-1 && strings.HasPrefix(lk, lt)
}
