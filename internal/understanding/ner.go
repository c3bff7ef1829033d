package understanding

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// mention is a labelled span of the raw input
type mention struct {
	start, end int
	text       string
	label      string
	time       *time.Time
	number     *float64
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March, "april": time.April, "apr": time.April, "may": time.May,
	"june": time.June, "jun": time.June, "july": time.July, "jul": time.July, "august": time.August,
	"aug": time.August, "september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October, "november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDatePattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	moneyPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[$€£]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:k|m|bn|thousand|million|billion)\b)?`),
		regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s?(?:k|m|thousand|million|billion)?\s?(?:dollars|usd|euros|eur|pounds|gbp)\b`),
	}
	percentPattern  = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:%|percent\b)`)
	durationPattern = regexp.MustCompile(`(?i)\b(\d+)\s+(minutes?|hours?|days?|weeks?|months?|years?)\b`)
	numberPattern   = regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`)
	properPattern   = regexp.MustCompile(`\b[A-Z][a-zA-Z&'-]*(?:\s+[A-Z][a-zA-Z&'-]*)*`)
)

var orgCues = []string{"inc", "corp", "corporation", "ltd", "llc", "company", "co", "university", "bank",
	"group", "foundation", "center", "centre", "clinic", "hospital", "agency", "ministry", "institute", "association"}

var personTitles = []string{"mr", "mrs", "ms", "dr", "prof", "sir", "madam"}

// recognize extracts labelled mentions from raw text. Earlier patterns win
// when spans overlap.
func recognize(text string, sentenceStarts []int) []mention {
	var out []mention
	taken := func(start, end int) bool {
		for _, m := range out {
			if start < m.end && end > m.start {
				return true
			}
		}
		return false
	}
	add := func(m mention) {
		if !taken(m.start, m.end) {
			out = append(out, m)
		}
	}

	for _, loc := range isoDatePattern.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[loc[2]:loc[3]])
		mo, _ := strconv.Atoi(text[loc[4]:loc[5]])
		d, _ := strconv.Atoi(text[loc[6]:loc[7]])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			continue
		}
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		add(mention{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]], label: LabelDate, time: &t})
	}
	for _, loc := range monthDatePattern.FindAllStringSubmatchIndex(text, -1) {
		mo := monthNames[strings.ToLower(text[loc[2]:loc[3]])]
		d, _ := strconv.Atoi(text[loc[4]:loc[5]])
		y, _ := strconv.Atoi(text[loc[6]:loc[7]])
		if d < 1 || d > 31 {
			continue
		}
		t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
		add(mention{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]], label: LabelDate, time: &t})
	}
	for _, p := range moneyPatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			raw := strings.TrimSpace(text[loc[0]:loc[1]])
			if amount, ok := parseMoney(raw); ok {
				add(mention{start: loc[0], end: loc[1], text: raw, label: LabelMoney, number: &amount})
			}
		}
	}
	for _, loc := range percentPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(strings.TrimSuffix(strings.ToLower(raw), "percent"), "% ")), 64)
		if err != nil {
			continue
		}
		add(mention{start: loc[0], end: loc[1], text: raw, label: LabelPercent, number: &v})
	}
	for _, loc := range durationPattern.FindAllStringSubmatchIndex(text, -1) {
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		days := float64(n) * unitDays(strings.ToLower(text[loc[4]:loc[5]]))
		add(mention{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]], label: LabelDuration, number: &days})
	}
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			continue
		}
		add(mention{start: loc[0], end: loc[1], text: raw, label: LabelNumber, number: &v})
	}

	starts := make(map[int]bool, len(sentenceStarts))
	for _, s := range sentenceStarts {
		starts[s] = true
	}
	for _, loc := range properPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		words := strings.Fields(text[start:end])
		// a lone capitalised word opening a sentence is just sentence case
		if starts[start] {
			if len(words) == 1 {
				continue
			}
			words = words[1:]
			start = strings.Index(text[start:end], words[0]) + start
		}
		if len(words) == 1 && (words[0] == "I" || isMonth(words[0])) {
			continue
		}
		add(mention{start: start, end: end, text: strings.Join(words, " "), label: properLabel(text[:start], words)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func isMonth(w string) bool {
	_, ok := monthNames[strings.ToLower(strings.TrimSuffix(w, "."))]
	return ok
}

// properLabel tags a capitalised span as ORG or PERSON from cue words
func properLabel(before string, words []string) string {
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, ".,"))
		for _, c := range orgCues {
			if lw == c {
				return LabelOrg
			}
		}
	}
	prev := strings.Fields(strings.ToLower(before))
	if len(prev) > 0 {
		p := strings.Trim(prev[len(prev)-1], ".,")
		for _, t := range personTitles {
			if p == t {
				return LabelPerson
			}
		}
	}
	return LabelProper
}

func unitDays(unit string) float64 {
	switch strings.TrimSuffix(unit, "s") {
	case "minute":
		return 1.0 / 1440
	case "hour":
		return 1.0 / 24
	case "day":
		return 1
	case "week":
		return 7
	case "month":
		return 30
	case "year":
		return 365
	}
	return 1
}

// parseMoney turns "$50,000", "50k dollars" or "€1.2 million" into an amount
func parseMoney(raw string) (float64, bool) {
	s := strings.ToLower(raw)
	for _, sym := range []string{"$", "€", "£", "dollars", "usd", "euros", "eur", "pounds", "gbp"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))

	multiplier := 1.0
	for _, suf := range []struct {
		text string
		mult float64
	}{{"thousand", 1e3}, {"million", 1e6}, {"billion", 1e9}, {"bn", 1e9}, {"k", 1e3}, {"m", 1e6}} {
		if strings.HasSuffix(s, suf.text) {
			multiplier = suf.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, suf.text))
			break
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}
