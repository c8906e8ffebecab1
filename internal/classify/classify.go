// Package classify annotates fetched documents with a detected language.
// The annotation is informational only: nothing in scheduling or routing
// ever branches on it.
package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/nao1215/harvester/internal/model"
)

// langAttrRe extracts the lang attribute from the <html> element.
var langAttrRe = regexp.MustCompile(`(?i)<html[^>]*\blang\s*=\s*["']?([A-Za-z-]+)`)

// supported is the set of languages the stop-word heuristic can tell
// apart. The matcher canonicalizes header and attribute values against the
// same set, so all three detection paths agree on tag spelling.
var supported = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
	language.Portuguese,
	language.Italian,
	language.Dutch,
	language.Russian,
	language.Japanese,
	language.Chinese,
	language.Korean,
}

var matcher = language.NewMatcher(supported)

// stopWords maps a language to words frequent enough to identify it in
// running text. Deliberately small: the heuristic is a fallback for pages
// that declare nothing, not a linguistics engine.
var stopWords = map[language.Tag][]string{
	language.English:    {"the", "and", "was", "with", "have", "this"},
	language.German:     {"der", "die", "und", "das", "nicht", "ein"},
	language.French:     {"les", "des", "est", "dans", "pour", "une"},
	language.Spanish:    {"los", "las", "por", "con", "para", "una"},
	language.Portuguese: {"uma", "para", "com", "das", "dos", "mais"},
	language.Italian:    {"che", "per", "della", "con", "una", "sono"},
	language.Dutch:      {"het", "een", "van", "voor", "niet", "zijn"},
}

// Detect returns the BCP 47 tag of the page's language, or the empty
// string when detection is inconclusive. Detection order:
//
//  1. The Content-Language response header.
//  2. The lang attribute on the <html> element.
//  3. A stop-word frequency heuristic over the text snapshot.
//
// The declared sources win over the heuristic because publishers know
// their own content; the heuristic only fills silence.
func Detect(page *model.Page) string {
	if page == nil {
		return ""
	}

	if tag, ok := parseDeclared(headerValue(page, "Content-Language")); ok {
		return tag
	}
	// The lang attribute is looked up in the raw markup: by the time
	// classification runs, the snapshot may already be text-only.
	if m := langAttrRe.FindSubmatch(page.Raw); len(m) == 2 {
		if tag, ok := parseDeclared(string(m[1])); ok {
			return tag
		}
	}
	if m := langAttrRe.FindStringSubmatch(page.Snapshot); len(m) == 2 {
		if tag, ok := parseDeclared(m[1]); ok {
			return tag
		}
	}
	return detectByStopWords(page.Snapshot)
}

// parseDeclared canonicalizes a declared language value ("en-US, en")
// against the supported set.
func parseDeclared(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(tags) == 0 {
		return "", false
	}

	_, i, conf := matcher.Match(tags...)
	if conf == language.No {
		// Declared but outside the supported set: keep the publisher's
		// base language rather than discarding the declaration.
		base, c := tags[0].Base()
		if c == language.No {
			return "", false
		}
		return base.String(), true
	}
	base, _ := supported[i].Base()
	return base.String(), true
}

// detectByStopWords scores the snapshot against each language's stop
// words and returns the clear winner, if any.
func detectByStopWords(snapshot string) string {
	if snapshot == "" {
		return ""
	}

	words := strings.Fields(strings.ToLower(snapshot))
	if len(words) < 20 {
		return "" // too little text to call
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[strings.Trim(w, ".,;:!?\"'()")]++
	}

	bestTag, bestScore, secondScore := language.Und, 0, 0
	for tag, stops := range stopWords {
		score := 0
		for _, s := range stops {
			score += counts[s]
		}
		if score > bestScore {
			bestTag, secondScore, bestScore = tag, bestScore, score
		} else if score > secondScore {
			secondScore = score
		}
	}

	// Require a clear margin; ties mean we do not know.
	if bestScore < 3 || bestScore < secondScore*2 {
		return ""
	}
	base, _ := bestTag.Base()
	return base.String()
}

// headerValue fetches a response header from the page, case-insensitively.
func headerValue(page *model.Page, name string) string {
	for k, v := range page.Headers {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
