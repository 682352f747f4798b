package domain

import (
	"regexp"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`\w+://\S+`)
	mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_]+`)
	resharePattern = regexp.MustCompile(`^RT\s+`)
	noisePattern   = regexp.MustCompile(`[^0-9A-Za-z]+`)
	tagPattern     = regexp.MustCompile(`#[A-Za-z][A-Za-z0-9]*`)
)

// Normalize cleans raw post text for storage and frequency counting: bare
// URLs, @mentions, leading reshare markers, and non-alphanumeric symbols
// (emoji included) are stripped, and runs of whitespace collapse to a single
// space. Letter casing is preserved; Tokenize lower-cases its own copy. The
// function is total over all inputs, the worst case being an empty result.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "&amp;", " and ")
	s = resharePattern.ReplaceAllString(s, " ")
	s = urlPattern.ReplaceAllString(s, " ")
	s = mentionPattern.ReplaceAllString(s, " ")
	s = noisePattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ExtractTags returns every hash-prefixed token of raw (a '#' followed by a
// letter and any run of alphanumerics) in order of appearance, preserving
// original case. No case folding is applied, so #COVID and #covid are
// tracked as distinct tags.
func ExtractTags(raw string) []string {
	return tagPattern.FindAllString(raw, -1)
}

// Tokenize lower-cases clean text and returns its words of at least minLen
// bytes that are not in the stopword set, preserving order.
func Tokenize(clean string, minLen int, stopwords map[string]struct{}) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(clean)) {
		if len(w) < minLen {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

// StopwordSet builds a lookup set from a word list, lower-casing each entry.
func StopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// DefaultStopwords is the built-in English stopword list used when no
// external stopword file is configured.
var DefaultStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an",
	"and", "any", "are", "aren", "as", "at", "be", "because", "been",
	"before", "being", "below", "between", "both", "but", "by", "can",
	"could", "did", "didn", "do", "does", "doesn", "doing", "don", "down",
	"during", "each", "few", "for", "from", "further", "had", "has", "have",
	"having", "he", "her", "here", "hers", "herself", "him", "himself",
	"his", "how", "i", "if", "in", "into", "is", "isn", "it", "its",
	"itself", "just", "me", "more", "most", "my", "myself", "no", "nor",
	"not", "now", "of", "off", "on", "once", "only", "or", "other", "our",
	"ours", "ourselves", "out", "over", "own", "same", "she", "should",
	"so", "some", "such", "than", "that", "the", "their", "theirs", "them",
	"themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "very", "was", "wasn",
	"we", "were", "weren", "what", "when", "where", "which", "while", "who",
	"whom", "why", "will", "with", "won", "would", "you", "your", "yours",
	"yourself", "yourselves",
}
