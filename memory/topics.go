package memory

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords excluded from topic extraction. Deliberately small; the goal is
// topic signal, not NLP.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "will": {}, "would": {},
	"how": {}, "who": {}, "are": {}, "was": {}, "were": {}, "can": {},
	"could": {}, "should": {}, "about": {}, "from": {}, "into": {},
	"show": {}, "give": {}, "tell": {}, "please": {}, "their": {},
	"them": {}, "they": {}, "have": {}, "has": {}, "had": {}, "does": {},
	"did": {}, "not": {}, "all": {}, "any": {}, "get": {}, "our": {},
}

// extractTopics pulls candidate topic terms from free text: lowercased
// alphanumeric words of three or more characters, minus stopwords,
// deduplicated in order of first appearance.
func extractTopics(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
	seen := make(map[string]struct{}, len(words))
	var out []string
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// topTopics returns up to k topics by descending count, ties broken
// lexically for determinism.
func topTopics(counts map[string]int, k int) []string {
	topics := make([]string, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > k {
		topics = topics[:k]
	}
	return topics
}

// topicOverlap counts how many of a's topics appear in b.
func topicOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range a {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}
