package pipeline

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rankforge/crawlpipe/internal/domain"
)

const (
	// maxTopicTerms caps the persisted topic map size.
	maxTopicTerms = 50

	// minTermLength drops noise tokens like "a" and "of" fragments.
	minTermLength = 3
)

// stopwords are excluded from the topic map regardless of frequency.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "has": {}, "have": {}, "had": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "they": {}, "them": {}, "their": {}, "there": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"your": {}, "our": {}, "out": {}, "about": {}, "into": {}, "over": {},
	"than": {}, "then": {}, "these": {}, "those": {}, "some": {},
	"such": {}, "only": {}, "other": {}, "more": {}, "most": {},
	"also": {}, "after": {}, "before": {}, "being": {}, "been": {},
	"its": {}, "it's": {}, "how": {}, "why": {}, "who": {}, "whom": {},
	"does": {}, "did": {}, "doing": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {},
	"each": {}, "every": {}, "any": {}, "both": {}, "few": {}, "own": {},
	"same": {}, "too": {}, "very": {}, "just": {}, "here": {}, "get": {},
	"use": {}, "using": {}, "one": {}, "two": {}, "new": {}, "way": {},
}

// BuildTopicMap aggregates term frequencies across the extracted page
// texts into the site-wide topic map: lowercased alphanumeric tokens,
// stopwords and short tokens dropped, top terms by count.
func BuildTopicMap(texts []string) *domain.TopicMap {
	counts := map[string]int{}
	totalWords := 0

	for _, text := range texts {
		for _, token := range tokenize(text) {
			totalWords++

			if len(token) < minTermLength {
				continue
			}
			if _, skip := stopwords[token]; skip {
				continue
			}
			counts[token]++
		}
	}

	terms := make([]domain.TermWeight, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, domain.TermWeight{Term: term, Count: count})
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	if len(terms) > maxTopicTerms {
		terms = terms[:maxTopicTerms]
	}

	return &domain.TopicMap{
		Terms:      terms,
		PageCount:  len(texts),
		TotalWords: totalWords,
	}
}

// tokenize lowercases text and splits it on anything that is not a
// letter, digit, or apostrophe.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// BuildKeywordCoverage reports which target keywords the site's text
// already covers. Matching is a case-insensitive phrase search over the
// extracted texts, so multi-word keywords work.
func BuildKeywordCoverage(keywords []string, texts []string) *domain.KeywordCoverage {
	coverage := &domain.KeywordCoverage{
		Covered: []string{},
		Missing: []string{},
	}

	if len(keywords) == 0 {
		return coverage
	}

	var corpus strings.Builder
	for _, text := range texts {
		corpus.WriteString(strings.ToLower(text))
		corpus.WriteByte(' ')
	}
	haystack := corpus.String()

	for _, keyword := range keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}

		if strings.Contains(haystack, needle) {
			coverage.Covered = append(coverage.Covered, keyword)
		} else {
			coverage.Missing = append(coverage.Missing, keyword)
		}
	}

	total := len(coverage.Covered) + len(coverage.Missing)
	if total > 0 {
		coverage.CoverageRatio = float64(len(coverage.Covered)) / float64(total)
	}

	return coverage
}
