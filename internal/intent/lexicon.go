package intent

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// The lexicon tables below are the static Russian vocabularies used by the
// rule matcher. They are built once at package init and never mutated.

// ambiguousMetricTerms force rejection: "реакции" could mean likes, comments
// or any combination, so the whole request is unsupported.
var ambiguousMetricTerms = map[string]struct{}{
	"реакции": {},
	"реакция": {},
	"реакций": {},
}

var metricSynonyms = map[Metric][]string{
	MetricViews:    {"просмотры", "просмотр", "просмотров", "views"},
	MetricLikes:    {"лайки", "лайк", "лайков", "нравится", "сердечки"},
	MetricComments: {"комментарии", "комментарий", "коммент", "комменты", "комментариев"},
	MetricReports:  {"жалобы", "жалоба", "жалоб", "пожаловаться", "репорт", "репорты"},
}

var comparatorSynonyms = map[Comparator][]string{
	ComparatorGreater:        {"больше чем", "более чем", "свыше", "больше"},
	ComparatorGreaterOrEqual: {"по меньшей мере", "как минимум", "не меньше", "не менее"},
	ComparatorLess:           {"меньше чем", "менее чем", "меньше"},
	ComparatorLessOrEqual:    {"не превышает", "не больше", "не более", "максимум"},
	ComparatorEqual:          {"равняется", "равно", "ровно"},
}

type comparatorMatch struct {
	cmp    Comparator
	phrase string
}

var (
	metricTermToMetric map[string]Metric
	comparatorMatches  []comparatorMatch
)

func init() {
	metricTermToMetric = make(map[string]Metric)
	for metric, terms := range metricSynonyms {
		for _, term := range terms {
			metricTermToMetric[term] = metric
		}
	}

	for cmp, phrases := range comparatorSynonyms {
		for _, phrase := range phrases {
			comparatorMatches = append(comparatorMatches, comparatorMatch{cmp: cmp, phrase: phrase})
		}
	}
	// Longest phrase first, so "не больше" always outranks "больше". This
	// ordering carries over into the regex alternations built from it.
	sortPhrasesLongestFirst(comparatorMatches)
}

func sortPhrasesLongestFirst(matches []comparatorMatch) {
	sort.Slice(matches, func(i, j int) bool {
		leftLen := utf8.RuneCountInString(matches[i].phrase)
		rightLen := utf8.RuneCountInString(matches[j].phrase)
		if leftLen != rightLen {
			return leftLen > rightLen
		}
		return matches[i].phrase < matches[j].phrase
	})
}

// buildAlternation joins phrases into a regex alternation, longest phrase
// first so first-match-wins semantics prefer the longer phrase on overlap.
func buildAlternation(phrases []string) string {
	sorted := make([]string, len(phrases))
	copy(sorted, phrases)
	sort.Slice(sorted, func(i, j int) bool {
		leftLen := utf8.RuneCountInString(sorted[i])
		rightLen := utf8.RuneCountInString(sorted[j])
		if leftLen != rightLen {
			return leftLen > rightLen
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, phrase := range sorted {
		quoted[i] = regexp.QuoteMeta(phrase)
	}
	return strings.Join(quoted, "|")
}

func hasAmbiguousMetricTerm(normalized string) bool {
	for _, token := range strings.Fields(normalized) {
		if _, ambiguous := ambiguousMetricTerms[token]; ambiguous {
			return true
		}
	}
	return false
}

func findMetrics(normalized string) map[Metric]struct{} {
	found := make(map[Metric]struct{})
	for _, token := range strings.Fields(normalized) {
		if metric, known := metricTermToMetric[token]; known {
			found[metric] = struct{}{}
		}
	}
	return found
}

// detectSingleMetric returns the metric mentioned in the text if exactly one
// is present, and zero otherwise.
func detectSingleMetric(normalized string) Metric {
	found := findMetrics(normalized)
	if len(found) != 1 {
		return 0
	}
	for metric := range found {
		return metric
	}
	return 0
}

func comparatorForPhrase(phrase string) (Comparator, bool) {
	for _, match := range comparatorMatches {
		if match.phrase == phrase {
			return match.cmp, true
		}
	}
	return 0, false
}
