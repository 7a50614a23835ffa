package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The rule matcher is intentionally strict and deterministic: it recognizes
// a fixed set of patterns, rejects ambiguous metric terms outright, and
// produces an Intent that passes the shared schema validation. Operation
// detection runs in a fixed priority order; the first matching rule wins.

var (
	countWords = map[string]struct{}{
		"сколько":    {},
		"количество": {},
		"число":      {},
	}

	videoLikeTokens = map[string]struct{}{
		"ролик":   {},
		"ролика":  {},
		"ролики":  {},
		"роликов": {},
	}

	growthPhrases = []string{
		" на сколько ",
		" насколько ",
		" прирост ",
		" вырос ",
		" выросли ",
		" увеличил",
	}

	aggregationCueTokens = map[string]struct{}{
		"сколько":    {},
		"количество": {},
		"число":      {},
		"всего":      {},
		"итого":      {},
		"сумма":      {},
		"сумме":      {},
		"суммарно":   {},
		"суммарное":  {},
		"суммарный":  {},
	}

	snapshotTermPrefixes = []string{"замер", "снапшот", "снимок", "снимк"}
	negativeCuePrefixes  = []string{"отрицательн", "упал", "снизил"}
	creatorCuePrefixes   = []string{"креатор", "автор", "блогер"}

	allTimePhrases = []string{
		" за все время ",
		" за весь период ",
		" all time ",
	}

	asOfPhrases = []string{
		" на тот момент ",
		" на дату ",
	}

	// Terse "к 28 ..." as-of form; kept narrow so a bare "к" in other
	// contexts never triggers as-of mode.
	asOfDayPattern = regexp.MustCompile(`(?:^| )к \d{1,2} `)

	// Explicit "count videos"/"count creators" phrasing: the count word
	// must directly precede the subject, so a metric-count phrase like
	// "количество просмотров" is left for the sum rule.
	countVideosPattern = regexp.MustCompile(
		`(?:^| )(?:сколько|количество|число)(?: всего| разных| уникальных)? (?:видео|ролик)[а-я]*`,
	)
	countCreatorsPattern = regexp.MustCompile(
		`(?:^| )(?:сколько|количество|число)(?: всего| разных| уникальных)? (?:креатор|автор|блогер)[а-я]*`,
	)

	creatorIDPattern = regexp.MustCompile(
		`(?:креатора|креатор|creator)(?: с)?(?: (?:id|айди|идентификатор|creator_id))? ([0-9a-z_-]{3,}) `,
	)
)

var (
	thresholdCmpFirstPattern    *regexp.Regexp
	thresholdMetricFirstPattern *regexp.Regexp
)

func init() {
	metricTerms := make([]string, 0, len(metricTermToMetric))
	for term := range metricTermToMetric {
		metricTerms = append(metricTerms, term)
	}
	metricGroup := "(" + buildAlternation(metricTerms) + ")"

	comparatorPhrases := make([]string, len(comparatorMatches))
	for i, match := range comparatorMatches {
		comparatorPhrases[i] = match.phrase
	}
	comparatorGroup := "(" + buildAlternation(comparatorPhrases) + ")"

	valueGroup := `(\d[\d _]*)`

	thresholdCmpFirstPattern = regexp.MustCompile(
		" " + comparatorGroup + " " + valueGroup + " " + metricGroup + " ",
	)
	thresholdMetricFirstPattern = regexp.MustCompile(
		" " + metricGroup + " " + comparatorGroup + " " + valueGroup + " ",
	)
}

// ParseRules parses user text into a validated Intent using the
// deterministic rule grammar.
func ParseRules(text string) (Intent, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return Intent{}, ErrEmptyInput
	}
	if hasAmbiguousMetricTerm(normalized) {
		return Intent{}, ErrAmbiguousMetric
	}

	raw := foldRaw(text)
	padded := " " + normalized + " "
	tokens := tokenSet(normalized)

	operation, err := detectOperation(padded, tokens)
	if err != nil {
		return Intent{}, err
	}

	asOf := hasAsOfPhrase(padded)
	appliesTo := AppliesToFinalTotal
	if asOf {
		appliesTo = AppliesToSnapshotAsOf
	}

	thresholds, err := extractThresholds(padded, appliesTo)
	if err != nil {
		return Intent{}, err
	}

	var dateRange *DateRange
	if !hasAllTimePhrase(padded) {
		if start, end, found := parseDateRange(raw); found {
			dateRange = &DateRange{
				Scope: dateRangeScopeFor(operation, asOf),
				Start: start,
				End:   end,
			}
		}
	}
	if dateRange == nil && asOf {
		return Intent{}, ErrAsOfRequiresDate
	}

	window, err := parseTimeWindow(raw)
	if err != nil {
		return Intent{}, err
	}
	if window != nil && !timeWindowApplies(operation, dateRange) {
		// A window only constrains snapshot timestamps within one day;
		// anywhere else the mention carries no queryable meaning.
		window = nil
	}

	var metric Metric
	if operation.MetricBased() {
		metric = detectSingleMetric(normalized)
		if metric == 0 {
			return Intent{}, ErrMetricRequired
		}
	}

	intent := Intent{
		Operation:  operation,
		Metric:     metric,
		DateRange:  dateRange,
		TimeWindow: window,
		Filters: Filters{
			CreatorID:  extractCreatorID(padded),
			Thresholds: thresholds,
		},
	}
	if err := intent.Validate(); err != nil {
		return Intent{}, fmt.Errorf("intent validation: %w", err)
	}
	return intent, nil
}

func tokenSet(normalized string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, token := range strings.Fields(normalized) {
		tokens[token] = struct{}{}
	}
	return tokens
}

func hasCountWord(tokens map[string]struct{}) bool {
	for word := range countWords {
		if _, ok := tokens[word]; ok {
			return true
		}
	}
	return false
}

func anyTokenHasPrefix(tokens map[string]struct{}, prefixes ...string) bool {
	for token := range tokens {
		for _, prefix := range prefixes {
			if strings.HasPrefix(token, prefix) {
				return true
			}
		}
	}
	return false
}

func detectOperation(padded string, tokens map[string]struct{}) (Operation, error) {
	// 1. Snapshots whose delta went negative.
	if anyTokenHasPrefix(tokens, snapshotTermPrefixes...) &&
		anyTokenHasPrefix(tokens, negativeCuePrefixes...) &&
		hasCountWord(tokens) {
		return OperationCountSnapshotsWithNegativeDelta, nil
	}

	// 2. Growth ("by how much did ... grow").
	for _, phrase := range growthPhrases {
		if strings.Contains(padded, phrase) {
			return OperationSumDeltaMetric, nil
		}
	}

	// 3. Videos that received new metric values.
	if _, hasVideo := tokens["видео"]; hasVideo {
		if _, hasHowMany := tokens["сколько"]; hasHowMany && anyTokenHasPrefix(tokens, "нов") {
			return OperationCountDistinctVideosWithPositiveDelta, nil
		}
	}

	// Distinct calendar days with at least one publish; keyed on its own
	// phrasing so the plain count rules below stay untouched.
	if anyTokenHasPrefix(tokens, "календарн") && anyTokenHasPrefix(tokens, "публик", "опубликов") &&
		(hasCountWord(tokens) || anyTokenHasPrefix(tokens, "скольких", "посчита")) {
		return OperationCountDistinctPublishDays, nil
	}

	// 4. Explicit "how many videos".
	if countVideosPattern.MatchString(padded) {
		return OperationCountVideos, nil
	}

	// 5. Explicit "how many creators".
	if countCreatorsPattern.MatchString(padded) {
		return OperationCountDistinctCreators, nil
	}

	// 6. Bare metric mention with an aggregation cue.
	if len(findMetrics(padded)) > 0 {
		for cue := range aggregationCueTokens {
			if _, ok := tokens[cue]; ok {
				return OperationSumTotalMetric, nil
			}
		}
	}

	// 7. Residual "how many" with a video-like token.
	if hasCountWord(tokens) {
		for token := range tokens {
			if _, ok := videoLikeTokens[token]; ok {
				return OperationCountVideos, nil
			}
			if strings.HasPrefix(token, "видео") {
				return OperationCountVideos, nil
			}
		}
	}

	return 0, ErrUnsupportedQuery
}

func dateRangeScopeFor(operation Operation, asOf bool) DateRangeScope {
	if operation.SnapshotBased() {
		return ScopeSnapshotsCreatedAt
	}
	// As-of forces count-like operations onto the snapshot timeline; the
	// publish-scoped operations keep their own axis.
	if asOf && (operation == OperationCountVideos || operation == OperationCountDistinctCreators) {
		return ScopeSnapshotsCreatedAt
	}
	return ScopeVideosPublishedAt
}

func timeWindowApplies(operation Operation, dateRange *DateRange) bool {
	return operation.SnapshotBased() &&
		dateRange != nil &&
		dateRange.SingleDay() &&
		dateRange.Scope == ScopeSnapshotsCreatedAt
}

func hasAllTimePhrase(padded string) bool {
	for _, phrase := range allTimePhrases {
		if strings.Contains(padded, phrase) {
			return true
		}
	}
	return false
}

func hasAsOfPhrase(padded string) bool {
	for _, phrase := range asOfPhrases {
		if strings.Contains(padded, phrase) {
			return true
		}
	}
	return asOfDayPattern.MatchString(padded)
}

func extractCreatorID(padded string) string {
	match := creatorIDPattern.FindStringSubmatch(padded)
	if match == nil {
		return ""
	}
	return match[1]
}

type thresholdKey struct {
	appliesTo ThresholdAppliesTo
	metric    Metric
	cmp       Comparator
	value     int64
}

// extractThresholds finds every (comparator, integer, metric) pairing in
// either order. Matches may share a separating space, so the scan resumes
// one byte before each match end. Duplicates are removed preserving
// first-seen order.
func extractThresholds(padded string, appliesTo ThresholdAppliesTo) ([]Threshold, error) {
	var thresholds []Threshold
	seen := make(map[thresholdKey]struct{})

	appendMatch := func(metricTerm, comparatorPhrase, rawValue string) error {
		metric, knownMetric := metricTermToMetric[metricTerm]
		cmp, knownCmp := comparatorForPhrase(comparatorPhrase)
		if !knownMetric || !knownCmp {
			return nil
		}

		digits := strings.NewReplacer(" ", "", "_", "").Replace(rawValue)
		value, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return fmt.Errorf("threshold value %q out of range: %w", digits, err)
		}

		key := thresholdKey{appliesTo: appliesTo, metric: metric, cmp: cmp, value: value}
		if _, duplicate := seen[key]; duplicate {
			return nil
		}
		seen[key] = struct{}{}
		thresholds = append(thresholds, Threshold{
			AppliesTo: appliesTo,
			Metric:    metric,
			Cmp:       cmp,
			Value:     value,
		})
		return nil
	}

	if err := scanMatches(thresholdCmpFirstPattern, padded, func(groups []string) error {
		return appendMatch(groups[3], groups[1], groups[2])
	}); err != nil {
		return nil, err
	}
	if err := scanMatches(thresholdMetricFirstPattern, padded, func(groups []string) error {
		return appendMatch(groups[1], groups[2], groups[3])
	}); err != nil {
		return nil, err
	}

	return thresholds, nil
}

func scanMatches(pattern *regexp.Regexp, text string, handle func(groups []string) error) error {
	offset := 0
	for offset < len(text) {
		loc := pattern.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			return nil
		}

		groups := make([]string, 0, 4)
		for i := 0; i < len(loc); i += 2 {
			if loc[i] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, text[offset+loc[i]:offset+loc[i+1]])
		}
		if err := handle(groups); err != nil {
			return err
		}

		// Step back one byte so a trailing space can open the next match.
		next := offset + loc[1] - 1
		if next <= offset {
			next = offset + 1
		}
		offset = next
	}
	return nil
}
