// Package intent implements the natural-language-to-intent pipeline: text
// normalization, the Russian query lexicon, date/time extraction, the
// deterministic rule matcher, the optional LLM parser, and the validated
// Intent schema shared by all parsers.
package intent

import (
	"encoding/json"
	"fmt"
	"time"

	"hermannm.dev/enumnames"
)

// Operation is the aggregate family a query computes.
type Operation uint8

const (
	OperationCountVideos Operation = iota + 1
	OperationCountDistinctCreators
	OperationCountDistinctPublishDays
	OperationSumTotalMetric
	OperationSumDeltaMetric
	OperationCountDistinctVideosWithPositiveDelta
	OperationCountSnapshotsWithNegativeDelta
)

var operationNames = enumnames.NewMap(map[Operation]string{
	OperationCountVideos:                          "count_videos",
	OperationCountDistinctCreators:                "count_distinct_creators",
	OperationCountDistinctPublishDays:             "count_distinct_publish_days",
	OperationSumTotalMetric:                       "sum_total_metric",
	OperationSumDeltaMetric:                       "sum_delta_metric",
	OperationCountDistinctVideosWithPositiveDelta: "count_distinct_videos_with_positive_delta",
	OperationCountSnapshotsWithNegativeDelta:      "count_snapshots_with_negative_delta",
})

func (op Operation) IsValid() bool {
	return operationNames.ContainsEnumValue(op)
}

func (op Operation) String() string {
	return operationNames.GetNameOrFallback(op, "INVALID_OPERATION")
}

func (op Operation) MarshalJSON() ([]byte, error) {
	return operationNames.MarshalToNameJSON(op)
}

func (op *Operation) UnmarshalJSON(bytes []byte) error {
	return operationNames.UnmarshalFromNameJSON(bytes, op)
}

// MetricBased reports whether the operation aggregates a specific metric, as
// opposed to a pure count. Metric-based operations require Intent.Metric;
// pure counts forbid it.
func (op Operation) MetricBased() bool {
	switch op {
	case OperationSumTotalMetric,
		OperationSumDeltaMetric,
		OperationCountDistinctVideosWithPositiveDelta,
		OperationCountSnapshotsWithNegativeDelta:
		return true
	default:
		return false
	}
}

// SnapshotBased reports whether the operation aggregates over snapshot rows
// (delta sums and delta counts). Only snapshot-based operations may carry a
// clock-time window.
func (op Operation) SnapshotBased() bool {
	switch op {
	case OperationSumDeltaMetric,
		OperationCountDistinctVideosWithPositiveDelta,
		OperationCountSnapshotsWithNegativeDelta:
		return true
	default:
		return false
	}
}

// Metric is one of the four countable quantities tracked per video.
type Metric uint8

const (
	MetricViews Metric = iota + 1
	MetricLikes
	MetricComments
	MetricReports
)

var metricNames = enumnames.NewMap(map[Metric]string{
	MetricViews:    "views",
	MetricLikes:    "likes",
	MetricComments: "comments",
	MetricReports:  "reports",
})

func (metric Metric) IsValid() bool {
	return metricNames.ContainsEnumValue(metric)
}

func (metric Metric) String() string {
	return metricNames.GetNameOrFallback(metric, "INVALID_METRIC")
}

func (metric Metric) MarshalJSON() ([]byte, error) {
	return metricNames.MarshalToNameJSON(metric)
}

func (metric *Metric) UnmarshalJSON(bytes []byte) error {
	return metricNames.UnmarshalFromNameJSON(bytes, metric)
}

// Comparator is a canonical SQL comparison operator for threshold filters.
type Comparator uint8

const (
	ComparatorGreater Comparator = iota + 1
	ComparatorGreaterOrEqual
	ComparatorLess
	ComparatorLessOrEqual
	ComparatorEqual
)

var comparatorNames = enumnames.NewMap(map[Comparator]string{
	ComparatorGreater:        ">",
	ComparatorGreaterOrEqual: ">=",
	ComparatorLess:           "<",
	ComparatorLessOrEqual:    "<=",
	ComparatorEqual:          "=",
})

func (cmp Comparator) IsValid() bool {
	return comparatorNames.ContainsEnumValue(cmp)
}

func (cmp Comparator) String() string {
	return comparatorNames.GetNameOrFallback(cmp, "INVALID_COMPARATOR")
}

func (cmp Comparator) MarshalJSON() ([]byte, error) {
	return comparatorNames.MarshalToNameJSON(cmp)
}

func (cmp *Comparator) UnmarshalJSON(bytes []byte) error {
	return comparatorNames.UnmarshalFromNameJSON(bytes, cmp)
}

// DateRangeScope selects which timestamp column a date filter applies to.
type DateRangeScope uint8

const (
	ScopeVideosPublishedAt DateRangeScope = iota + 1
	ScopeSnapshotsCreatedAt
)

var dateRangeScopeNames = enumnames.NewMap(map[DateRangeScope]string{
	ScopeVideosPublishedAt:  "videos_published_at",
	ScopeSnapshotsCreatedAt: "snapshots_created_at",
})

func (scope DateRangeScope) IsValid() bool {
	return dateRangeScopeNames.ContainsEnumValue(scope)
}

func (scope DateRangeScope) String() string {
	return dateRangeScopeNames.GetNameOrFallback(scope, "INVALID_DATE_RANGE_SCOPE")
}

func (scope DateRangeScope) MarshalJSON() ([]byte, error) {
	return dateRangeScopeNames.MarshalToNameJSON(scope)
}

func (scope *DateRangeScope) UnmarshalJSON(bytes []byte) error {
	return dateRangeScopeNames.UnmarshalFromNameJSON(bytes, scope)
}

// ThresholdAppliesTo selects where a threshold is evaluated: against a
// video's current totals, or against the maximum snapshot value observed
// within the date range.
type ThresholdAppliesTo uint8

const (
	AppliesToFinalTotal ThresholdAppliesTo = iota + 1
	AppliesToSnapshotAsOf
)

var thresholdAppliesToNames = enumnames.NewMap(map[ThresholdAppliesTo]string{
	AppliesToFinalTotal:   "final_total",
	AppliesToSnapshotAsOf: "snapshot_as_of",
})

func (appliesTo ThresholdAppliesTo) IsValid() bool {
	return thresholdAppliesToNames.ContainsEnumValue(appliesTo)
}

func (appliesTo ThresholdAppliesTo) String() string {
	return thresholdAppliesToNames.GetNameOrFallback(appliesTo, "INVALID_THRESHOLD_APPLIES_TO")
}

func (appliesTo ThresholdAppliesTo) MarshalJSON() ([]byte, error) {
	return thresholdAppliesToNames.MarshalToNameJSON(appliesTo)
}

func (appliesTo *ThresholdAppliesTo) UnmarshalJSON(bytes []byte) error {
	return thresholdAppliesToNames.UnmarshalFromNameJSON(bytes, appliesTo)
}

// DateRange is an inclusive calendar-day range as entered by the user.
// Start and End are UTC midnights; the SQL builder interprets the range as
// the half-open interval [Start, End+1day).
type DateRange struct {
	Scope DateRangeScope
	Start time.Time
	End   time.Time
}

// SingleDay reports whether the range covers exactly one calendar day.
func (dateRange DateRange) SingleDay() bool {
	return dateRange.Start.Equal(dateRange.End)
}

// HalfOpen converts the inclusive day range into the half-open UTC interval
// [Start 00:00:00, (End + 1 day) 00:00:00).
func (dateRange DateRange) HalfOpen() (start time.Time, end time.Time) {
	return dateRange.Start, dateRange.End.AddDate(0, 0, 1)
}

func (dateRange DateRange) validate() error {
	if !dateRange.Scope.IsValid() {
		return fmt.Errorf("invalid date range scope %d", dateRange.Scope)
	}
	if dateRange.Start.IsZero() || dateRange.End.IsZero() {
		return fmt.Errorf("date range start/end must be set")
	}
	if dateRange.Start.After(dateRange.End) {
		return fmt.Errorf("date range start must be <= end")
	}
	return nil
}

// TimeWindow is a clock-time interval within a single day, expressed as
// offsets from UTC midnight. The SQL builder applies it with an inclusive
// upper bound, unlike the exclusive whole-day filter.
type TimeWindow struct {
	Start time.Duration
	End   time.Duration
}

func (window TimeWindow) validate() error {
	if window.Start < 0 || window.End >= 24*time.Hour {
		return fmt.Errorf("time window must lie within a single day")
	}
	if window.Start > window.End {
		return fmt.Errorf("time window start must be <= end")
	}
	return nil
}

// Threshold is a single comparator+value filter; all thresholds on an intent
// are combined with logical AND.
type Threshold struct {
	AppliesTo ThresholdAppliesTo
	Metric    Metric
	Cmp       Comparator
	Value     int64
}

func (threshold Threshold) validate() error {
	if !threshold.AppliesTo.IsValid() {
		return fmt.Errorf("invalid threshold applies-to %d", threshold.AppliesTo)
	}
	if !threshold.Metric.IsValid() {
		return fmt.Errorf("invalid threshold metric %d", threshold.Metric)
	}
	if !threshold.Cmp.IsValid() {
		return fmt.Errorf("invalid threshold comparator %d", threshold.Cmp)
	}
	return nil
}

// Filters are the query filters combined with logical AND.
type Filters struct {
	CreatorID  string
	Thresholds []Threshold
}

// Intent is the structured representation of a user query. It is the sole
// contract between parsing (rules or LLM) and SQL generation; an Intent must
// pass Validate before reaching the builder.
type Intent struct {
	Operation  Operation
	Metric     Metric // zero when absent
	DateRange  *DateRange
	TimeWindow *TimeWindow
	Filters    Filters
}

// Validate enforces every cross-field invariant. All invariants are checked
// on every call, independent of which parser produced the intent.
func (intent Intent) Validate() error {
	if !intent.Operation.IsValid() {
		return fmt.Errorf("invalid operation %d", intent.Operation)
	}

	if intent.Operation.MetricBased() {
		if !intent.Metric.IsValid() {
			return fmt.Errorf("metric is required for operation %s", intent.Operation)
		}
	} else if intent.Metric != 0 {
		return fmt.Errorf("metric must be absent for operation %s", intent.Operation)
	}

	if intent.DateRange != nil {
		if err := intent.DateRange.validate(); err != nil {
			return err
		}
	}

	hasSnapshotAsOf := false
	for _, threshold := range intent.Filters.Thresholds {
		if err := threshold.validate(); err != nil {
			return err
		}
		if threshold.AppliesTo == AppliesToSnapshotAsOf {
			hasSnapshotAsOf = true
		}
	}

	if hasSnapshotAsOf {
		if intent.DateRange == nil {
			return fmt.Errorf("snapshot as-of thresholds require a date range")
		}
		if intent.DateRange.Scope != ScopeSnapshotsCreatedAt {
			return fmt.Errorf("snapshot as-of thresholds require a snapshot-scoped date range")
		}
	}

	if intent.Operation.SnapshotBased() && intent.DateRange != nil &&
		intent.DateRange.Scope != ScopeSnapshotsCreatedAt {
		return fmt.Errorf("operation %s requires a snapshot-scoped date range", intent.Operation)
	}

	if intent.Operation == OperationCountDistinctPublishDays {
		if intent.DateRange == nil {
			return fmt.Errorf("operation %s requires a date range", intent.Operation)
		}
		if intent.DateRange.Scope != ScopeVideosPublishedAt {
			return fmt.Errorf("operation %s requires a publish-scoped date range", intent.Operation)
		}
	}

	if intent.TimeWindow != nil {
		if err := intent.TimeWindow.validate(); err != nil {
			return err
		}
		if !intent.Operation.SnapshotBased() {
			return fmt.Errorf("time window is only valid for snapshot-based operations")
		}
		if intent.DateRange == nil || !intent.DateRange.SingleDay() ||
			intent.DateRange.Scope != ScopeSnapshotsCreatedAt {
			return fmt.Errorf("time window requires a single-day snapshot-scoped date range")
		}
	}

	return nil
}

// Wire types for decoding an externally produced intent (e.g. LLM output).
// Dates and clock times travel as strings; everything else reuses the enum
// JSON names above.

type intentWire struct {
	Operation  Operation       `json:"operation"`
	Metric     *Metric         `json:"metric"`
	DateRange  *dateRangeWire  `json:"date_range"`
	TimeWindow *timeWindowWire `json:"time_window"`
	Filters    *filtersWire    `json:"filters"`
}

type dateRangeWire struct {
	Scope     DateRangeScope `json:"scope"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
}

type timeWindowWire struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type filtersWire struct {
	CreatorID  string          `json:"creator_id"`
	Thresholds []thresholdWire `json:"thresholds"`
}

type thresholdWire struct {
	AppliesTo ThresholdAppliesTo `json:"applies_to"`
	Metric    Metric             `json:"metric"`
	Cmp       Comparator         `json:"op"`
	Value     int64              `json:"value"`
}

// FromJSON decodes and validates an Intent from an arbitrary JSON object, as
// produced by the LLM parser. The decoded intent passes through the exact
// same Validate as the rule matcher's output.
func FromJSON(data []byte) (Intent, error) {
	var wire intentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Intent{}, fmt.Errorf("failed to decode intent JSON: %w", err)
	}

	intent := Intent{Operation: wire.Operation}
	if wire.Metric != nil {
		intent.Metric = *wire.Metric
	}

	if wire.DateRange != nil {
		start, err := parseWireDate(wire.DateRange.StartDate)
		if err != nil {
			return Intent{}, err
		}
		end, err := parseWireDate(wire.DateRange.EndDate)
		if err != nil {
			return Intent{}, err
		}
		intent.DateRange = &DateRange{Scope: wire.DateRange.Scope, Start: start, End: end}
	}

	if wire.TimeWindow != nil {
		start, err := parseWireClockTime(wire.TimeWindow.StartTime)
		if err != nil {
			return Intent{}, err
		}
		end, err := parseWireClockTime(wire.TimeWindow.EndTime)
		if err != nil {
			return Intent{}, err
		}
		intent.TimeWindow = &TimeWindow{Start: start, End: end}
	}

	if wire.Filters != nil {
		intent.Filters.CreatorID = wire.Filters.CreatorID
		for _, threshold := range wire.Filters.Thresholds {
			intent.Filters.Thresholds = append(intent.Filters.Thresholds, Threshold{
				AppliesTo: threshold.AppliesTo,
				Metric:    threshold.Metric,
				Cmp:       threshold.Cmp,
				Value:     threshold.Value,
			})
		}
	}

	if err := intent.Validate(); err != nil {
		return Intent{}, fmt.Errorf("intent validation: %w", err)
	}
	return intent, nil
}

func parseWireDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return parsed, nil
}

func parseWireClockTime(value string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return time.Duration(parsed.Hour())*time.Hour +
				time.Duration(parsed.Minute())*time.Minute +
				time.Duration(parsed.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", value)
}
