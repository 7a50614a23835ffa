// Package sqlbuilder compiles a validated intent into exactly one
// parameterized aggregate query returning a single bigint. Table and column
// identifiers come from allowlists; every value is bound as a $N parameter.
package sqlbuilder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vidstat-lab/vidstat/internal/intent"
)

// ErrUnsupportedOperation reports an operation the builder has no query
// shape for.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// BuiltQuery is a parameterized scalar query ready for execution.
type BuiltQuery struct {
	SQL    string
	Params []any
}

var comparatorOperators = map[intent.Comparator]string{
	intent.ComparatorGreater:        ">",
	intent.ComparatorGreaterOrEqual: ">=",
	intent.ComparatorLess:           "<",
	intent.ComparatorLessOrEqual:    "<=",
	intent.ComparatorEqual:          "=",
}

// Build converts an intent into its query. The intent is re-validated so a
// hand-constructed value cannot bypass the schema invariants.
func Build(it intent.Intent) (BuiltQuery, error) {
	if err := it.Validate(); err != nil {
		return BuiltQuery{}, fmt.Errorf("building query: %w", err)
	}

	switch it.Operation {
	case intent.OperationCountVideos:
		return buildVideoScalar(it, "COUNT(*)::bigint")
	case intent.OperationCountDistinctCreators:
		return buildVideoScalar(it, "COUNT(DISTINCT v.creator_id)::bigint")
	case intent.OperationCountDistinctPublishDays:
		return buildVideoScalar(it, "COUNT(DISTINCT v.video_created_at::date)::bigint")
	case intent.OperationSumTotalMetric:
		column, err := metricColumn(videoTotalColumns, it.Metric)
		if err != nil {
			return BuiltQuery{}, err
		}
		return buildVideoScalar(it, fmt.Sprintf("COALESCE(SUM(v.%s), 0)::bigint", column))
	case intent.OperationSumDeltaMetric:
		column, err := metricColumn(snapshotDeltaColumns, it.Metric)
		if err != nil {
			return BuiltQuery{}, err
		}
		return buildSnapshotScalar(it, fmt.Sprintf("COALESCE(SUM(s.%s), 0)::bigint", column), "")
	case intent.OperationCountDistinctVideosWithPositiveDelta:
		column, err := metricColumn(snapshotDeltaColumns, it.Metric)
		if err != nil {
			return BuiltQuery{}, err
		}
		return buildSnapshotScalar(it, "COUNT(DISTINCT s.video_id)::bigint", fmt.Sprintf("s.%s > 0", column))
	case intent.OperationCountSnapshotsWithNegativeDelta:
		column, err := metricColumn(snapshotDeltaColumns, it.Metric)
		if err != nil {
			return BuiltQuery{}, err
		}
		return buildSnapshotScalar(it, "COUNT(*)::bigint", fmt.Sprintf("s.%s < 0", column))
	default:
		return BuiltQuery{}, fmt.Errorf("%w: %s", ErrUnsupportedOperation, it.Operation)
	}
}

func metricColumn(columns map[intent.Metric]string, metric intent.Metric) (string, error) {
	column, ok := columns[metric]
	if !ok {
		return "", fmt.Errorf("no column mapping for metric %q", metric)
	}
	return column, nil
}

// paramBag assigns $N placeholders in the order values are bound.
type paramBag struct {
	params []any
}

func (bag *paramBag) bind(value any) string {
	bag.params = append(bag.params, value)
	return fmt.Sprintf("$%d", len(bag.params))
}

func whereAnd(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}

func splitThresholds(thresholds []intent.Threshold) (final, asOf []intent.Threshold) {
	for _, threshold := range thresholds {
		if threshold.AppliesTo == intent.AppliesToSnapshotAsOf {
			asOf = append(asOf, threshold)
		} else {
			final = append(final, threshold)
		}
	}
	return final, asOf
}

// buildSnapMaxCTE binds the half-open day bounds and emits the per-video
// maximum of each running total within the window. MAX works because the
// totals never decrease within a video's snapshot stream.
func buildSnapMaxCTE(bag *paramBag, dateRange intent.DateRange) (string, error) {
	if dateRange.Scope != intent.ScopeSnapshotsCreatedAt {
		return "", fmt.Errorf("as-of thresholds require a snapshot-scoped date range")
	}
	start, end := dateRange.HalfOpen()
	return "WITH snap_max AS (" +
		" SELECT s.video_id," +
		"        MAX(s.views_count) AS views_count," +
		"        MAX(s.likes_count) AS likes_count," +
		"        MAX(s.comments_count) AS comments_count," +
		"        MAX(s.reports_count) AS reports_count" +
		"   FROM video_snapshots s" +
		fmt.Sprintf("  WHERE s.created_at >= %s AND s.created_at < %s", bag.bind(start), bag.bind(end)) +
		"  GROUP BY s.video_id" +
		") ", nil
}

func dateClause(bag *paramBag, columnRef string, dateRange intent.DateRange) string {
	start, end := dateRange.HalfOpen()
	return fmt.Sprintf("%s >= %s AND %s < %s", columnRef, bag.bind(start), columnRef, bag.bind(end))
}

// timeWindowClause restricts snapshot timestamps to an inclusive clock
// window inside the range's single day.
func timeWindowClause(bag *paramBag, dateRange intent.DateRange, window intent.TimeWindow) string {
	day := dateRange.Start
	return fmt.Sprintf(
		"s.created_at >= %s AND s.created_at <= %s",
		bag.bind(day.Add(window.Start)),
		bag.bind(day.Add(window.End)),
	)
}

func appendThresholdClauses(
	clauses []string,
	bag *paramBag,
	thresholds []intent.Threshold,
	tableAlias string,
	columns map[intent.Metric]string,
) ([]string, error) {
	for _, threshold := range thresholds {
		column, err := metricColumn(columns, threshold.Metric)
		if err != nil {
			return nil, err
		}
		operator, ok := comparatorOperators[threshold.Cmp]
		if !ok {
			return nil, fmt.Errorf("no operator mapping for comparator %q", threshold.Cmp)
		}
		clauses = append(clauses, fmt.Sprintf(
			"%s.%s %s %s", tableAlias, column, operator, bag.bind(threshold.Value),
		))
	}
	return clauses, nil
}

// thresholdContext splits the thresholds and, when as-of thresholds are
// present, emits the snap_max CTE whose bounds bind first.
func thresholdContext(it intent.Intent, bag *paramBag) (final, asOf []intent.Threshold, cteSQL string, err error) {
	final, asOf = splitThresholds(it.Filters.Thresholds)
	if len(asOf) == 0 {
		return final, asOf, "", nil
	}
	if it.DateRange == nil {
		return nil, nil, "", fmt.Errorf("as-of thresholds require a date range")
	}
	cteSQL, err = buildSnapMaxCTE(bag, *it.DateRange)
	if err != nil {
		return nil, nil, "", err
	}
	return final, asOf, cteSQL, nil
}

// videoQueryContext assembles FROM/WHERE for queries whose grain is one row
// per video.
func videoQueryContext(it intent.Intent) (fromSQL string, clauses []string, bag *paramBag, cteSQL string, err error) {
	bag = &paramBag{}

	final, asOf, cteSQL, err := thresholdContext(it, bag)
	if err != nil {
		return "", nil, nil, "", err
	}

	fromSQL = "FROM videos v"
	if len(asOf) > 0 {
		fromSQL += " JOIN snap_max sm ON sm.video_id = v.id"
	}

	if it.Filters.CreatorID != "" {
		clauses = append(clauses, fmt.Sprintf("v.creator_id = %s", bag.bind(it.Filters.CreatorID)))
	}

	if it.DateRange != nil {
		switch {
		case it.DateRange.Scope == intent.ScopeVideosPublishedAt:
			clauses = append(clauses, dateClause(bag, "v.video_created_at", *it.DateRange))
		case it.DateRange.Scope == intent.ScopeSnapshotsCreatedAt && len(asOf) == 0:
			// Keep the video grain and apply the snapshot-axis range
			// through existence; with as-of thresholds the CTE join
			// already constrains the window.
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM video_snapshots s WHERE s.video_id = v.id AND %s)",
				dateClause(bag, "s.created_at", *it.DateRange),
			))
		}
	}

	clauses, err = appendThresholdClauses(clauses, bag, final, "v", videoTotalColumns)
	if err != nil {
		return "", nil, nil, "", err
	}
	clauses, err = appendThresholdClauses(clauses, bag, asOf, "sm", snapshotTotalColumns)
	if err != nil {
		return "", nil, nil, "", err
	}

	return fromSQL, clauses, bag, cteSQL, nil
}

// snapshotQueryContext assembles FROM/WHERE for queries whose grain is one
// row per snapshot.
func snapshotQueryContext(it intent.Intent, initialClause string) (fromSQL string, clauses []string, bag *paramBag, cteSQL string, err error) {
	bag = &paramBag{}
	if initialClause != "" {
		clauses = append(clauses, initialClause)
	}

	final, asOf, cteSQL, err := thresholdContext(it, bag)
	if err != nil {
		return "", nil, nil, "", err
	}

	fromSQL = "FROM video_snapshots s JOIN videos v ON v.id = s.video_id"
	if len(asOf) > 0 {
		fromSQL += " JOIN snap_max sm ON sm.video_id = s.video_id"
	}

	if it.DateRange != nil {
		if it.TimeWindow != nil {
			clauses = append(clauses, timeWindowClause(bag, *it.DateRange, *it.TimeWindow))
		} else {
			clauses = append(clauses, dateClause(bag, "s.created_at", *it.DateRange))
		}
	}

	if it.Filters.CreatorID != "" {
		clauses = append(clauses, fmt.Sprintf("v.creator_id = %s", bag.bind(it.Filters.CreatorID)))
	}

	clauses, err = appendThresholdClauses(clauses, bag, final, "v", videoTotalColumns)
	if err != nil {
		return "", nil, nil, "", err
	}
	clauses, err = appendThresholdClauses(clauses, bag, asOf, "sm", snapshotTotalColumns)
	if err != nil {
		return "", nil, nil, "", err
	}

	return fromSQL, clauses, bag, cteSQL, nil
}

func buildVideoScalar(it intent.Intent, selectExpr string) (BuiltQuery, error) {
	fromSQL, clauses, bag, cteSQL, err := videoQueryContext(it)
	if err != nil {
		return BuiltQuery{}, err
	}
	sql := strings.TrimSpace(fmt.Sprintf("%sSELECT %s %s %s", cteSQL, selectExpr, fromSQL, whereAnd(clauses)))
	return BuiltQuery{SQL: sql, Params: bag.params}, nil
}

func buildSnapshotScalar(it intent.Intent, selectExpr, initialClause string) (BuiltQuery, error) {
	fromSQL, clauses, bag, cteSQL, err := snapshotQueryContext(it, initialClause)
	if err != nil {
		return BuiltQuery{}, err
	}
	sql := strings.TrimSpace(fmt.Sprintf("%sSELECT %s %s %s", cteSQL, selectExpr, fromSQL, whereAnd(clauses)))
	return BuiltQuery{SQL: sql, Params: bag.params}, nil
}
