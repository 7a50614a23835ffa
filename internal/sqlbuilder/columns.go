package sqlbuilder

import "github.com/vidstat-lab/vidstat/internal/intent"

// Column allowlists. Identifiers are only ever taken from these maps, keyed
// by the closed metric enum, so no user-controlled text can reach the SQL.
var (
	videoTotalColumns = map[intent.Metric]string{
		intent.MetricViews:    "views_count",
		intent.MetricLikes:    "likes_count",
		intent.MetricComments: "comments_count",
		intent.MetricReports:  "reports_count",
	}

	snapshotTotalColumns = map[intent.Metric]string{
		intent.MetricViews:    "views_count",
		intent.MetricLikes:    "likes_count",
		intent.MetricComments: "comments_count",
		intent.MetricReports:  "reports_count",
	}

	snapshotDeltaColumns = map[intent.Metric]string{
		intent.MetricViews:    "delta_views_count",
		intent.MetricLikes:    "delta_likes_count",
		intent.MetricComments: "delta_comments_count",
		intent.MetricReports:  "delta_reports_count",
	}
)
