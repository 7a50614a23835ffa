package intent

import "errors"

// Typed parse failures. The caller decides how these map to a user-visible
// reply; the parser itself never falls back to a default intent.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrAmbiguousMetric   = errors.New("ambiguous or unsupported metric term")
	ErrUnsupportedQuery  = errors.New("unsupported query")
	ErrMetricRequired    = errors.New("metric is required or ambiguous")
	ErrAsOfRequiresDate  = errors.New("as-of threshold requires a date")
	ErrInvalidTimeWindow = errors.New("invalid time window")
)
