package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		start time.Time
		end   time.Time
	}{
		{
			name:  "same month range",
			text:  "сколько видео вышло с 1 по 5 ноября 2025 включительно",
			start: day(2025, time.November, 1),
			end:   day(2025, time.November, 5),
		},
		{
			name:  "same month range reversed bounds are ordered",
			text:  "с 5 по 1 ноября 2025",
			start: day(2025, time.November, 1),
			end:   day(2025, time.November, 5),
		},
		{
			name:  "cross month range",
			text:  "с 28 ноября по 2 декабря 2025",
			start: day(2025, time.November, 28),
			end:   day(2025, time.December, 2),
		},
		{
			name:  "single genitive date",
			text:  "28 ноября 2025 года",
			start: day(2025, time.November, 28),
			end:   day(2025, time.November, 28),
		},
		{
			name:  "numeric date",
			text:  "видео за 28.11.2025 пожалуйста",
			start: day(2025, time.November, 28),
			end:   day(2025, time.November, 28),
		},
		{
			name:  "iso date",
			text:  "статистика за 2025-11-28",
			start: day(2025, time.November, 28),
			end:   day(2025, time.November, 28),
		},
		{
			name:  "two dates form a range in text order",
			text:  "между 1 июня 2025 и 15 июня 2025",
			start: day(2025, time.June, 1),
			end:   day(2025, time.June, 15),
		},
		{
			name:  "month only covers the whole month",
			text:  "опубликованные в июне 2025 года",
			start: day(2025, time.June, 1),
			end:   day(2025, time.June, 30),
		},
		{
			name:  "genitive month without day covers the whole month",
			text:  "в календарных днях ноября 2025 года",
			start: day(2025, time.November, 1),
			end:   day(2025, time.November, 30),
		},
		{
			name:  "february month end",
			text:  "в феврале 2024",
			start: day(2024, time.February, 1),
			end:   day(2024, time.February, 29),
		},
		{
			// November has 30 days; the impossible day is rejected and
			// the month mention still yields the whole month.
			name:  "impossible day falls back to whole month",
			text:  "31 ноября 2025",
			start: day(2025, time.November, 1),
			end:   day(2025, time.November, 30),
		},
		{
			name:  "bare numeric date as whole fragment",
			text:  "28.11.2025",
			start: day(2025, time.November, 28),
			end:   day(2025, time.November, 28),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, found := parseDateRange(foldRaw(tc.text))
			require.True(t, found)
			require.Equal(t, tc.start, start)
			require.Equal(t, tc.end, end)
		})
	}
}

func TestParseDateRangeNotFound(t *testing.T) {
	for _, text := range []string{
		"",
		"сколько всего видео есть в системе",
		"32.13.2025 дата", // impossible numeric date
	} {
		_, _, found := parseDateRange(foldRaw(text))
		require.False(t, found, text)
	}
}

func TestDateRangeHalfOpen(t *testing.T) {
	dateRange := DateRange{
		Scope: ScopeVideosPublishedAt,
		Start: day(2025, time.November, 1),
		End:   day(2025, time.November, 5),
	}
	start, end := dateRange.HalfOpen()
	require.Equal(t, day(2025, time.November, 1), start)
	require.Equal(t, day(2025, time.November, 6), end)

	single := DateRange{
		Scope: ScopeSnapshotsCreatedAt,
		Start: day(2025, time.November, 28),
		End:   day(2025, time.November, 28),
	}
	require.True(t, single.SingleDay())
	start, end = single.HalfOpen()
	require.Equal(t, day(2025, time.November, 28), start)
	require.Equal(t, day(2025, time.November, 29), end)
}

func TestParseTimeWindow(t *testing.T) {
	window, err := parseTimeWindow("в промежутке с 10:00 до 15:00 28 ноября 2025 года")
	require.NoError(t, err)
	require.NotNil(t, window)
	require.Equal(t, 10*time.Hour, window.Start)
	require.Equal(t, 15*time.Hour, window.End)
}

func TestParseTimeWindowMinutesOptional(t *testing.T) {
	window, err := parseTimeWindow("с 9 до 18 28 ноября 2025")
	require.NoError(t, err)
	require.NotNil(t, window)
	require.Equal(t, 9*time.Hour, window.Start)
	require.Equal(t, 18*time.Hour, window.End)
}

func TestParseTimeWindowAbsent(t *testing.T) {
	window, err := parseTimeWindow("сколько видео у креатора с id abc123 вышло вчера")
	require.NoError(t, err)
	require.Nil(t, window)
}

func TestParseTimeWindowInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"reversed", "с 19:00 до 07:00 28 ноября 2025"},
		{"minute out of range", "с 10:75 до 15:00 28 ноября 2025"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseTimeWindow(tc.text)
			require.ErrorIs(t, err, ErrInvalidTimeWindow)
		})
	}
}
