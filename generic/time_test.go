package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
)

func TestParseDate(t *testing.T) {
	got, err := generic.ParseDate("2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, d(2025, time.June, 2), got)
	assert.Equal(t, time.Monday, got.Time.Weekday())

	for _, bad := range []string{"", "2025-6-2", "02/06/2025", "2025-02-30"} {
		_, err := generic.ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateOf_DropsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	at := time.Date(2025, time.June, 2, 1, 30, 0, 0, loc)

	got := generic.DateOf(at)
	assert.Equal(t, "2025-06-02", got.String(), "the day is taken in the instant's own zone")
	assert.True(t, got.Equal(d(2025, time.June, 2)))
}

func TestTimePoint_Comparisons(t *testing.T) {
	a, b := d(2025, 6, 2), d(2025, 6, 3)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.BeforeOrEqual(a))
	assert.True(t, b.AfterOrEqual(a))
	assert.False(t, a.Equal(b))
	assert.Equal(t, 1, generic.DaysBetween(a, b))
	assert.Equal(t, -1, generic.DaysBetween(b, a))
}

func TestTimePoint_AddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		from   generic.TimePoint
		months int
		want   string
	}{
		{d(2025, time.January, 10), 3, "2025-04-10"},
		{d(2025, time.January, 31), 1, "2025-02-28"},
		{d(2024, time.January, 31), 1, "2024-02-29"},
		{d(2024, time.November, 30), 3, "2025-02-28"},
		{d(2025, time.March, 31), -1, "2025-02-28"},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.AddMonths(tt.months).String())
		})
	}
}

func TestTimeUtilities(t *testing.T) {
	assert.Equal(t, "2024-02-29", generic.EndOfMonth(2024, time.February).String())
	assert.Equal(t, "2025-01-01", generic.StartOfYear(2025).String())
	assert.Equal(t, "2025-12-31", generic.EndOfYear(2025).String())
	assert.Equal(t, "2026-06-02", d(2025, 6, 2).AddYears(1).String())
	assert.True(t, generic.TimePoint{}.IsZero())
	assert.False(t, generic.Today().IsZero())
}
