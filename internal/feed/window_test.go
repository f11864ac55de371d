package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayWindowIsMidnightToMidnight(t *testing.T) {
	for _, hour := range []int{0, 9, 23} {
		now := time.Date(2026, 3, 10, hour, 59, 59, 0, time.Local)
		f, err := Window(WindowToday, now, "", "")
		require.NoError(t, err)
		assert.Equal(t, "2026-03-10T00:00:00", f.StartDate)
		assert.Equal(t, "2026-03-11T00:00:00", f.EndDate)
	}

	// Month boundary.
	f, err := Window(WindowToday, time.Date(2026, 1, 31, 12, 0, 0, 0, time.Local), "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01T00:00:00", f.EndDate)
}

func TestRollingWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)

	f, err := Window(WindowWeek, now, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03T15:30:00", f.StartDate)
	assert.Equal(t, "2026-03-10T15:30:00", f.EndDate)

	f, err = Window(WindowMonth, now, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-08T15:30:00", f.StartDate)
	assert.Equal(t, "2026-03-10T15:30:00", f.EndDate)
}

func TestCustomAndAllWindows(t *testing.T) {
	now := time.Now()

	f, err := Window(WindowCustom, now, "2026-01-01T00:00:00", "2026-02-01T00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00", f.StartDate)
	assert.Equal(t, "2026-02-01T00:00:00", f.EndDate)

	f, err = Window(WindowAll, now, "x", "y")
	require.NoError(t, err)
	assert.Empty(t, f.StartDate)
	assert.Empty(t, f.EndDate)
}

func TestParseWindowKind(t *testing.T) {
	k, err := ParseWindowKind("")
	require.NoError(t, err)
	assert.Equal(t, WindowAll, k)

	k, err = ParseWindowKind("week")
	require.NoError(t, err)
	assert.Equal(t, WindowWeek, k)

	_, err = ParseWindowKind("fortnight")
	assert.Error(t, err)
}
