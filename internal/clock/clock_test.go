package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DemoMode(t *testing.T) {
	c, err := New(true, "2025-12-18")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC), c.Now())
	assert.Equal(t, c.Now(), c.Now(), "fixed clock must not advance")
}

func TestNew_DemoModeBadDate(t *testing.T) {
	_, err := New(true, "18/12/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestNew_WallClock(t *testing.T) {
	c, err := New(false, "not-a-date")
	require.NoError(t, err, "demo date is ignored outside demo mode")
	assert.IsType(t, Wall{}, c)
	assert.WithinDuration(t, time.Now().UTC(), c.Now(), time.Second)
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2025, 3, 9, 17, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC), EndOfDay(ts))
}
