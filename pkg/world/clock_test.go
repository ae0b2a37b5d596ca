package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeSpan(t *testing.T) {
	tests := []struct {
		token  string
		amount int
		unit   byte
		ok     bool
	}{
		{"30s", 30, 's', true},
		{"5m", 5, 'm', true},
		{"2h", 2, 'h', true},
		{"3d", 3, 'd', true},
		{"1w", 1, 'w', true},
		{"6M", 6, 'M', true},
		{"1y", 1, 'y', true},
		{"0d", 0, 'd', true},
		{"", 0, 0, false},
		{"d", 0, 0, false},
		{"3", 0, 0, false},
		{"3 d", 0, 0, false},
		{"three days", 0, 0, false},
		{"3D", 0, 0, false},
		{"-3d", 0, 0, false},
		{"1234567d", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			amount, unit, ok := parseTimeSpan(tt.token)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.amount, amount)
				assert.Equal(t, tt.unit, unit)
			}
		})
	}
}

func TestAddSpan(t *testing.T) {
	base := time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		amount int
		unit   byte
		want   time.Time
	}{
		{"seconds", 90, 's', base.Add(90 * time.Second)},
		{"minutes", 30, 'm', base.Add(30 * time.Minute)},
		{"hours", 2, 'h', base.Add(2 * time.Hour)},
		{"days", 3, 'd', time.Date(2024, time.January, 18, 8, 0, 0, 0, time.UTC)},
		{"weeks", 2, 'w', time.Date(2024, time.January, 29, 8, 0, 0, 0, time.UTC)},
		{"months", 1, 'M', time.Date(2024, time.February, 15, 8, 0, 0, 0, time.UTC)},
		{"years", 1, 'y', time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := addSpan(base, tt.amount, tt.unit)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}

	t.Run("month overflow normalizes", func(t *testing.T) {
		jan31 := time.Date(2024, time.January, 31, 8, 0, 0, 0, time.UTC)
		got, err := addSpan(jan31, 1, 'M')
		require.NoError(t, err)
		// 2024-01-31 + 1 month normalizes past the end of February.
		assert.Equal(t, time.Date(2024, time.March, 2, 8, 0, 0, 0, time.UTC), got)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		_, err := addSpan(base, 0, 'd')
		assert.ErrorIs(t, err, ErrBadTimeSpan)
	})

	t.Run("unknown unit rejected", func(t *testing.T) {
		_, err := addSpan(base, 1, 'q')
		assert.ErrorIs(t, err, ErrBadTimeSpan)
	})
}

func TestAddSpanAssociativity(t *testing.T) {
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	oneDay, err := addSpan(base, 1, 'd')
	require.NoError(t, err)
	twoSteps, err := addSpan(oneDay, 1, 'd')
	require.NoError(t, err)
	oneStep, err := addSpan(base, 2, 'd')
	require.NoError(t, err)

	assert.True(t, oneStep.Equal(twoSteps))
}
