package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

func TestParseAt(t *testing.T) {
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	got, err := parseAt("", base)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = parseAt("2024-04-01T12:00:00Z", base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC), got)

	got, err = parseAt("tomorrow", base)
	require.NoError(t, err)
	assert.True(t, got.After(base))
	assert.LessOrEqual(t, got.Sub(base), 48*time.Hour)

	got, err = parseAt("in 3 days", base)
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(72*time.Hour), got, 24*time.Hour)

	_, err = parseAt("qwerty zxcv", base)
	assert.Error(t, err)
}

func TestParseStates(t *testing.T) {
	got, err := parseStates([]string{"new", "Review"})
	require.NoError(t, err)
	assert.Equal(t, []schema.CardState{schema.StateNew, schema.StateReview}, got)

	_, err = parseStates([]string{"mastered"})
	assert.ErrorContains(t, err, "unknown card state")
}

func TestUntilDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		due  time.Time
		want string
	}{
		{now.Add(-time.Hour), "now"},
		{now.Add(10 * time.Minute), "10m"},
		{now.Add(5 * time.Hour), "5h"},
		{now.Add(4 * 24 * time.Hour), "4d"},
		{now.Add(730 * 24 * time.Hour), "2.0y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, untilDue(tt.due, now))
	}
}

func TestDescribeFilters(t *testing.T) {
	assert.Equal(t, "all", describeFilters(schema.DeckFilters{}))
	assert.Equal(t, "tags=noun types=ism states=new",
		describeFilters(schema.DeckFilters{
			Tags:   []string{"noun"},
			Types:  []schema.WordType{schema.WordTypeIsm},
			States: []schema.CardState{schema.StateNew},
		}))
}
