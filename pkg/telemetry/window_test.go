package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrubWindowClamp(t *testing.T) {
	span := 10 * time.Second
	minBound, maxBound := int64(100_000), int64(160_000)

	tests := []struct {
		name    string
		viewEnd int64
		want    int64
	}{
		{name: "inside range stays", viewEnd: 140_000, want: 140_000},
		{name: "below range clamps up", viewEnd: 50_000, want: 110_000},
		{name: "at lower bound", viewEnd: 110_000, want: 110_000},
		{name: "above range clamps down", viewEnd: 200_000, want: 160_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ScrubWindow{DisplaySpan: span, FollowLive: true}
			w.set(tt.viewEnd, minBound, maxBound)
			assert.Equal(t, tt.want, w.ViewEnd)
			assert.False(t, w.FollowLive, "set must freeze live following")
			assert.Equal(t, tt.want-span.Milliseconds(), w.ViewStart())
		})
	}
}

func TestScrubWindowLessDataThanSpan(t *testing.T) {
	w := ScrubWindow{DisplaySpan: 10 * time.Second}
	// only 2s of data: pin to the newest bound
	w.set(999_999, 100_000, 102_000)
	assert.Equal(t, int64(102_000), w.ViewEnd)
}

func TestScrubWindowFollowLive(t *testing.T) {
	w := ScrubWindow{DisplaySpan: 10 * time.Second, FollowLive: true}

	w.onData(100_000, 160_000)
	assert.Equal(t, int64(160_000), w.ViewEnd)

	// new data pins again while following
	w.onData(105_000, 165_000)
	assert.Equal(t, int64(165_000), w.ViewEnd)

	// scrubbing back freezes
	w.set(140_000, 105_000, 165_000)
	assert.False(t, w.FollowLive)

	// new data no longer moves the frozen window
	w.onData(110_000, 170_000)
	assert.Equal(t, int64(140_000), w.ViewEnd)

	// jump to live re-pins and re-enables follow
	w.jumpToLive(110_000, 170_000)
	assert.True(t, w.FollowLive)
	assert.Equal(t, int64(170_000), w.ViewEnd)
}
