package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/openbiotel/biotel-monitor-go/pkg/model"
)

func TestReconstructECG(t *testing.T) {
	window := []model.Measurement{
		{TS: 10000, ECGChunk: []float64{1, 2, 3, 4}},
	}
	got := ReconstructECG(window, 400*time.Millisecond, 0, 20000)
	want := []model.Sample{
		{TS: 9700, Value: 1},
		{TS: 9800, Value: 2},
		{TS: 9900, Value: 3},
		{TS: 10000, Value: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReconstructECG() mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstructECGDropsSamplesOutsideSpan(t *testing.T) {
	window := []model.Measurement{
		{TS: 10000, ECGChunk: []float64{1, 2, 3, 4}},
	}
	got := ReconstructECG(window, 400*time.Millisecond, 9800, 9900)
	want := []model.Sample{
		{TS: 9800, Value: 2},
		{TS: 9900, Value: 3},
	}
	assert.Equal(t, want, got)
}

func TestReconstructECGSkipsRecordsWithoutChunk(t *testing.T) {
	window := []model.Measurement{
		{TS: 1000, HeartRate: 70},
		{TS: 2000, ECGChunk: []float64{5}},
	}
	got := ReconstructECG(window, 400*time.Millisecond, 0, 20000)
	assert.Equal(t, []model.Sample{{TS: 2000, Value: 5}}, got)
}

func TestReconstructECGSelfDescribingRate(t *testing.T) {
	// 8 samples over 400ms -> 20 Hz, dt = 50ms
	window := []model.Measurement{
		{TS: 1000, ECGChunk: []float64{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	got := ReconstructECG(window, 400*time.Millisecond, 0, 2000)
	assert.Len(t, got, 8)
	assert.Equal(t, int64(650), got[0].TS)
	assert.Equal(t, int64(1000), got[7].TS)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, int64(50), got[i].TS-got[i-1].TS)
	}
}

func TestReconstructECGOverlappingChunksStaySorted(t *testing.T) {
	// records spaced closer than the chunk duration expand into
	// overlapping ranges: 3000 covers 2700..3000, 3100 covers 2800..3100
	window := []model.Measurement{
		{TS: 3000, ECGChunk: []float64{1, 2, 3, 4}},
		{TS: 3100, ECGChunk: []float64{5, 6, 7, 8}},
	}
	got := ReconstructECG(window, 400*time.Millisecond, 0, 10000)
	assert.Len(t, got, 8)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].TS, got[i].TS,
			"series not monotonic at index %d", i)
	}
}

func TestNormalize(t *testing.T) {
	items := []model.Measurement{
		{TS: 3000, HeartRate: 72},
		{TS: math.NaN(), HeartRate: 99},
		{TS: 1000, HeartRate: 70},
		{TS: math.Inf(1), HeartRate: 98},
		{TS: 2000},
	}
	got := Normalize(items)
	assert.Len(t, got, 3)
	assert.Equal(t, 1000.0, got[0].TS)
	assert.Equal(t, 2000.0, got[1].TS)
	assert.Equal(t, 3000.0, got[2].TS)
	// missing numeric fields stay at zero
	assert.Equal(t, 0.0, got[1].HeartRate)
}

func TestNormalizeThenReconstructIsMonotonic(t *testing.T) {
	// overlapping, reordered delivery must never yield a non-monotonic series
	items := []model.Measurement{
		{TS: 5000, ECGChunk: []float64{1, 2}},
		{TS: 3000, ECGChunk: []float64{3, 4}},
		{TS: 4000, ECGChunk: []float64{5, 6}},
		{TS: 3000, ECGChunk: []float64{3, 4}},
	}
	series := ReconstructECG(Normalize(items), 400*time.Millisecond, 0, 10000)
	for i := 1; i < len(series); i++ {
		assert.LessOrEqual(t, series[i-1].TS, series[i].TS,
			"series not monotonic at index %d", i)
	}
}

func TestLatestKPIs(t *testing.T) {
	spo2 := 97.0
	leadOff := true
	tests := []struct {
		name   string
		window []model.Measurement
		want   KPIs
	}{
		{
			name:   "empty window reports unknown",
			window: nil,
			want:   KPIs{},
		},
		{
			name: "all kpis from the newest record",
			window: []model.Measurement{
				{TS: 1000, HeartRate: 70, EDA: 0.3},
				{TS: 2000, HeartRate: 72, EDA: 0.4, SpO2: &spo2, LeadOff: &leadOff},
			},
			want: KPIs{
				HeartRate:  72,
				EDA:        0.4,
				SpO2:       97,
				HasSpO2:    true,
				LeadOff:    true,
				HasLeadOff: true,
				TS:         2000,
				Valid:      true,
			},
		},
		{
			name: "optional fields absent",
			window: []model.Measurement{
				{TS: 2000, HeartRate: 72, EDA: 0.4},
			},
			want: KPIs{HeartRate: 72, EDA: 0.4, TS: 2000, Valid: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatestKPIs(tt.window))
		})
	}
}
