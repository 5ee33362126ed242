package telemetry

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/openbiotel/biotel-monitor-go/pkg/model"
)

// Normalize prepares one fetched page for installation: records with a
// non-finite timestamp are dropped and the rest is sorted ascending (the
// backend does not guarantee order). Missing numeric fields arrive as zero
// from the decoder.
func Normalize(items []model.Measurement) []model.Measurement {
	ret := lo.Filter(items, func(m model.Measurement, _ int) bool {
		return !math.IsNaN(m.TS) && !math.IsInf(m.TS, 0)
	})
	slices.SortStableFunc(ret, func(a, b model.Measurement) int {
		switch {
		case a.TS < b.TS:
			return -1
		case a.TS > b.TS:
			return 1
		default:
			return 0
		}
	})
	return ret
}

// ReconstructECG expands every chunk of N samples into N timestamped
// samples evenly spaced over (ts-chunkDuration, ts], so the effective rate
// is N/chunkDuration with no fixed-rate assumption. Samples outside
// [spanStart, spanEnd] are dropped after expansion. Records spaced closer
// than chunkDuration expand into overlapping ranges, so the result is
// sorted again before returning.
func ReconstructECG(
	window []model.Measurement,
	chunkDuration time.Duration,
	spanStart, spanEnd int64,
) []model.Sample {
	chunkMs := float64(chunkDuration.Milliseconds())
	ret := make([]model.Sample, 0, len(window))
	for _, m := range window {
		n := len(m.ECGChunk)
		if n == 0 || chunkMs <= 0 {
			continue
		}
		dt := chunkMs / float64(n)
		start := m.TS - chunkMs
		for i, value := range m.ECGChunk {
			ts := int64(math.Round(start + float64(i+1)*dt))
			if ts < spanStart || ts > spanEnd {
				continue
			}
			ret = append(ret, model.Sample{TS: ts, Value: value})
		}
	}
	slices.SortStableFunc(ret, func(a, b model.Sample) int {
		switch {
		case a.TS < b.TS:
			return -1
		case a.TS > b.TS:
			return 1
		default:
			return 0
		}
	})
	return ret
}

// KPIs are read from the single most recent measurement. An empty window
// reports Valid=false, never a stale previous value.
type KPIs struct {
	HeartRate  float64
	EDA        float64
	SpO2       float64
	HasSpO2    bool
	LeadOff    bool
	HasLeadOff bool
	TS         int64
	Valid      bool
}

// LatestKPIs expects a normalized (sorted) window.
func LatestKPIs(window []model.Measurement) KPIs {
	if len(window) == 0 {
		return KPIs{}
	}
	last := window[len(window)-1]
	ret := KPIs{
		HeartRate: last.HeartRate,
		EDA:       last.EDA,
		TS:        int64(last.TS),
		Valid:     true,
	}
	if last.SpO2 != nil {
		ret.SpO2 = *last.SpO2
		ret.HasSpO2 = true
	}
	if last.LeadOff != nil {
		ret.LeadOff = *last.LeadOff
		ret.HasLeadOff = true
	}
	return ret
}
