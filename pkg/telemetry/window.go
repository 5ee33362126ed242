package telemetry

import "time"

// ScrubWindow is the viewer-controlled sub-range of the reconstructed
// series. While FollowLive is set, ViewEnd is pinned to the newest
// available timestamp whenever new data lands.
type ScrubWindow struct {
	DisplaySpan time.Duration
	ViewEnd     int64 // epoch milliseconds
	FollowLive  bool
}

func (w ScrubWindow) ViewStart() int64 {
	return w.ViewEnd - w.DisplaySpan.Milliseconds()
}

// clamp keeps ViewEnd inside [minBound+span, maxBound]. When there is less
// data than one display span, the window pins to the newest bound.
func (w *ScrubWindow) clamp(minBound, maxBound int64) {
	low := minBound + w.DisplaySpan.Milliseconds()
	if low > maxBound {
		low = maxBound
	}
	if w.ViewEnd < low {
		w.ViewEnd = low
	}
	if w.ViewEnd > maxBound {
		w.ViewEnd = maxBound
	}
}

// onData recomputes the window after new data arrived.
func (w *ScrubWindow) onData(minBound, maxBound int64) {
	if w.FollowLive {
		w.ViewEnd = maxBound
	}
	w.clamp(minBound, maxBound)
}

// set moves ViewEnd to the requested position and freezes live following
// until jumpToLive is invoked.
func (w *ScrubWindow) set(viewEnd, minBound, maxBound int64) {
	w.FollowLive = false
	w.ViewEnd = viewEnd
	w.clamp(minBound, maxBound)
}

// jumpToLive re-pins the window to the newest data and re-enables follow.
func (w *ScrubWindow) jumpToLive(minBound, maxBound int64) {
	w.FollowLive = true
	w.ViewEnd = maxBound
	w.clamp(minBound, maxBound)
}
