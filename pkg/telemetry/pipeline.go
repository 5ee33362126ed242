// Package telemetry contains the acquisition pipeline: periodic polling of
// the measurement backend, waveform reconstruction, retention windowing and
// the viewer-controlled scrub window.
package telemetry

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/openbiotel/biotel-monitor-go/log"
	"github.com/openbiotel/biotel-monitor-go/pkg/api"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth"
	"github.com/openbiotel/biotel-monitor-go/pkg/model"
)

const (
	DefaultPollInterval  = time.Second
	DefaultRetentionSpan = 60 * time.Second
	DefaultDisplaySpan   = 10 * time.Second
	DefaultChunkDuration = 200 * time.Millisecond
	DefaultLimit         = 500
)

// Backend is the slice of the API client the pipeline needs.
type Backend interface {
	Devices(ctx context.Context) ([]model.Device, error)
	UpdateDevice(ctx context.Context, deviceID string, patch api.DevicePatch) (
		*model.Device, error)
	Measurements(ctx context.Context, deviceID string, from, to int64, limit int) (
		[]model.Measurement, error)
}

// RoleSource yields the current role; the session state machine implements
// this.
type RoleSource interface {
	CurrentRole() auth.Role
}

// Snapshot is an immutable view of the pipeline state handed to consumers.
type Snapshot struct {
	Devices          []model.Device
	SelectedDeviceID string
	Window           []model.Measurement
	ECG              []model.Sample
	KPIs             KPIs
	Scrub            ScrubWindow
	Status           string // last error message, empty when healthy
}

// VisibleECG returns the samples inside the current scrub window.
func (s Snapshot) VisibleECG() []model.Sample {
	start := s.Scrub.ViewStart()
	return lo.Filter(s.ECG, func(sample model.Sample, _ int) bool {
		return sample.TS >= start && sample.TS <= s.Scrub.ViewEnd
	})
}

type Pipeline struct {
	log           *log.Logger
	backend       Backend
	roles         RoleSource
	clock         clockwork.Clock
	pollInterval  time.Duration
	retentionSpan time.Duration
	displaySpan   time.Duration
	chunkDuration time.Duration
	limit         int
	onUpdate      func(Snapshot)

	mu           sync.Mutex
	devices      []model.Device
	selected     string
	window       []model.Measurement
	ecg          []model.Sample
	scrub        ScrubWindow
	status       string
	installedSeq uint64

	nextSeq  atomic.Uint64
	inFlight atomic.Bool
}

type Option func(*Pipeline)

func WithRoleSource(roles RoleSource) Option {
	return func(p *Pipeline) {
		p.roles = roles
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		p.pollInterval = d
	}
}

func WithRetentionSpan(d time.Duration) Option {
	return func(p *Pipeline) {
		p.retentionSpan = d
	}
}

func WithDisplaySpan(d time.Duration) Option {
	return func(p *Pipeline) {
		p.displaySpan = d
	}
}

func WithChunkDuration(d time.Duration) Option {
	return func(p *Pipeline) {
		p.chunkDuration = d
	}
}

func WithMeasurementLimit(limit int) Option {
	return func(p *Pipeline) {
		p.limit = limit
	}
}

func WithDeviceID(deviceID string) Option {
	return func(p *Pipeline) {
		p.selected = deviceID
	}
}

// WithOnUpdate registers a hook invoked after every successful window
// install (outside the pipeline lock).
func WithOnUpdate(hook func(Snapshot)) Option {
	return func(p *Pipeline) {
		p.onUpdate = hook
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		p.log = logger
	}
}

func NewPipeline(backend Backend, opts ...Option) *Pipeline {
	ret := &Pipeline{
		log:           log.Default().Named("telemetry"),
		backend:       backend,
		clock:         clockwork.NewRealClock(),
		pollInterval:  DefaultPollInterval,
		retentionSpan: DefaultRetentionSpan,
		displaySpan:   DefaultDisplaySpan,
		chunkDuration: DefaultChunkDuration,
		limit:         DefaultLimit,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.scrub = ScrubWindow{DisplaySpan: ret.displaySpan, FollowLive: true}
	return ret
}

// LoadDevices replaces the device list wholesale. The selection is kept
// unless its device disappeared; first load selects the first device.
func (p *Pipeline) LoadDevices(ctx context.Context) error {
	items, err := p.backend.Devices(ctx)
	if err != nil {
		p.setStatus(err.Error())
		return err
	}
	p.mu.Lock()
	p.devices = items
	stillThere := lo.ContainsBy(items, func(d model.Device) bool {
		return d.DeviceID == p.selected
	})
	if p.selected == "" || !stillThere {
		if len(items) > 0 {
			p.selectLocked(items[0].DeviceID)
		} else {
			p.selectLocked("")
		}
	}
	p.mu.Unlock()
	return nil
}

// Select switches the active device. Local state resets immediately;
// in-flight responses for the previous device are detected by device
// identity and discarded.
func (p *Pipeline) Select(deviceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectLocked(deviceID)
}

func (p *Pipeline) selectLocked(deviceID string) {
	if p.selected == deviceID {
		return
	}
	p.selected = deviceID
	p.window = nil
	p.ecg = nil
	p.scrub = ScrubWindow{DisplaySpan: p.displaySpan, FollowLive: true}
	p.status = ""
}

func (p *Pipeline) SelectedDeviceID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// PollOnce fetches the current retention span for the selected device and
// replaces the window wholesale. Completions that are older than the
// installed window, or that belong to a deselected device, are discarded.
func (p *Pipeline) PollOnce(ctx context.Context) error {
	seq := p.nextSeq.Add(1)
	deviceID := p.SelectedDeviceID()
	if deviceID == "" {
		return nil
	}
	now := p.clock.Now().UnixMilli()
	items, err := p.backend.Measurements(ctx, deviceID,
		now-p.retentionSpan.Milliseconds(), now, p.limit)
	if err != nil {
		p.setStatus(err.Error())
		return err
	}
	if ctx.Err() != nil {
		// torn down while the request was in flight
		return ctx.Err()
	}
	p.install(seq, deviceID, items, now)
	return nil
}

// install is the single writer of the retention window.
func (p *Pipeline) install(seq uint64, deviceID string, items []model.Measurement, nowMs int64) {
	normalized := Normalize(items)

	p.mu.Lock()
	if deviceID != p.selected {
		p.mu.Unlock()
		p.log.Debug("discarding response for deselected device",
			log.String("device", deviceID))
		return
	}
	if seq < p.installedSeq {
		p.mu.Unlock()
		p.log.Debug("discarding stale poll result",
			log.Uint64("seq", seq), log.Uint64("installed", p.installedSeq))
		return
	}
	p.installedSeq = seq
	p.window = normalized
	p.ecg = ReconstructECG(normalized, p.chunkDuration,
		nowMs-p.retentionSpan.Milliseconds(), nowMs)
	p.status = ""

	minBound, maxBound := p.boundsLocked(nowMs)
	p.scrub.onData(minBound, maxBound)

	hook := p.onUpdate
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
}

// boundsLocked yields the scrub bounds: the reconstructed series' extent,
// falling back to wall-clock bounds when no data exists.
func (p *Pipeline) boundsLocked(nowMs int64) (minBound, maxBound int64) {
	if len(p.ecg) > 0 {
		return p.ecg[0].TS, p.ecg[len(p.ecg)-1].TS
	}
	return nowMs - p.retentionSpan.Milliseconds(), nowMs
}

// SetViewEnd moves the scrub window and disables live following.
func (p *Pipeline) SetViewEnd(viewEnd int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	minBound, maxBound := p.boundsLocked(p.clock.Now().UnixMilli())
	p.scrub.set(viewEnd, minBound, maxBound)
}

// JumpToLive re-pins the scrub window to the newest data.
func (p *Pipeline) JumpToLive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	minBound, maxBound := p.boundsLocked(p.clock.Now().UnixMilli())
	p.scrub.jumpToLive(minBound, maxBound)
}

// UpdatePatientLink writes the patient linkage of a device. The role gate
// here is a second line of defense; the backend is the actual authority.
// After a successful write the device list is reloaded to avoid drift.
func (p *Pipeline) UpdatePatientLink(ctx context.Context, deviceID, patientID string) error {
	if p.roles == nil || p.roles.CurrentRole() != auth.RoleAdmin {
		return auth.ErrPermissionDenied
	}
	if _, err := p.backend.UpdateDevice(ctx, deviceID,
		api.DevicePatch{PatientID: patientID}); err != nil {
		return err
	}
	return p.LoadDevices(ctx)
}

// Run drives the poll loop until ctx is cancelled. A failed tick records a
// status and keeps the timer alive; a tick that would overlap a poll still
// in flight is skipped.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.pollAsync(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.pollAsync(ctx)
		}
	}
}

func (p *Pipeline) pollAsync(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug("skipping tick, previous poll still in flight")
		return
	}
	go func() {
		defer p.inFlight.Store(false)
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("poll failed", log.ErrorField(err))
		}
	}()
}

func (p *Pipeline) setStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	return Snapshot{
		Devices:          slices.Clone(p.devices),
		SelectedDeviceID: p.selected,
		Window:           slices.Clone(p.window),
		ECG:              slices.Clone(p.ecg),
		KPIs:             LatestKPIs(p.window),
		Scrub:            p.scrub,
		Status:           p.status,
	}
}
