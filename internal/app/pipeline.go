package app

import (
	"math"
	"time"

	"github.com/ayusman/veloma/internal/capture"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
	"github.com/ayusman/veloma/internal/tracker"
)

// Status is the state of the pipeline after one frame.
type Status struct {
	Time     time.Time             `json:"time"`
	Frame    uint64                `json:"frame"`
	Running  bool                  `json:"running"`
	Enabled  bool                  `json:"enabled"`
	Hands    int                   `json:"hands"`
	Control  gesture.ControlValues `json:"control"`
	State    music.State           `json:"state"`
	Playback music.PlaybackState   `json:"playback"`
	Note     string                `json:"note,omitempty"`
	Commands []music.Command       `json:"commands"`
	Pending  int                   `json:"pending"`
	Dropped  int                   `json:"dropped"`
	Settings Settings              `json:"settings"`
}

// overlay is implemented by sources that annotate a camera preview.
type overlay interface {
	SetGuides(g *capture.Guides)
	SetStatus(label string, pitch, volume float64)
}

type previewer interface {
	Preview() []byte
}

// runPipeline ticks at the configured frame rate until stopCh is closed.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			a.Tick(now)
		}
	}
}

// Tick processes exactly one frame: it latches the settings, pulls the
// latest snapshot, maps it and dispatches the resulting commands. A frame
// without a snapshot is treated as having no hands, so a lost hand is
// silenced in the same frame.
func (a *App) Tick(now time.Time) Status {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	a.latch()
	s := a.current
	a.frame++

	snap, ok := a.config.Source.Latest()
	if !ok {
		snap = tracker.Snapshot{Time: now}
	}

	var cv gesture.ControlValues
	var frame music.Frame
	if a.IsEnabled() {
		cv = a.gestures.Map(snap, s.Mapping)
		frame = a.notes.Step(cv, s.Scale, s.Mapping.Mode)
	} else {
		cv = gesture.NoInput
		a.gestures.Reset()
		frame = a.notes.Release()
	}
	a.dispatch.Dispatch(frame.Commands)

	a.annotate(s, cv, frame)

	st := Status{
		Time:     now,
		Frame:    a.frame,
		Running:  a.Running(),
		Enabled:  a.IsEnabled(),
		Hands:    len(snap.Hands),
		Control:  cv,
		State:    frame.State,
		Playback: frame.Playback,
		Commands: frame.Commands,
		Pending:  a.dispatch.Pending(),
		Dropped:  a.dispatch.Dropped(),
		Settings: s,
	}
	if frame.Playback.Valid {
		st.Note = music.NoteName(int(math.Round(frame.Playback.Pitch)))
	}
	a.publish(st)
	return st
}

// latch copies the pending settings once per frame so that no frame sees a
// partial change.
func (a *App) latch() {
	a.setMu.Lock()
	defer a.setMu.Unlock()
	if a.latched == a.version {
		return
	}
	if a.current.Volume != a.pending.Volume {
		a.notes.SetOptions(a.pending.Volume)
	}
	a.current = a.pending
	a.latched = a.version
}

// release silences the voice outside the frame loop.
func (a *App) release() {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	frame := a.notes.Release()
	a.dispatch.Dispatch(frame.Commands)
	a.gestures.Reset()

	a.mu.Lock()
	a.status.Running = false
	a.status.State = frame.State
	a.mu.Unlock()
}

// annotate updates the preview overlay of sources that draw one.
func (a *App) annotate(s Settings, cv gesture.ControlValues, frame music.Frame) {
	o, ok := a.config.Source.(overlay)
	if !ok {
		return
	}

	label := "-"
	if frame.State == music.StateActive && frame.Playback.Valid {
		label = music.NoteName(int(math.Round(frame.Playback.Pitch)))
	}
	o.SetStatus(label, frame.Playback.Pitch, frame.Playback.Volume)

	if s.Mapping.Mode != gesture.ModeDiscrete {
		o.SetGuides(nil)
		return
	}
	active := -1
	if cv.Present() {
		active = s.Scale.Index(cv.Pitch)
	}
	o.SetGuides(&capture.Guides{
		Horizontal:  s.Mapping.PitchAxis == gesture.AxisY,
		RegionStart: s.Mapping.PitchRange.Min,
		RegionEnd:   s.Mapping.PitchRange.Max,
		Edges:       s.Scale.BinEdges(),
		Labels:      s.Scale.Labels(),
		Active:      active,
	})
}

func (a *App) publish(st Status) {
	a.mu.Lock()
	a.status = st
	a.mu.Unlock()

	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- st:
		default:
			// Replace the unread status with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
