// Package app runs the Veloma frame loop: it pulls hand snapshots, maps them
// to control values and notes, and sends the resulting commands to a sink.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/veloma/internal/audio"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
	"github.com/ayusman/veloma/internal/store"
	"github.com/ayusman/veloma/internal/tracker"
)

// DefaultFPS is the frame rate of the loop when none is configured.
const DefaultFPS = 30

// Config holds configuration options for the application.
type Config struct {
	Source  tracker.Source
	Sink    audio.Sink
	Store   *store.Store // optional
	Catalog *music.Catalog
	FPS     int

	Scale   music.ScaleConfig
	Mapping gesture.Settings
	Volume  music.Options
}

// Settings is everything the presentation layer can change between frames.
type Settings struct {
	Mapping gesture.Settings  `json:"mapping"`
	Scale   music.ScaleConfig `json:"scale"`
	Volume  music.Options     `json:"volume"`
}

// Validate checks every part of the settings.
func (s Settings) Validate() error {
	if err := s.Mapping.Validate(); err != nil {
		return err
	}
	if err := s.Scale.Validate(); err != nil {
		return err
	}
	return s.Volume.Validate()
}

// App owns the mapping pipeline. Setters may be called from any goroutine;
// they take effect at the start of the next frame.
type App struct {
	config   Config
	catalog  *music.Catalog
	gestures *gesture.Mapper
	notes    *music.Mapper
	dispatch *audio.Dispatcher

	setMu   sync.Mutex
	pending Settings
	version uint64

	// Owned by the frame path, guarded by tickMu.
	tickMu  sync.Mutex
	current Settings
	latched uint64
	frame   uint64

	mu      sync.RWMutex
	enabled bool
	status  Status
	stopCh  chan struct{}
	doneCh  chan struct{}

	subMu sync.Mutex
	subs  map[chan Status]struct{}
}

// New creates a new App. The initial settings must be valid.
func New(config Config) (*App, error) {
	if config.Source == nil {
		return nil, errors.New("app: no landmark source")
	}
	if config.Sink == nil {
		config.Sink = audio.Nop{}
	}
	if config.Catalog == nil {
		config.Catalog = music.NewCatalog()
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}

	scale, err := config.Catalog.Resolve(config.Scale.Scale)
	if err != nil {
		return nil, err
	}
	config.Scale.Scale = scale

	settings := Settings{Mapping: config.Mapping, Scale: config.Scale, Volume: config.Volume}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("app: initial settings: %w", err)
	}

	a := &App{
		config:   config,
		catalog:  config.Catalog,
		gestures: gesture.NewMapper(),
		notes:    music.NewMapper(settings.Volume),
		dispatch: audio.NewDispatcher(config.Sink),
		pending:  settings,
		version:  1,
		enabled:  true,
		subs:     make(map[chan Status]struct{}),
	}
	a.restore()
	a.status = Status{Enabled: true, Settings: a.pending}
	return a, nil
}

// restore applies the mode saved by a previous run.
func (a *App) restore() {
	if a.config.Store == nil {
		return
	}
	saved, err := a.config.Store.Settings().Get(store.SettingMode)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("app: read saved mode", "error", err)
		}
		return
	}
	var mode gesture.Mode
	if err := mode.UnmarshalText([]byte(saved)); err != nil {
		slog.Warn("app: ignoring saved mode", "mode", saved, "error", err)
		return
	}
	a.pending.Mapping.Mode = mode
}

// Catalog returns the scale catalog used to resolve scale names.
func (a *App) Catalog() *music.Catalog {
	return a.catalog
}

// Settings returns the settings that the next frame will use.
func (a *App) Settings() Settings {
	a.setMu.Lock()
	defer a.setMu.Unlock()
	return a.pending
}

// update validates a modified copy of the pending settings and stores it.
// Invalid settings are rejected and the previous ones retained.
func (a *App) update(change func(*Settings)) (Settings, error) {
	a.setMu.Lock()
	defer a.setMu.Unlock()

	next := a.pending
	change(&next)
	if err := next.Validate(); err != nil {
		return a.pending, err
	}
	a.pending = next
	a.version++
	return next, nil
}

// SetSettings replaces all settings. A scale given by name only is resolved
// against the catalog.
func (a *App) SetSettings(s Settings) error {
	scale, err := a.catalog.Resolve(s.Scale.Scale)
	if err != nil {
		return err
	}
	s.Scale.Scale = scale
	_, err = a.update(func(cur *Settings) { *cur = s })
	if err == nil {
		a.saveMode(s.Mapping.Mode)
	}
	return err
}

// SetMode switches between discrete and continuous pitch.
func (a *App) SetMode(m gesture.Mode) error {
	_, err := a.update(func(s *Settings) { s.Mapping.Mode = m })
	if err == nil {
		a.saveMode(m)
	}
	return err
}

// SetHandAssignment selects one- or two-handed control.
func (a *App) SetHandAssignment(h gesture.HandAssignment) error {
	_, err := a.update(func(s *Settings) { s.Mapping.Hands = h })
	return err
}

// SetScale replaces the scale configuration.
func (a *App) SetScale(sc music.ScaleConfig) error {
	scale, err := a.catalog.Resolve(sc.Scale)
	if err != nil {
		return err
	}
	sc.Scale = scale
	_, err = a.update(func(s *Settings) { s.Scale = sc })
	return err
}

// SetMapping replaces the gesture mapping settings.
func (a *App) SetMapping(m gesture.Settings) error {
	_, err := a.update(func(s *Settings) { s.Mapping = m })
	if err == nil {
		a.saveMode(m.Mode)
	}
	return err
}

// SetVolume replaces the output volume options.
func (a *App) SetVolume(o music.Options) error {
	_, err := a.update(func(s *Settings) { s.Volume = o })
	return err
}

// ApplyPreset switches to the scale, mode and hand assignment of p.
func (a *App) ApplyPreset(p *store.Preset) error {
	scale, ok := a.catalog.Lookup(p.Scale)
	if !ok {
		return fmt.Errorf("%w: unknown scale %q", music.ErrInvalidConfig, p.Scale)
	}
	_, err := a.update(func(s *Settings) {
		s.Scale = music.ScaleConfig{
			StartNote:  p.StartNote,
			Octaves:    p.Octaves,
			Scale:      scale,
			Instrument: p.Instrument,
		}
		s.Mapping.Mode = p.Mode
		s.Mapping.Hands = p.Hands
	})
	if err != nil {
		return err
	}

	slog.Info("app: preset applied", "preset", p.Name)
	a.saveMode(p.Mode)
	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingLastPreset, p.ID); err != nil {
			slog.Warn("app: save last preset", "error", err)
		}
	}
	return nil
}

func (a *App) saveMode(m gesture.Mode) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().Set(store.SettingMode, m.String()); err != nil {
		slog.Warn("app: save mode", "error", err)
	}
}

// SetEnabled turns sound production on or off. While disabled the voice is
// silenced and hands are ignored.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether hands currently produce sound.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Status returns the status published by the last frame.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Preview returns the latest annotated camera frame as JPEG, or nil when the
// source has no preview.
func (a *App) Preview() []byte {
	if p, ok := a.config.Source.(previewer); ok {
		return p.Preview()
	}
	return nil
}

// Subscribe returns a channel receiving the status of every frame. A slow
// reader only sees the newest status. Call cancel to unsubscribe.
func (a *App) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, ch)
			a.subMu.Unlock()
		})
	}
}

// Start begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	slog.Info("app: pipeline started", "fps", a.config.FPS)
	return nil
}

// Stop halts the frame loop and silences the voice.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	a.release()
	slog.Info("app: pipeline stopped")
}

// Running reports whether the frame loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Close stops the loop and releases the source and the sink.
func (a *App) Close() error {
	a.Stop()
	srcErr := a.config.Source.Close()
	sinkErr := a.config.Sink.Close()
	if srcErr != nil {
		return fmt.Errorf("close source: %w", srcErr)
	}
	if sinkErr != nil {
		return fmt.Errorf("close sink: %w", sinkErr)
	}
	return nil
}
