package app

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/veloma/internal/audio"
	"github.com/ayusman/veloma/internal/detector"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
	"github.com/ayusman/veloma/internal/store"
	"github.com/ayusman/veloma/internal/tracker"
)

var epoch = time.Unix(0, 0).UTC()

// frameAt returns the time of the i-th frame at 30 fps.
func frameAt(i int) time.Time {
	return epoch.Add(time.Duration(i) * 33 * time.Millisecond)
}

func hands(h ...detector.HandLandmarks) tracker.Frame {
	return tracker.Frame{Hands: h}
}

func newTestApp(t *testing.T, frames []tracker.Frame, mutate func(*Config)) (*App, *audio.Recorder) {
	t.Helper()

	rec := audio.NewRecorder()
	cfg := Config{
		Source:  tracker.NewReplaySource(frames, false),
		Sink:    rec,
		Scale:   music.DefaultScaleConfig(),
		Mapping: gesture.DefaultSettings(),
		Volume:  music.DefaultOptions(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, rec
}

// run ticks once per frame and returns every status.
func run(a *App, n int) []Status {
	out := make([]Status, n)
	for i := range out {
		out[i] = a.Tick(frameAt(i))
	}
	return out
}

func kinds(cmds []music.Command) []music.CommandKind {
	out := make([]music.CommandKind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind
	}
	return out
}

func equalKinds(a, b []music.CommandKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNew(t *testing.T) {
	t.Run("requires a source", func(t *testing.T) {
		if _, err := New(Config{Scale: music.DefaultScaleConfig(), Mapping: gesture.DefaultSettings(), Volume: music.DefaultOptions()}); err == nil {
			t.Error("expected error without a source")
		}
	})

	t.Run("rejects invalid scale", func(t *testing.T) {
		sc := music.DefaultScaleConfig()
		sc.Octaves = 0
		_, err := New(Config{
			Source:  tracker.NewReplaySource(nil, false),
			Scale:   sc,
			Mapping: gesture.DefaultSettings(),
			Volume:  music.DefaultOptions(),
		})
		if !errors.Is(err, music.ErrInvalidConfig) {
			t.Errorf("error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("resolves scale by name", func(t *testing.T) {
		a, _ := newTestApp(t, nil, func(c *Config) {
			c.Scale.Scale = music.Scale{Name: "Blues"}
		})
		if got := a.Settings().Scale.Scale.Steps; len(got) != len(music.Blues.Steps) {
			t.Errorf("steps = %v, want blues", got)
		}
	})
}

func TestApp_TwoHandRecording(t *testing.T) {
	frames, err := tracker.LoadRecording(filepath.Join("..", "..", "testdata", "sweep.jsonl"))
	if err != nil {
		t.Fatalf("LoadRecording() error = %v", err)
	}

	a, rec := newTestApp(t, frames, func(c *Config) {
		c.Mapping.Hands = gesture.HandsTwo
	})
	statuses := run(a, len(frames))

	want := []music.CommandKind{music.CommandProgram}
	for i := 0; i < 10; i++ {
		want = append(want, music.CommandPlay)
	}
	want = append(want, music.CommandStop, music.CommandPlay, music.CommandStop)

	cmds := rec.Commands()
	if got := kinds(cmds); !equalKinds(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}

	plays := cmds[1:11]
	if plays[0].Pitch != 60 {
		t.Errorf("first note = %v, want 60 (C4)", plays[0].Pitch)
	}
	if plays[9].Pitch != 84 {
		t.Errorf("last note = %v, want 84 (C6)", plays[9].Pitch)
	}
	for i := 1; i < len(plays); i++ {
		if plays[i].Pitch <= plays[i-1].Pitch {
			t.Errorf("note %d = %v does not rise above %v", i, plays[i].Pitch, plays[i-1].Pitch)
		}
	}
	for _, p := range plays {
		if math.Abs(p.Volume-0.3) > 1e-6 {
			t.Errorf("volume = %v, want 0.3 from the left hand height", p.Volume)
		}
	}

	// The right hand leaves at frame 10: silenced in that same frame.
	if got := kinds(statuses[10].Commands); !equalKinds(got, []music.CommandKind{music.CommandStop}) {
		t.Errorf("frame 10 commands = %v, want [stop]", got)
	}
	for _, i := range []int{11, 12} {
		if statuses[i].Control.Present() || len(statuses[i].Commands) != 0 {
			t.Errorf("frame %d: control %+v commands %v, want silence", i, statuses[i].Control, statuses[i].Commands)
		}
		if statuses[i].State != music.StateIdle {
			t.Errorf("frame %d state = %v, want idle", i, statuses[i].State)
		}
	}

	// A fist while idle is not a replay: it plays normally.
	if statuses[13].Commands[0].Replay {
		t.Error("fist while idle should not replay")
	}
	if statuses[9].Note != "C6" {
		t.Errorf("frame 9 note = %q, want C6", statuses[9].Note)
	}
}

func TestApp_SingleHandTheremin(t *testing.T) {
	var frames []tracker.Frame
	for i := 0; i <= 6; i++ {
		y := 0.55 + 0.05*float64(i)
		frames = append(frames, hands(detector.OpenPalmAt("Right", 0.7, y)))
	}

	a, rec := newTestApp(t, frames, func(c *Config) {
		c.Mapping.Mode = gesture.ModeContinuous
	})
	run(a, len(frames))

	cmds := rec.Commands()
	if cmds[0].Kind != music.CommandProgram || cmds[0].Instrument != music.GlideInstrument {
		t.Fatalf("first command = %v, want program %q", cmds[0], music.GlideInstrument)
	}
	updates := cmds[1:]
	if len(updates) != len(frames) {
		t.Fatalf("got %d note commands, want %d", len(updates), len(frames))
	}
	for i, c := range updates {
		if c.Kind != music.CommandUpdate {
			t.Errorf("command %d = %v, want update", i, c)
		}
		if math.Abs(c.Pitch-updates[0].Pitch) > 1e-9 {
			t.Errorf("pitch moved with a fixed x: %v != %v", c.Pitch, updates[0].Pitch)
		}
		if i > 0 && c.Volume >= updates[i-1].Volume {
			t.Errorf("volume %d = %v should fall as the hand lowers", i, c.Volume)
		}
	}
}

func TestApp_ThereminVerticalSweep(t *testing.T) {
	var frames []tracker.Frame
	for i := 0; i <= 6; i++ {
		y := 0.2 + 0.1*float64(i)
		frames = append(frames, hands(detector.OpenPalmAt("Right", 0.75, y)))
	}

	a, rec := newTestApp(t, frames, func(c *Config) {
		c.Mapping.Mode = gesture.ModeContinuous
		c.Mapping.PitchAxis = gesture.AxisY
		c.Mapping.PitchRange = gesture.Range{Min: 0.1, Max: 0.9}
	})
	run(a, len(frames))

	cmds := rec.Commands()
	if cmds[0].Kind != music.CommandProgram {
		t.Fatalf("first command = %v, want program", cmds[0])
	}
	updates := cmds[1:]
	if len(updates) != len(frames) {
		t.Fatalf("got %d note commands, want one per frame (%d)", len(updates), len(frames))
	}
	for i, c := range updates {
		if c.Kind != music.CommandUpdate {
			t.Errorf("command %d = %v, want update", i, c)
		}
		if i > 0 && c.Pitch <= updates[i-1].Pitch {
			t.Errorf("pitch %d = %v does not rise above %v", i, c.Pitch, updates[i-1].Pitch)
		}
		// Volume follows x, which stays put.
		if math.Abs(c.Volume-0.5) > 1e-9 {
			t.Errorf("volume %d = %v, want 0.5", i, c.Volume)
		}
	}
}

func TestApp_ReplayFist(t *testing.T) {
	open := detector.OpenPalmAt("Right", 0.7, 0.3)
	fist := detector.FistAt("Right", 0.7, 0.3)
	frames := []tracker.Frame{hands(open), hands(fist), hands(fist), hands(open)}

	a, rec := newTestApp(t, frames, nil)
	statuses := run(a, len(frames))

	replays := 0
	for _, st := range statuses {
		for _, c := range st.Commands {
			if c.Replay {
				replays++
			}
		}
	}
	if replays != 1 {
		t.Fatalf("replays = %d, want 1 for a fist held two frames", replays)
	}

	cmds := rec.Commands()
	if got := kinds(cmds); !equalKinds(got, []music.CommandKind{music.CommandProgram, music.CommandPlay, music.CommandPlay}) {
		t.Fatalf("commands = %v", got)
	}
	if cmds[2].Pitch != cmds[1].Pitch || cmds[2].Volume != cmds[1].Volume {
		t.Errorf("replay %v differs from last played %v", cmds[2], cmds[1])
	}
}

func TestApp_SettingsLatch(t *testing.T) {
	palm := detector.OpenPalmAt("Right", 0.7, 0.3)
	frames := []tracker.Frame{hands(palm), hands(palm), hands(palm)}
	a, rec := newTestApp(t, frames, nil)

	a.Tick(frameAt(0))

	bad := music.DefaultScaleConfig()
	bad.Scale = music.Scale{Name: "empty", Steps: []int{}}
	if err := a.SetScale(bad); err == nil {
		t.Fatal("expected error for a scale with no steps")
	}
	bad = music.DefaultScaleConfig()
	bad.Octaves = 9
	if err := a.SetScale(bad); !errors.Is(err, music.ErrInvalidConfig) {
		t.Fatalf("SetScale error = %v, want ErrInvalidConfig", err)
	}
	if got := a.Settings().Scale.Octaves; got != 2 {
		t.Fatalf("octaves = %d after rejected change, want 2", got)
	}

	if err := a.SetMapping(gesture.Settings{}); !errors.Is(err, gesture.ErrInvalidSettings) {
		t.Errorf("SetMapping error = %v, want ErrInvalidSettings", err)
	}

	// Pending changes do not touch the status until the next frame.
	if err := a.SetMode(gesture.ModeContinuous); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if a.Status().Settings.Mapping.Mode != gesture.ModeDiscrete {
		t.Error("mode applied before the next frame")
	}

	rec.Reset()
	st := a.Tick(frameAt(1))
	if st.Settings.Mapping.Mode != gesture.ModeContinuous {
		t.Fatal("mode not latched on the next frame")
	}
	want := []music.CommandKind{music.CommandStop, music.CommandProgram, music.CommandUpdate}
	if got := kinds(rec.Commands()); !equalKinds(got, want) {
		t.Errorf("mode switch commands = %v, want %v", got, want)
	}
}

func TestApp_SetScaleChangesInstrument(t *testing.T) {
	palm := detector.OpenPalmAt("Right", 0.7, 0.3)
	a, rec := newTestApp(t, []tracker.Frame{hands(palm), hands(palm)}, nil)
	a.Tick(frameAt(0))

	sc := a.Settings().Scale
	sc.Instrument = "violin"
	sc.Scale = music.Scale{Name: "minor pentatonic"}
	if err := a.SetScale(sc); err != nil {
		t.Fatalf("SetScale: %v", err)
	}
	rec.Reset()
	a.Tick(frameAt(1))

	cmds := rec.Commands()
	if len(cmds) == 0 || cmds[0].Kind != music.CommandProgram || cmds[0].Instrument != "violin" {
		t.Errorf("commands = %v, want program violin first", cmds)
	}
}

func TestApp_SinkUnavailable(t *testing.T) {
	palm := func(x float64) tracker.Frame { return hands(detector.OpenPalmAt("Right", x, 0.3)) }
	frames := []tracker.Frame{palm(0.55), palm(0.7), palm(0.9), palm(0.9)}
	a, rec := newTestApp(t, frames, nil)

	rec.SetReady(false)
	a.Tick(frameAt(0))
	a.Tick(frameAt(1))
	st := a.Tick(frameAt(2))
	if len(rec.Commands()) != 0 {
		t.Fatalf("commands delivered to an unready sink: %v", rec.Commands())
	}
	if st.Pending != 2 {
		t.Errorf("pending = %d, want program plus newest note", st.Pending)
	}

	rec.SetReady(true)
	a.Tick(frameAt(3))
	cmds := rec.Commands()
	if got := kinds(cmds); !equalKinds(got, []music.CommandKind{music.CommandProgram, music.CommandPlay}) {
		t.Fatalf("commands = %v, want program then the newest play", got)
	}
	if cmds[1].Pitch != st.Playback.Pitch {
		t.Errorf("delivered pitch %v, want newest %v", cmds[1].Pitch, st.Playback.Pitch)
	}
}

func TestApp_Disable(t *testing.T) {
	palm := detector.OpenPalmAt("Right", 0.7, 0.3)
	a, rec := newTestApp(t, []tracker.Frame{hands(palm), hands(palm), hands(palm)}, nil)

	a.Tick(frameAt(0))
	a.SetEnabled(false)
	st := a.Tick(frameAt(1))
	if got := kinds(st.Commands); !equalKinds(got, []music.CommandKind{music.CommandStop}) {
		t.Errorf("disable commands = %v, want [stop]", got)
	}
	if st.Enabled || st.Control.Present() {
		t.Errorf("status while disabled = %+v", st)
	}

	a.SetEnabled(true)
	a.Tick(frameAt(2))
	if last := rec.Commands()[len(rec.Commands())-1]; last.Kind != music.CommandPlay {
		t.Errorf("re-enabled command = %v, want play", last)
	}
}

func TestApp_Subscribe(t *testing.T) {
	palm := detector.OpenPalmAt("Right", 0.7, 0.3)
	a, _ := newTestApp(t, []tracker.Frame{hands(palm), hands(palm), hands(palm)}, nil)

	ch, cancel := a.Subscribe()
	a.Tick(frameAt(0))
	a.Tick(frameAt(1))

	select {
	case st := <-ch:
		if st.Frame != 2 {
			t.Errorf("slow subscriber got frame %d, want newest 2", st.Frame)
		}
	default:
		t.Fatal("no status published")
	}

	cancel()
	cancel()
	a.Tick(frameAt(2))
	select {
	case st := <-ch:
		t.Errorf("status %d received after cancel", st.Frame)
	default:
	}
}

func TestApp_StartStop(t *testing.T) {
	palm := detector.OpenPalmAt("Right", 0.7, 0.3)
	rec := audio.NewRecorder()
	a, err := New(Config{
		Source:  tracker.NewReplaySource([]tracker.Frame{hands(palm)}, true),
		Sink:    rec,
		FPS:     100,
		Scale:   music.DefaultScaleConfig(),
		Mapping: gesture.DefaultSettings(),
		Volume:  music.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !a.Running() {
		t.Error("Running() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Status().Frame < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.Status().Frame < 3 {
		t.Fatal("pipeline did not tick")
	}

	a.Stop()
	if a.Running() {
		t.Error("Running() = true after Stop")
	}
	cmds := rec.Commands()
	if cmds[len(cmds)-1].Kind != music.CommandStop {
		t.Errorf("last command = %v, want stop after the loop ends", cmds[len(cmds)-1])
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if rec.Ready() {
		t.Error("sink still ready after Close")
	}
}

func TestApp_Presets(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	p := &store.Preset{
		ID:         uuid.NewString(),
		Name:       "blues lead",
		StartNote:  57,
		Octaves:    1,
		Scale:      "blues",
		Instrument: "violin",
		Mode:       gesture.ModeContinuous,
		Hands:      gesture.HandsTwo,
	}
	if err := s.Presets().Create(p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, _ := newTestApp(t, nil, func(c *Config) { c.Store = s })
	if err := a.ApplyPreset(p); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}

	got := a.Settings()
	if got.Scale.StartNote != 57 || got.Scale.Octaves != 1 || got.Scale.Scale.Name != "blues" {
		t.Errorf("scale = %+v", got.Scale)
	}
	if got.Mapping.Mode != gesture.ModeContinuous || got.Mapping.Hands != gesture.HandsTwo {
		t.Errorf("mapping = %+v", got.Mapping)
	}
	if id, err := s.Settings().Get(store.SettingLastPreset); err != nil || id != p.ID {
		t.Errorf("last preset = %q, %v", id, err)
	}

	t.Run("mode restored on next start", func(t *testing.T) {
		b, _ := newTestApp(t, nil, func(c *Config) { c.Store = s })
		if b.Settings().Mapping.Mode != gesture.ModeContinuous {
			t.Errorf("restored mode = %v, want continuous", b.Settings().Mapping.Mode)
		}
	})

	t.Run("unknown scale rejected", func(t *testing.T) {
		bad := *p
		bad.Scale = "lydian dominant"
		if err := a.ApplyPreset(&bad); !errors.Is(err, music.ErrInvalidConfig) {
			t.Errorf("error = %v, want ErrInvalidConfig", err)
		}
		if a.Settings().Scale.Scale.Name != "blues" {
			t.Error("settings changed by a rejected preset")
		}
	})
}
