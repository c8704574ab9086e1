package music

import (
	"fmt"

	"github.com/ayusman/veloma/internal/gesture"
)

// CommandKind identifies an audio command.
type CommandKind int

const (
	// CommandPlay starts a note, replacing whatever is sounding.
	CommandPlay CommandKind = iota + 1
	// CommandUpdate changes the pitch or volume of the sounding voice,
	// starting it if nothing sounds.
	CommandUpdate
	// CommandStop silences the voice.
	CommandStop
	// CommandProgram changes the instrument.
	CommandProgram
)

func (k CommandKind) String() string {
	switch k {
	case CommandPlay:
		return "play"
	case CommandUpdate:
		return "update"
	case CommandStop:
		return "stop"
	case CommandProgram:
		return "program"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

func (k CommandKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Command is one request to the audio sink. Pitch is in MIDI keys and may be
// fractional in continuous mode; Volume is in [0,1].
type Command struct {
	Kind       CommandKind `json:"kind"`
	Pitch      float64     `json:"pitch,omitempty"`
	Volume     float64     `json:"volume,omitempty"`
	Instrument string      `json:"instrument,omitempty"`
	Replay     bool        `json:"replay,omitempty"`
}

func (c Command) String() string {
	switch c.Kind {
	case CommandPlay, CommandUpdate:
		return fmt.Sprintf("%s %.2f@%.2f", c.Kind, c.Pitch, c.Volume)
	case CommandProgram:
		return fmt.Sprintf("%s %s", c.Kind, c.Instrument)
	}
	return c.Kind.String()
}

// Play returns a play command.
func Play(pitch, volume float64) Command {
	return Command{Kind: CommandPlay, Pitch: pitch, Volume: volume}
}

// Update returns an update command.
func Update(pitch, volume float64) Command {
	return Command{Kind: CommandUpdate, Pitch: pitch, Volume: volume}
}

// Stop returns a stop command.
func Stop() Command {
	return Command{Kind: CommandStop}
}

// ProgramChange returns an instrument change command.
func ProgramChange(instrument string) Command {
	return Command{Kind: CommandProgram, Instrument: instrument}
}

// State is the voice state of the mapper.
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PlaybackState is the last pitch and volume sent to the sink.
type PlaybackState struct {
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Valid  bool    `json:"valid"`
}

// Frame is the result of one mapping step.
type Frame struct {
	Commands []Command     `json:"commands"`
	State    State         `json:"state"`
	Playback PlaybackState `json:"playback"`
}

// Options tune how normalized volume becomes output volume.
type Options struct {
	// VolumeMin and VolumeMax bound the output volume.
	VolumeMin float64 `json:"volume_min" yaml:"volume_min"`
	VolumeMax float64 `json:"volume_max" yaml:"volume_max"`
	// MinVolume gates sound: present input with a normalized volume below
	// it is treated as silence. 0 disables the gate.
	MinVolume float64 `json:"min_volume" yaml:"min_volume"`
}

// DefaultOptions returns the full volume range with no gate.
func DefaultOptions() Options {
	return Options{VolumeMin: 0, VolumeMax: 1}
}

// Validate returns an error wrapping ErrInvalidConfig for unusable options.
func (o Options) Validate() error {
	if o.VolumeMin < 0 || o.VolumeMax > 1 || o.VolumeMin > o.VolumeMax {
		return fmt.Errorf("%w: volume range [%g, %g] outside [0, 1]", ErrInvalidConfig, o.VolumeMin, o.VolumeMax)
	}
	if o.MinVolume < 0 || o.MinVolume > 1 {
		return fmt.Errorf("%w: volume gate %g outside [0, 1]", ErrInvalidConfig, o.MinVolume)
	}
	return nil
}

func (o Options) volume(v float64) float64 {
	return o.VolumeMin + v*(o.VolumeMax-o.VolumeMin)
}

// Mapper turns control values into audio commands. It tracks the voice
// state and the last sent pitch so that unchanged notes are not retriggered
// and a replay gesture can reissue exactly what was last played.
// A Mapper is used from a single goroutine.
type Mapper struct {
	opts       Options
	state      State
	playback   PlaybackState
	mode       gesture.Mode
	modeSet    bool
	instrument string
}

// NewMapper returns an idle mapper.
func NewMapper(opts Options) *Mapper {
	return &Mapper{opts: opts}
}

// SetOptions replaces the volume options from the next step on.
func (m *Mapper) SetOptions(opts Options) {
	m.opts = opts
}

// State returns the current voice state.
func (m *Mapper) State() State {
	return m.state
}

// Playback returns the last sent pitch and volume.
func (m *Mapper) Playback() PlaybackState {
	return m.playback
}

// Step maps one frame of control values. The configuration must be valid.
func (m *Mapper) Step(cv gesture.ControlValues, cfg ScaleConfig, mode gesture.Mode) Frame {
	var cmds []Command

	if m.modeSet && mode != m.mode {
		cmds = m.stop(cmds)
		m.playback = PlaybackState{}
	}
	m.mode, m.modeSet = mode, true

	want := cfg.Instrument
	if mode == gesture.ModeContinuous {
		want = GlideInstrument
	}
	if want != m.instrument {
		cmds = append(cmds, ProgramChange(want))
		m.instrument = want
	}

	gated := m.opts.MinVolume > 0 && cv.Volume < m.opts.MinVolume
	if !cv.Present() || gated {
		return m.frame(m.stop(cmds))
	}

	if cv.Replay && m.state == StateActive && m.playback.Valid {
		c := Play(m.playback.Pitch, m.playback.Volume)
		c.Replay = true
		return m.frame(append(cmds, c))
	}

	volume := m.opts.volume(cv.Volume)

	switch mode {
	case gesture.ModeContinuous:
		pitch := cfg.Glide(cv.Pitch)
		cmds = append(cmds, Update(pitch, volume))
		m.playback = PlaybackState{Pitch: pitch, Volume: volume, Valid: true}

	default:
		note := float64(cfg.Note(cv.Pitch))
		switch {
		case m.state == StateIdle || !m.playback.Valid || note != m.playback.Pitch:
			cmds = append(cmds, Play(note, volume))
		case volume != m.playback.Volume:
			cmds = append(cmds, Update(note, volume))
		}
		m.playback = PlaybackState{Pitch: note, Volume: volume, Valid: true}
	}

	m.state = StateActive
	return m.frame(cmds)
}

// Release silences the voice if it is sounding, e.g. when the frame loop stops.
func (m *Mapper) Release() Frame {
	return m.frame(m.stop(nil))
}

// Reset returns the mapper to its initial state without emitting commands.
func (m *Mapper) Reset() {
	*m = Mapper{opts: m.opts}
}

func (m *Mapper) stop(cmds []Command) []Command {
	if m.state != StateActive {
		return cmds
	}
	m.state = StateIdle
	return append(cmds, Stop())
}

func (m *Mapper) frame(cmds []Command) Frame {
	return Frame{Commands: cmds, State: m.state, Playback: m.playback}
}
