package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/ayusman/veloma/internal/music"
)

// MIDI controller numbers.
const (
	ccVolume  = 7
	ccSustain = 64
)

// DefaultBendRange is the pitch bend range, in semitones, most synthesizers
// use out of the box.
const DefaultBendRange = 2.0

// ErrNoMIDIDriver is returned when the binary was built without a MIDI driver.
var ErrNoMIDIDriver = errors.New("no MIDI driver available")

// MIDIConfig selects the output port.
type MIDIConfig struct {
	// Port is matched case-insensitively as a substring of the port name.
	// Empty picks the first port that is not a loopback.
	Port      string  `yaml:"port"`
	Channel   uint8   `yaml:"channel"`
	BendRange float64 `yaml:"bend_range"`
}

// excludedPorts are never picked automatically.
var excludedPorts = []string{"Midi Through", "Through Port", "Dummy"}

// pickPort returns the first port name matching want, skipping loopbacks
// when want is empty.
func pickPort(names []string, want string) (int, bool) {
	for i, name := range names {
		if want != "" {
			if containsCI(name, want) {
				return i, true
			}
			continue
		}
		excluded := false
		for _, pat := range excludedPorts {
			if containsCI(name, pat) {
				excluded = true
				break
			}
		}
		if !excluded {
			return i, true
		}
	}
	return 0, false
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// MIDISink plays commands on a MIDI output. A sounding continuous pitch is
// expressed as the nearest key plus pitch bend; the sustain pedal is held
// while a note sounds.
type MIDISink struct {
	mu        sync.Mutex
	send      func(midi.Message) error
	closer    func() error
	channel   uint8
	bendRange float64

	key     int // sounding key, -1 when silent
	sustain bool
	closed  bool
}

// NewMIDISink returns a sink writing through send. closer, if not nil, is
// called on Close to release the port.
func NewMIDISink(send func(midi.Message) error, closer func() error, cfg MIDIConfig) *MIDISink {
	if cfg.BendRange <= 0 {
		cfg.BendRange = DefaultBendRange
	}
	return &MIDISink{
		send:      send,
		closer:    closer,
		channel:   cfg.Channel & 0x0f,
		bendRange: cfg.BendRange,
		key:       -1,
	}
}

// OpenMIDISink opens the configured output port.
func OpenMIDISink(cfg MIDIConfig) (*MIDISink, error) {
	send, closer, err := openMIDIOut(cfg.Port)
	if err != nil {
		return nil, err
	}
	return NewMIDISink(send, closer, cfg), nil
}

func (s *MIDISink) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.send != nil
}

func (s *MIDISink) Play(pitch, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.start(pitch, volume)
}

func (s *MIDISink) Update(pitch, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.key < 0 {
		return s.start(pitch, volume)
	}

	offset := pitch - float64(s.key)
	if math.Abs(offset) > s.bendRange {
		// Out of bend reach: move to the nearest key.
		return s.start(pitch, volume)
	}
	return s.sendAll(
		midi.Pitchbend(s.channel, bendValue(offset, s.bendRange)),
		midi.ControlChange(s.channel, ccVolume, scale7(volume)),
	)
}

func (s *MIDISink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.silence()
}

func (s *MIDISink) SetInstrument(name string) error {
	program, err := music.Program(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.sendAll(midi.ProgramChange(s.channel, program))
}

// Close silences the voice and releases the port.
func (s *MIDISink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.silence()
	s.closed = true
	if s.closer != nil {
		if cerr := s.closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// start retriggers at the key nearest to pitch. Callers hold mu.
func (s *MIDISink) start(pitch, volume float64) error {
	key := int(math.Round(pitch))
	key = max(0, min(127, key))

	var msgs []midi.Message
	if s.key >= 0 {
		msgs = append(msgs, midi.NoteOff(s.channel, uint8(s.key)))
	}
	if !s.sustain {
		msgs = append(msgs, midi.ControlChange(s.channel, ccSustain, 127))
	}
	msgs = append(msgs,
		midi.ControlChange(s.channel, ccVolume, scale7(volume)),
		midi.Pitchbend(s.channel, bendValue(pitch-float64(key), s.bendRange)),
		midi.NoteOn(s.channel, uint8(key), max(1, scale7(volume))),
	)
	if err := s.sendAll(msgs...); err != nil {
		return err
	}
	s.key = key
	s.sustain = true
	return nil
}

// silence releases the key and the pedal. Callers hold mu.
func (s *MIDISink) silence() error {
	var msgs []midi.Message
	if s.key >= 0 {
		msgs = append(msgs, midi.NoteOff(s.channel, uint8(s.key)))
	}
	if s.sustain {
		msgs = append(msgs, midi.ControlChange(s.channel, ccSustain, 0))
	}
	if len(msgs) == 0 {
		return nil
	}
	msgs = append(msgs, midi.Pitchbend(s.channel, 0))
	if err := s.sendAll(msgs...); err != nil {
		return err
	}
	s.key = -1
	s.sustain = false
	return nil
}

func (s *MIDISink) sendAll(msgs ...midi.Message) error {
	for _, m := range msgs {
		if err := s.send(m); err != nil {
			return fmt.Errorf("midi send %s: %w", m, err)
		}
	}
	return nil
}

// scale7 maps [0,1] to a 7-bit MIDI value.
func scale7(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 127))
}

// bendValue maps a semitone offset to a 14-bit signed pitch bend value.
func bendValue(semitones, bendRange float64) int16 {
	v := math.Round(semitones / bendRange * 8191)
	return int16(math.Max(-8192, math.Min(8191, v)))
}
