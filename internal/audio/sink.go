// Package audio delivers note commands to sound outputs: a MIDI port, a
// built-in synthesizer, or a recorder used in tests.
package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/veloma/internal/music"
)

// ErrClosed is returned by sinks used after Close.
var ErrClosed = errors.New("audio sink closed")

// Sink is a sound output. Pitch is in MIDI keys and may be fractional;
// volume is in [0,1]. Calls are fire-and-forget from the frame loop.
type Sink interface {
	// Ready reports whether the sink can accept commands now.
	Ready() bool
	// Play starts a note, replacing whatever sounds.
	Play(pitch, volume float64) error
	// Update moves the sounding voice, starting it if nothing sounds.
	Update(pitch, volume float64) error
	// Stop silences the voice.
	Stop() error
	// SetInstrument selects the instrument by catalog name.
	SetInstrument(name string) error
	Close() error
}

// Apply delivers one command to a sink.
func Apply(s Sink, c music.Command) error {
	switch c.Kind {
	case music.CommandPlay:
		return s.Play(c.Pitch, c.Volume)
	case music.CommandUpdate:
		return s.Update(c.Pitch, c.Volume)
	case music.CommandStop:
		return s.Stop()
	case music.CommandProgram:
		return s.SetInstrument(c.Instrument)
	}
	return fmt.Errorf("unknown command kind %d", int(c.Kind))
}

// Frequency converts a fractional MIDI key to hertz (A4 = 440 Hz).
func Frequency(pitch float64) float64 {
	return 440 * math.Pow(2, (pitch-69)/12)
}

// Nop is a sink that accepts and discards everything.
type Nop struct{}

func (Nop) Ready() bool                  { return true }
func (Nop) Play(_, _ float64) error      { return nil }
func (Nop) Update(_, _ float64) error    { return nil }
func (Nop) Stop() error                  { return nil }
func (Nop) SetInstrument(_ string) error { return nil }
func (Nop) Close() error                 { return nil }
