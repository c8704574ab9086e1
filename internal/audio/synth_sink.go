package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/ayusman/veloma/internal/music"
)

// SynthConfig configures the built-in synthesizer output.
type SynthConfig struct {
	SampleRate int `yaml:"sample_rate"`
	// BufferMs is the device buffer length; 0 lets the driver choose.
	BufferMs int `yaml:"buffer_ms"`
}

// SynthSink plays commands on the built-in synthesizer through the system
// audio device. It is not ready until the device has started.
type SynthSink struct {
	synth  *Synth
	ready  <-chan struct{}
	player *oto.Player

	mu     sync.Mutex
	closed bool
}

// OpenSynthSink creates the audio context and starts playback of the
// synthesizer. The device may finish initializing after this returns.
func OpenSynthSink(cfg SynthConfig) (*SynthSink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	if cfg.BufferMs > 0 {
		op.BufferSize = time.Duration(cfg.BufferMs) * time.Millisecond
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}

	synth := NewSynth(cfg.SampleRate)
	player := ctx.NewPlayer(synth)
	player.Play()

	return &SynthSink{synth: synth, ready: ready, player: player}, nil
}

// Synth returns the underlying synthesizer.
func (s *SynthSink) Synth() *Synth {
	return s.synth
}

func (s *SynthSink) Ready() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *SynthSink) Play(pitch, volume float64) error {
	if err := s.check(); err != nil {
		return err
	}
	s.synth.Play(pitch, volume)
	return nil
}

func (s *SynthSink) Update(pitch, volume float64) error {
	if err := s.check(); err != nil {
		return err
	}
	s.synth.Update(pitch, volume)
	return nil
}

func (s *SynthSink) Stop() error {
	if err := s.check(); err != nil {
		return err
	}
	s.synth.Stop()
	return nil
}

func (s *SynthSink) SetInstrument(name string) error {
	program, err := music.Program(name)
	if err != nil {
		return err
	}
	if err := s.check(); err != nil {
		return err
	}
	s.synth.SetProgram(program)
	return nil
}

func (s *SynthSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func (s *SynthSink) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
