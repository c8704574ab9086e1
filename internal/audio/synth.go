package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/viterin/vek/vek32"
)

// Synthesizer defaults.
const (
	DefaultSampleRate = 44100
	masterGain        = 0.3
	glideTime         = 0.03 // seconds for pitch to settle on Update
	rampTime          = 0.01 // seconds for amplitude changes, avoids clicks
	bytesPerFrame     = 8    // two float32 channels
)

type waveform int

const (
	waveSine waveform = iota
	waveTriangle
	waveSaw
	waveSquare
)

// voice is the timbre chosen for a General MIDI program.
type voice struct {
	wave  waveform
	decay float64 // amplitude half-life in seconds; 0 sustains
}

// voiceFor approximates the GM instrument family of program.
func voiceFor(program uint8) voice {
	switch program / 8 {
	case 0, 3: // piano, guitar
		return voice{wave: waveTriangle, decay: 0.8}
	case 1: // chromatic percussion
		return voice{wave: waveSine, decay: 0.5}
	case 2, 8: // organ, reed
		return voice{wave: waveSquare}
	case 4: // bass
		return voice{wave: waveTriangle, decay: 1.5}
	case 5, 6, 7: // strings, ensemble, brass
		return voice{wave: waveSaw}
	case 10: // synth lead
		if program%2 == 0 {
			return voice{wave: waveSquare}
		}
		return voice{wave: waveSaw}
	}
	return voice{wave: waveSine}
}

// Synth is a monophonic oscillator. It implements io.Reader producing
// interleaved stereo float32 little-endian samples, the format an audio
// player pulls from. Control methods may be called from any goroutine.
type Synth struct {
	mu         sync.Mutex
	sampleRate float64
	voice      voice

	freq, targetFreq float64
	amp, targetAmp   float64
	env              float64
	phase            float64
	peak             float32

	mono []float32
	gain []float32
}

// NewSynth returns a silent synthesizer.
func NewSynth(sampleRate int) *Synth {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Synth{
		sampleRate: float64(sampleRate),
		voice:      voiceFor(0),
		env:        1,
	}
}

// Play starts a note at pitch, retriggering the envelope.
func (s *Synth) Play(pitch, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freq = Frequency(pitch)
	s.targetFreq = s.freq
	s.targetAmp = volume
	s.env = 1
}

// Update glides to pitch and volume, starting the voice if silent.
func (s *Synth) Update(pitch, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.targetAmp == 0 && s.amp < 1e-4 {
		s.freq = Frequency(pitch)
		s.env = 1
	}
	s.targetFreq = Frequency(pitch)
	s.targetAmp = volume
}

// Stop fades the voice out.
func (s *Synth) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetAmp = 0
}

// SetProgram selects the timbre for a General MIDI program.
func (s *Synth) SetProgram(program uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = voiceFor(program)
}

// Peak returns the absolute peak of the last rendered block.
func (s *Synth) Peak() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Read renders len(p)/8 stereo frames into p.
func (s *Synth) Read(p []byte) (int, error) {
	n := len(p) / bytesPerFrame
	if n == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cap(s.mono) < n {
		s.mono = make([]float32, n)
		s.gain = make([]float32, n)
	}
	mono, gain := s.mono[:n], s.gain[:n]

	glide := 1 - math.Exp(-1/(glideTime*s.sampleRate))
	ramp := 1 - math.Exp(-1/(rampTime*s.sampleRate))
	decay := 1.0
	if s.voice.decay > 0 {
		decay = math.Pow(0.5, 1/(s.voice.decay*s.sampleRate))
	}

	for i := range mono {
		s.freq += (s.targetFreq - s.freq) * glide
		s.amp += (s.targetAmp - s.amp) * ramp
		mono[i] = float32(oscillate(s.voice.wave, s.phase))
		gain[i] = float32(s.amp * s.env)

		s.phase += s.freq / s.sampleRate
		s.phase -= math.Floor(s.phase)
		s.env *= decay
	}

	vek32.Mul_Inplace(mono, gain)
	vek32.MulNumber_Inplace(mono, masterGain)

	for i, v := range mono {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame:], bits)
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame+4:], bits)
	}

	vek32.Abs_Inplace(mono)
	s.peak = vek32.Max(mono)
	return n * bytesPerFrame, nil
}

// oscillate returns the waveform value at phase in [0,1).
func oscillate(w waveform, phase float64) float64 {
	switch w {
	case waveTriangle:
		return 1 - 4*math.Abs(phase-0.5)
	case waveSaw:
		return 2*phase - 1
	case waveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	}
	return math.Sin(2 * math.Pi * phase)
}
