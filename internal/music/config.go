package music

import (
	"fmt"
	"math"
)

// Bounds for ScaleConfig fields.
const (
	MinStartNote = 20
	MaxStartNote = 80
	MinOctaves   = 1
	MaxOctaves   = 5
)

// ScaleConfig describes the notes an instrument can reach.
type ScaleConfig struct {
	StartNote  int    `json:"start_note" yaml:"start_note"`
	Octaves    int    `json:"octaves" yaml:"octaves"`
	Scale      Scale  `json:"scale" yaml:"scale"`
	Instrument string `json:"instrument" yaml:"instrument"`
}

// DefaultScaleConfig returns two octaves of C major from middle C on piano.
func DefaultScaleConfig() ScaleConfig {
	return ScaleConfig{
		StartNote:  60,
		Octaves:    2,
		Scale:      Major,
		Instrument: DefaultInstrument,
	}
}

// Validate returns an error wrapping ErrInvalidConfig if the configuration
// cannot be played.
func (c ScaleConfig) Validate() error {
	if c.StartNote < MinStartNote || c.StartNote > MaxStartNote {
		return fmt.Errorf("%w: start note %d outside [%d, %d]", ErrInvalidConfig, c.StartNote, MinStartNote, MaxStartNote)
	}
	if c.Octaves < MinOctaves || c.Octaves > MaxOctaves {
		return fmt.Errorf("%w: octave range %d outside [%d, %d]", ErrInvalidConfig, c.Octaves, MinOctaves, MaxOctaves)
	}
	if err := c.Scale.Validate(); err != nil {
		return err
	}
	if _, ok := LookupInstrument(c.Instrument); !ok {
		return fmt.Errorf("%w: unknown instrument %q", ErrInvalidConfig, c.Instrument)
	}
	return nil
}

// Pool returns every reachable MIDI key in ascending order: the scale steps
// repeated over each octave, closed by the note one range above the start.
func (c ScaleConfig) Pool() []int {
	pool := make([]int, 0, len(c.Scale.Steps)*c.Octaves+1)
	for o := 0; o < c.Octaves; o++ {
		for _, step := range c.Scale.Steps {
			pool = append(pool, c.StartNote+12*o+step)
		}
	}
	return append(pool, c.TopNote())
}

// TopNote returns the highest reachable key.
func (c ScaleConfig) TopNote() int {
	return c.StartNote + 12*c.Octaves
}

// Index quantizes a normalized pitch position into a pool index. The range
// is split into equal-width bins and the position is floored into one, so
// the index never decreases as p grows. p = 1 falls in the last bin.
func (c ScaleConfig) Index(p float64) int {
	n := len(c.Scale.Steps)*c.Octaves + 1
	if !(p > 0) {
		return 0
	}
	i := int(math.Floor(p * float64(n)))
	if i >= n {
		i = n - 1
	}
	return i
}

// Note returns the quantized MIDI key for a normalized pitch position.
func (c ScaleConfig) Note(p float64) int {
	return c.Pool()[c.Index(p)]
}

// Glide returns the continuous pitch, in fractional MIDI keys, for a
// normalized pitch position.
func (c ScaleConfig) Glide(p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	if math.IsNaN(p) {
		p = 0
	}
	return float64(c.StartNote) + p*12*float64(c.Octaves)
}

// BinEdges returns the normalized boundaries of the quantization bins,
// from 0 to 1 inclusive.
func (c ScaleConfig) BinEdges() []float64 {
	n := len(c.Scale.Steps)*c.Octaves + 1
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = float64(i) / float64(n)
	}
	return edges
}

// Labels returns the note name of every pool entry.
func (c ScaleConfig) Labels() []string {
	pool := c.Pool()
	out := make([]string, len(pool))
	for i, key := range pool {
		out[i] = NoteName(key)
	}
	return out
}
