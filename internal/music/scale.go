// Package music maps normalized control values onto notes and turns them
// into audio commands.
package music

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidConfig is returned when a scale configuration cannot be applied.
var ErrInvalidConfig = errors.New("invalid scale configuration")

// Scale is an ascending set of semitone offsets within one octave, starting at 0.
type Scale struct {
	Name  string `json:"name" yaml:"name"`
	Steps []int  `json:"steps" yaml:"steps"`
}

// Validate checks that steps start at 0, ascend strictly and stay below 12.
func (s Scale) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: scale %q has no steps", ErrInvalidConfig, s.Name)
	}
	if s.Steps[0] != 0 {
		return fmt.Errorf("%w: scale %q must start at 0", ErrInvalidConfig, s.Name)
	}
	for i := 1; i < len(s.Steps); i++ {
		if s.Steps[i] <= s.Steps[i-1] || s.Steps[i] >= 12 {
			return fmt.Errorf("%w: scale %q steps must ascend within one octave", ErrInvalidConfig, s.Name)
		}
	}
	return nil
}

// Title returns the display name of the scale.
func (s Scale) Title() string {
	return cases.Title(language.English).String(s.Name)
}

// Built-in scales.
var (
	Chromatic       = Scale{Name: "chromatic", Steps: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}}
	Major           = Scale{Name: "major", Steps: []int{0, 2, 4, 5, 7, 9, 11}}
	NaturalMinor    = Scale{Name: "natural minor", Steps: []int{0, 2, 3, 5, 7, 8, 10}}
	HarmonicMinor   = Scale{Name: "harmonic minor", Steps: []int{0, 2, 3, 5, 7, 8, 11}}
	MajorPentatonic = Scale{Name: "major pentatonic", Steps: []int{0, 2, 4, 7, 9}}
	MinorPentatonic = Scale{Name: "minor pentatonic", Steps: []int{0, 3, 5, 7, 10}}
	Blues           = Scale{Name: "blues", Steps: []int{0, 3, 5, 6, 7, 10}}
	Dorian          = Scale{Name: "dorian", Steps: []int{0, 2, 3, 5, 7, 9, 10}}
	Mixolydian      = Scale{Name: "mixolydian", Steps: []int{0, 2, 4, 5, 7, 9, 10}}
	WholeTone       = Scale{Name: "whole tone", Steps: []int{0, 2, 4, 6, 8, 10}}
)

// Catalog is a named set of scales. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	scales map[string]Scale
	order  []string
}

// NewCatalog returns a catalog holding the built-in scales.
func NewCatalog() *Catalog {
	c := &Catalog{scales: make(map[string]Scale)}
	for _, s := range []Scale{
		Major, NaturalMinor, HarmonicMinor, MajorPentatonic, MinorPentatonic,
		Blues, Dorian, Mixolydian, WholeTone, Chromatic,
	} {
		c.scales[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	return c
}

// Add registers a scale, replacing any scale with the same name.
func (c *Catalog) Add(s Scale) error {
	s.Name = normalizeName(s.Name)
	if s.Name == "" {
		return fmt.Errorf("%w: scale name is empty", ErrInvalidConfig)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	s.Steps = append([]int(nil), s.Steps...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scales[s.Name]; !ok {
		c.order = append(c.order, s.Name)
	}
	c.scales[s.Name] = s
	return nil
}

// Lookup finds a scale by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (Scale, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scales[normalizeName(name)]
	return s, ok
}

// Scales returns every scale in registration order.
func (c *Catalog) Scales() []Scale {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Scale, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.scales[name])
	}
	return out
}

// Resolve fills in the steps of a scale given only by name.
func (c *Catalog) Resolve(s Scale) (Scale, error) {
	if len(s.Steps) > 0 {
		return s, nil
	}
	found, ok := c.Lookup(s.Name)
	if !ok {
		return Scale{}, fmt.Errorf("%w: unknown scale %q", ErrInvalidConfig, s.Name)
	}
	return found, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the scientific pitch name of a MIDI key, e.g. 60 -> "C4".
func NoteName(key int) string {
	octave := key/12 - 1
	if key < 0 {
		octave = (key-11)/12 - 1
	}
	return noteNames[((key%12)+12)%12] + strconv.Itoa(octave)
}

var pitchClasses = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// ParseNote parses a note name such as "C4", "F#3" or "Bb2" into a MIDI key.
// A plain integer is accepted as a key number.
func ParseNote(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("%w: key %d out of MIDI range", ErrInvalidConfig, n)
		}
		return n, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: bad note name %q", ErrInvalidConfig, s)
	}

	pc, ok := pitchClasses[strings.ToUpper(s[:1])]
	if !ok {
		return 0, fmt.Errorf("%w: bad note name %q", ErrInvalidConfig, s)
	}
	rest := s[1:]
	switch rest[0] {
	case '#':
		pc++
		rest = rest[1:]
	case 'b':
		pc--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: bad octave in %q", ErrInvalidConfig, s)
	}
	key := (octave+1)*12 + pc
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("%w: note %q out of MIDI range", ErrInvalidConfig, s)
	}
	return key, nil
}

// sortedKeys returns map keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
