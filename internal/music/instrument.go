package music

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Instrument is a playable sound, identified by name and mapped to a
// General MIDI program number.
type Instrument struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Program uint8  `json:"program"`
}

// DefaultInstrument is used when no instrument is configured.
const DefaultInstrument = "piano"

// GlideInstrument is the sustained voice used in continuous mode, where
// decaying instruments would fade while the pitch glides.
const GlideInstrument = "sawtooth lead"

var instruments = map[string]uint8{
	"piano":          0,
	"electric piano": 4,
	"harpsichord":    6,
	"celesta":        8,
	"vibraphone":     11,
	"marimba":        12,
	"organ":          19,
	"nylon guitar":   24,
	"acoustic bass":  32,
	"violin":         40,
	"cello":          42,
	"strings":        48,
	"choir":          52,
	"trumpet":        56,
	"french horn":    60,
	"alto sax":       65,
	"oboe":           68,
	"clarinet":       71,
	"flute":          73,
	"pan flute":      75,
	"square lead":    80,
	"sawtooth lead":  81,
	"warm pad":       89,
}

// LookupInstrument returns the named instrument.
func LookupInstrument(name string) (Instrument, bool) {
	name = normalizeName(name)
	program, ok := instruments[name]
	if !ok {
		return Instrument{}, false
	}
	return Instrument{
		Name:    name,
		Title:   cases.Title(language.English).String(name),
		Program: program,
	}, true
}

// Instruments returns every known instrument sorted by name.
func Instruments() []Instrument {
	out := make([]Instrument, 0, len(instruments))
	for _, name := range sortedKeys(instruments) {
		inst, _ := LookupInstrument(name)
		out = append(out, inst)
	}
	return out
}

// Program returns the General MIDI program for an instrument name.
func Program(name string) (uint8, error) {
	inst, ok := LookupInstrument(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown instrument %q", ErrInvalidConfig, name)
	}
	return inst.Program, nil
}
