package music

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestScale_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scale   Scale
		wantErr bool
	}{
		{"major", Major, false},
		{"single step", Scale{Name: "drone", Steps: []int{0}}, false},
		{"empty", Scale{Name: "empty"}, true},
		{"not starting at zero", Scale{Name: "x", Steps: []int{1, 3}}, true},
		{"descending", Scale{Name: "x", Steps: []int{0, 5, 3}}, true},
		{"duplicate", Scale{Name: "x", Steps: []int{0, 2, 2}}, true},
		{"beyond octave", Scale{Name: "x", Steps: []int{0, 7, 12}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scale.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()

	for _, s := range c.Scales() {
		if err := s.Validate(); err != nil {
			t.Errorf("built-in scale %q invalid: %v", s.Name, err)
		}
	}

	if got, ok := c.Lookup("  Natural Minor "); !ok || got.Name != "natural minor" {
		t.Errorf("Lookup() = %+v, %v", got, ok)
	}
	if _, ok := c.Lookup("lydian"); ok {
		t.Error("Lookup(lydian) should fail before Add")
	}

	n := len(c.Scales())
	if err := c.Add(Scale{Name: "Lydian", Steps: []int{0, 2, 4, 6, 7, 9, 11}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(c.Scales()) != n+1 {
		t.Errorf("len(Scales()) = %d, want %d", len(c.Scales()), n+1)
	}
	if s, ok := c.Lookup("lydian"); !ok || s.Title() != "Lydian" {
		t.Errorf("Lookup(lydian) = %+v, %v", s, ok)
	}

	if err := c.Add(Scale{Name: "bad", Steps: []int{3}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Add(invalid) error = %v, want ErrInvalidConfig", err)
	}
	if err := c.Add(Scale{Name: " ", Steps: []int{0}}); err == nil {
		t.Error("Add() accepted an empty name")
	}

	t.Run("resolve by name", func(t *testing.T) {
		s, err := c.Resolve(Scale{Name: "blues"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !reflect.DeepEqual(s.Steps, Blues.Steps) {
			t.Errorf("Resolve() steps = %v", s.Steps)
		}
		if _, err := c.Resolve(Scale{Name: "nope"}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Resolve(unknown) error = %v", err)
		}
	})
}

func TestNoteName(t *testing.T) {
	tests := []struct {
		key  int
		want string
	}{
		{60, "C4"},
		{61, "C#4"},
		{69, "A4"},
		{84, "C6"},
		{21, "A0"},
		{0, "C-1"},
		{127, "G9"},
	}
	for _, tt := range tests {
		if got := NoteName(tt.key); got != tt.want {
			t.Errorf("NoteName(%d) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseNote(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"C4", 60, false},
		{"c4", 60, false},
		{"C#4", 61, false},
		{"Db4", 61, false},
		{"A4", 69, false},
		{"B-1", 11, false},
		{"64", 64, false},
		{"H4", 0, true},
		{"C", 0, true},
		{"Cx", 0, true},
		{"200", 0, true},
		{"G10", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNote(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNote(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseNote(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	for key := 0; key < 128; key++ {
		back, err := ParseNote(NoteName(key))
		if err != nil || back != key {
			t.Fatalf("ParseNote(NoteName(%d)) = %d, %v", key, back, err)
		}
	}
}

func TestInstruments(t *testing.T) {
	list := Instruments()
	if len(list) == 0 {
		t.Fatal("no instruments")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Errorf("instruments not sorted: %q before %q", list[i-1].Name, list[i].Name)
		}
	}

	for _, name := range []string{DefaultInstrument, GlideInstrument} {
		if _, ok := LookupInstrument(name); !ok {
			t.Errorf("instrument %q missing from catalog", name)
		}
	}

	p, err := Program("Violin")
	if err != nil || p != 40 {
		t.Errorf("Program(Violin) = %d, %v", p, err)
	}
	if _, err := Program("kazoo"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Program(kazoo) error = %v", err)
	}

	inst, _ := LookupInstrument("french horn")
	if inst.Title != "French Horn" {
		t.Errorf("Title = %q, want French Horn", inst.Title)
	}
}

func TestScaleConfig_Validate(t *testing.T) {
	if err := DefaultScaleConfig().Validate(); err != nil {
		t.Fatalf("DefaultScaleConfig().Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		modify func(*ScaleConfig)
	}{
		{"start too low", func(c *ScaleConfig) { c.StartNote = 19 }},
		{"start too high", func(c *ScaleConfig) { c.StartNote = 81 }},
		{"zero octaves", func(c *ScaleConfig) { c.Octaves = 0 }},
		{"too many octaves", func(c *ScaleConfig) { c.Octaves = 6 }},
		{"empty scale", func(c *ScaleConfig) { c.Scale = Scale{Name: "empty"} }},
		{"unknown instrument", func(c *ScaleConfig) { c.Instrument = "theremin" }},
		{"no instrument", func(c *ScaleConfig) { c.Instrument = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultScaleConfig()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestScaleConfig_Pool(t *testing.T) {
	c := DefaultScaleConfig()
	want := []int{60, 62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84}
	if got := c.Pool(); !reflect.DeepEqual(got, want) {
		t.Errorf("Pool() = %v, want %v", got, want)
	}
	if c.TopNote() != 84 {
		t.Errorf("TopNote() = %d, want 84", c.TopNote())
	}

	labels := c.Labels()
	if labels[0] != "C4" || labels[len(labels)-1] != "C6" {
		t.Errorf("Labels() = %v", labels)
	}

	edges := c.BinEdges()
	if len(edges) != len(want)+1 || edges[0] != 0 || edges[len(edges)-1] != 1 {
		t.Errorf("BinEdges() = %v", edges)
	}
}

func TestScaleConfig_Index(t *testing.T) {
	c := DefaultScaleConfig()
	n := len(c.Pool())

	tests := []struct {
		p    float64
		want int
	}{
		{-0.5, 0},
		{0, 0},
		{0.999 / float64(n), 0},
		{1.001 / float64(n), 1},
		{0.5, 7},
		{0.9999, n - 1},
		{1, n - 1},
		{2, n - 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := c.Index(tt.p); got != tt.want {
			t.Errorf("Index(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestScaleConfig_IndexMonotonic(t *testing.T) {
	for _, scale := range NewCatalog().Scales() {
		for octaves := MinOctaves; octaves <= MaxOctaves; octaves++ {
			c := ScaleConfig{StartNote: 48, Octaves: octaves, Scale: scale, Instrument: DefaultInstrument}
			prevIndex, prevNote := -1, -1
			for i := 0; i <= 1000; i++ {
				p := float64(i) / 1000
				idx, note := c.Index(p), c.Note(p)
				if idx < prevIndex || note < prevNote {
					t.Fatalf("%s/%d: p=%v index %d note %d after index %d note %d",
						scale.Name, octaves, p, idx, note, prevIndex, prevNote)
				}
				prevIndex, prevNote = idx, note
			}
			if prevNote != c.TopNote() {
				t.Errorf("%s/%d: p=1 gives %d, want top note %d", scale.Name, octaves, prevNote, c.TopNote())
			}
		}
	}
}

func TestScaleConfig_Glide(t *testing.T) {
	c := DefaultScaleConfig()
	tests := []struct {
		p, want float64
	}{
		{0, 60},
		{0.5, 72},
		{1, 84},
		{-1, 60},
		{3, 84},
		{math.NaN(), 60},
	}
	for _, tt := range tests {
		if got := c.Glide(tt.p); got != tt.want {
			t.Errorf("Glide(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
