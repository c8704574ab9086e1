// Package config loads the application configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/veloma/internal/audio"
	"github.com/ayusman/veloma/internal/capture"
	"github.com/ayusman/veloma/internal/detector"
	"github.com/ayusman/veloma/internal/gesture"
	"github.com/ayusman/veloma/internal/music"
)

// Detector kinds.
const (
	DetectorMediaPipe = "mediapipe"
	DetectorMock      = "mock"
	DetectorReplay    = "replay"
)

// Sink kinds.
const (
	SinkMIDI  = "midi"
	SinkSynth = "synth"
	SinkNone  = "none"
)

// Config is the top-level configuration.
type Config struct {
	DataDir  string          `yaml:"data_dir"`
	Camera   capture.Config  `yaml:"camera"`
	Detector DetectorConfig  `yaml:"detector"`
	Audio    AudioConfig     `yaml:"audio"`
	Server   ServerConfig    `yaml:"server"`
	Mapping  gesture.Settings `yaml:"mapping"`
	Scale    ScaleConfig     `yaml:"scale"`
	// Scales adds user-defined scales to the built-in catalog.
	Scales []music.Scale `yaml:"scales"`
	Tray   bool          `yaml:"tray"`
}

// DetectorConfig selects where landmarks come from.
type DetectorConfig struct {
	Kind            string `yaml:"kind"` // mediapipe | mock | replay
	detector.Config `yaml:",inline"`
	// Recording is the JSON lines landmark recording played by the replay kind.
	Recording string `yaml:"recording"`
	Loop      bool   `yaml:"loop"`
}

// AudioConfig selects and tunes the sound output.
type AudioConfig struct {
	Sink          string            `yaml:"sink"` // midi | synth | none
	MIDI          audio.MIDIConfig  `yaml:"midi"`
	Synth         audio.SynthConfig `yaml:"synth"`
	music.Options `yaml:",inline"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	Preview   bool   `yaml:"preview"`
}

// ScaleConfig is the starting scale. Start accepts a note name ("C4") or a
// MIDI key number; Scale names a catalog entry.
type ScaleConfig struct {
	Start      string `yaml:"start"`
	Octaves    int    `yaml:"octaves"`
	Scale      string `yaml:"scale"`
	Instrument string `yaml:"instrument"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataDir:  defaultDataDir(),
		Camera:   capture.DefaultConfig(),
		Detector: DetectorConfig{Kind: DetectorMediaPipe, Config: detector.DefaultConfig()},
		Audio: AudioConfig{
			Sink:    SinkSynth,
			Synth:   audio.SynthConfig{SampleRate: audio.DefaultSampleRate},
			MIDI:    audio.MIDIConfig{BendRange: audio.DefaultBendRange},
			Options: music.DefaultOptions(),
		},
		Server:  ServerConfig{Addr: "127.0.0.1:8080", Preview: true},
		Mapping: gesture.DefaultSettings(),
		Scale: ScaleConfig{
			Start:      "C4",
			Octaves:    2,
			Scale:      music.Major.Name,
			Instrument: music.DefaultInstrument,
		},
		Tray: true,
	}
}

// DefaultPath returns ~/.veloma/config.yaml.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veloma"
	}
	return filepath.Join(home, ".veloma")
}

// LoadFile reads a YAML configuration file. Keys missing from the file keep
// their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load reads path, falling back to the defaults when the file does not exist.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		d := Default()
		return &d, nil
	}
	return cfg, err
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = capture.DefaultWidth
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = capture.DefaultHeight
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = capture.DefaultFPS
	}
	if c.Detector.Kind == "" {
		c.Detector.Kind = DetectorMediaPipe
	}
	if c.Detector.MaxHands <= 0 {
		c.Detector.MaxHands = 2
	}
	if c.Audio.Sink == "" {
		c.Audio.Sink = SinkSynth
	}
	if c.Audio.Synth.SampleRate <= 0 {
		c.Audio.Synth.SampleRate = audio.DefaultSampleRate
	}
	if c.Audio.MIDI.BendRange <= 0 {
		c.Audio.MIDI.BendRange = audio.DefaultBendRange
	}
	if c.Audio.VolumeMax <= 0 {
		c.Audio.VolumeMax = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Scale.Start == "" {
		c.Scale.Start = "C4"
	}
	if c.Scale.Octaves <= 0 {
		c.Scale.Octaves = 2
	}
	if c.Scale.Scale == "" {
		c.Scale.Scale = music.Major.Name
	}
	if c.Scale.Instrument == "" {
		c.Scale.Instrument = music.DefaultInstrument
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Detector.Kind {
	case DetectorMediaPipe, DetectorMock:
	case DetectorReplay:
		if c.Detector.Recording == "" {
			return errors.New("config: replay detector needs a recording")
		}
	default:
		return fmt.Errorf("config: unknown detector %q", c.Detector.Kind)
	}
	switch c.Audio.Sink {
	case SinkMIDI, SinkSynth, SinkNone:
	default:
		return fmt.Errorf("config: unknown audio sink %q", c.Audio.Sink)
	}
	if c.Audio.MIDI.Channel > 15 {
		return fmt.Errorf("config: midi channel %d outside 0..15", c.Audio.MIDI.Channel)
	}
	if err := c.Audio.Options.Validate(); err != nil {
		return fmt.Errorf("config: audio: %w", err)
	}
	if err := c.Mapping.Validate(); err != nil {
		return fmt.Errorf("config: mapping: %w", err)
	}
	cat, err := c.Catalog()
	if err != nil {
		return fmt.Errorf("config: scales: %w", err)
	}
	if _, err := c.StartScale(cat); err != nil {
		return fmt.Errorf("config: scale: %w", err)
	}
	return nil
}

// Catalog returns the built-in scales plus the user scales.
func (c *Config) Catalog() (*music.Catalog, error) {
	cat := music.NewCatalog()
	for _, s := range c.Scales {
		if err := cat.Add(s); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// StartScale resolves the configured starting scale against cat.
func (c *Config) StartScale(cat *music.Catalog) (music.ScaleConfig, error) {
	start, err := music.ParseNote(c.Scale.Start)
	if err != nil {
		return music.ScaleConfig{}, err
	}
	scale, ok := cat.Lookup(c.Scale.Scale)
	if !ok {
		return music.ScaleConfig{}, fmt.Errorf("%w: unknown scale %q", music.ErrInvalidConfig, c.Scale.Scale)
	}
	sc := music.ScaleConfig{
		StartNote:  start,
		Octaves:    c.Scale.Octaves,
		Scale:      scale,
		Instrument: c.Scale.Instrument,
	}
	if err := sc.Validate(); err != nil {
		return music.ScaleConfig{}, err
	}
	return sc, nil
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "veloma.db")
}
