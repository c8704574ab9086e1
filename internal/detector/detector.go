package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int `yaml:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	// Hands scoring below it are dropped.
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// Script overrides the location of the hand landmark service script.
	Script string `yaml:"script"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// filterHands drops hands below the confidence threshold and caps the count.
func filterHands(hands []HandLandmarks, cfg Config) []HandLandmarks {
	out := hands[:0]
	for _, h := range hands {
		if h.Score < cfg.MinConfidence {
			continue
		}
		out = append(out, h)
		if cfg.MaxHands > 0 && len(out) == cfg.MaxHands {
			break
		}
	}
	return out
}
